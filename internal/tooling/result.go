package tooling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"billtool/internal/domain"
)

// Result is what a handler returns: a Formatted envelope or a Raw value.
type Result interface {
	isResult()
}

// Formatted is a ready-made response. Normalize returns it unchanged.
type Formatted struct {
	Response domain.Response
}

// Raw is any JSON-encodable value. Normalize renders it as indented JSON text.
type Raw struct {
	Value any
}

func (Formatted) isResult() {}
func (Raw) isResult()       {}

// Text wraps s in a Formatted single-block response.
func Text(s string) Formatted {
	return Formatted{Response: domain.TextResponse(s)}
}

// Normalize turns a Result into the response envelope. A nil Result, or a
// nil *Formatted or *Raw, renders as "null".
func Normalize(r Result) (domain.Response, error) {
	switch v := r.(type) {
	case Formatted:
		return v.Response, nil
	case *Formatted:
		if v == nil {
			return rawResponse(nil)
		}
		return v.Response, nil
	case Raw:
		return rawResponse(v.Value)
	case *Raw:
		if v == nil {
			return rawResponse(nil)
		}
		return rawResponse(v.Value)
	case nil:
		return rawResponse(nil)
	default:
		return domain.Response{}, fmt.Errorf("unsupported result type %T", r)
	}
}

func rawResponse(v any) (domain.Response, error) {
	text, err := Pretty(v)
	if err != nil {
		return domain.Response{}, err
	}
	return domain.TextResponse(text), nil
}

// Pretty renders v as two-space indented JSON without HTML escaping or a
// trailing newline.
func Pretty(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// created builds "<Singular> created successfully:\n<json>".
func created(singular string, v json.RawMessage) (Result, error) {
	text, err := Pretty(v)
	if err != nil {
		return nil, err
	}
	return Text(singular + " created successfully:\n" + text), nil
}

// deleted builds "<Singular> <id> deleted successfully.".
func deleted(singular string, id FlexID) Result {
	return Text(fmt.Sprintf("%s %s deleted successfully.", singular, id))
}
