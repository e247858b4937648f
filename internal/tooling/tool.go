package tooling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"billtool/internal/billing"
)

// Client is the part of the billing API the tools use. *billing.Client
// satisfies it; tests pass fakes.
type Client interface {
	List(ctx context.Context, res billing.Resource, opts billing.ListOptions) (json.RawMessage, error)
	Retrieve(ctx context.Context, res billing.Resource, id string) (json.RawMessage, error)
	Create(ctx context.Context, res billing.Resource, body billing.Params) (json.RawMessage, error)
	Update(ctx context.Context, res billing.Resource, id string, body billing.Params) (json.RawMessage, error)
	Delete(ctx context.Context, res billing.Resource, id string) error
	Do(ctx context.Context, op billing.Operation, id string, params billing.Params) (json.RawMessage, error)
}

// Env is what a handler receives besides its input: the billing client and a
// logger already scoped to the call.
type Env struct {
	Client   Client
	Log      *slog.Logger
	// FileRoot is the only directory tools may read local files from.
	// Empty disables local file access.
	FileRoot string
}

func (e Env) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Tool is one named operation. Call validates args against Schema, decodes
// them and runs the handler.
type Tool interface {
	Name() Name
	Description() string
	// Schema returns the JSON Schema of the tool's arguments.
	Schema() json.RawMessage
	Call(ctx context.Context, env Env, args json.RawMessage) (Result, error)
}

// HandlerFunc is the typed body of a tool. in has already passed schema
// validation and numeric coercion.
type HandlerFunc[In any] func(ctx context.Context, env Env, in In) (Result, error)

// =============================================================================
// Construction
// =============================================================================

type toolConfig struct {
	patches []func(*invopopSchema.Schema)
}

// ToolOption adjusts a tool built with New.
type ToolOption func(*toolConfig)

// WithProperty documents an extra property on an open (Bag) input. The value
// is not typed; it is forwarded as given.
func WithProperty(key, description string, required bool) ToolOption {
	return func(c *toolConfig) {
		c.patches = append(c.patches, func(s *invopopSchema.Schema) {
			if s.Properties == nil {
				s.Properties = invopopSchema.NewProperties()
			}
			if _, exists := s.Properties.Get(key); !exists {
				s.Properties.Set(key, &invopopSchema.Schema{Description: description})
			}
			if required {
				s.Required = appendUnique(s.Required, key)
			}
		})
	}
}

// Requires marks keys of an open input as required.
func Requires(keys ...string) ToolOption {
	return func(c *toolConfig) {
		c.patches = append(c.patches, func(s *invopopSchema.Schema) {
			for _, k := range keys {
				s.Required = appendUnique(s.Required, k)
			}
		})
	}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// New builds a Tool whose arguments decode into In. The schema is reflected
// from In once, on first use. If In embeds Bag the schema accepts extra
// properties and the handler can forward them.
func New[In any](name Name, description string, h HandlerFunc[In], opts ...ToolOption) Tool {
	cfg := &toolConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &typedTool[In]{name: name, description: description, handler: h, cfg: cfg}
}

type typedTool[In any] struct {
	name        Name
	description string
	handler     HandlerFunc[In]
	cfg         *toolConfig

	once     sync.Once
	raw      json.RawMessage
	compiled *jsonschema.Schema
	err      error
}

func (t *typedTool[In]) Name() Name          { return t.name }
func (t *typedTool[In]) Description() string { return t.description }

func (t *typedTool[In]) Schema() json.RawMessage {
	t.prepare()
	return t.raw
}

func (t *typedTool[In]) prepare() {
	t.once.Do(func() {
		_, open := any(new(In)).(bagSetter)
		s := reflectSchema(new(In), open)
		for _, patch := range t.cfg.patches {
			patch(s)
		}
		raw, err := marshalFunc(s)
		if err != nil {
			t.err = fmt.Errorf("tool %s: schema: %w", t.name, err)
			return
		}
		t.raw = raw
		compiled, err := jsonschema.CompileString(string(t.name)+".json", string(raw))
		if err != nil {
			t.err = fmt.Errorf("tool %s: invalid schema: %w", t.name, err)
			return
		}
		t.compiled = compiled
	})
}

func (t *typedTool[In]) Call(ctx context.Context, env Env, args json.RawMessage) (Result, error) {
	t.prepare()
	if t.err != nil {
		return nil, t.err
	}
	in, err := decodeArgs[In](t.name, t.compiled, args)
	if err != nil {
		return nil, err
	}
	res, err := t.handler(ctx, env, in)
	if err != nil {
		var ae *ArgumentError
		if errors.As(err, &ae) && ae.Tool == "" {
			ae.Tool = t.name
		}
		return nil, err
	}
	return res, nil
}

// =============================================================================
// Schema and decoding
// =============================================================================

// marshalFunc renders reflected schemas. Package-level so tests can inject a
// failing marshaler.
var marshalFunc = func(v any) ([]byte, error) {
	return json.Marshal(v)
}

func reflectSchema(v any, open bool) *invopopSchema.Schema {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: open,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	return reflector.Reflect(v)
}

// GenerateSchema reflects the JSON Schema of a closed input struct.
func GenerateSchema(input any) string {
	raw, err := marshalFunc(reflectSchema(input, false))
	if err != nil {
		return ""
	}
	return string(raw)
}

// ValidateAgainstSchema validates JSON input against a JSON Schema string.
func ValidateAgainstSchema(input json.RawMessage, schemaStr string) error {
	schema, err := jsonschema.CompileString("schema.json", schemaStr)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	doc, err := decodeObject(input)
	if err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// decodeObject parses args keeping numbers as json.Number. Empty or null
// args mean no arguments.
func decodeObject(args json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return "null"
	}
}

func decodeArgs[In any](name Name, schema *jsonschema.Schema, args json.RawMessage) (In, error) {
	var in In
	obj, err := decodeObject(args)
	if err != nil {
		return in, &ArgumentError{Tool: name, Err: err}
	}
	if err := schema.Validate(obj); err != nil {
		return in, validationArgumentError(name, obj, err)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return in, &ArgumentError{Tool: name, Err: err}
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, decodeArgumentError(name, err)
	}
	if b, ok := any(&in).(bagSetter); ok {
		b.setBag(obj)
	}
	return in, nil
}

func validationArgumentError(name Name, obj map[string]any, err error) *ArgumentError {
	ae := &ArgumentError{Tool: name, Err: err}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		ae.Field = strings.ReplaceAll(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", ".")
		ae.Err = errors.New(leaf.Message)
		if ae.Field != "" && !strings.Contains(ae.Field, ".") {
			if v, ok := obj[ae.Field]; ok {
				ae.Value = describeValue(v)
			}
		}
	}
	return ae
}

func decodeArgumentError(name Name, err error) *ArgumentError {
	ae := &ArgumentError{Tool: name, Err: err}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		ae.Field = ute.Field
		ae.Value = ute.Value
	}
	return ae
}

func describeValue(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
