package tooling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	invopopSchema "github.com/invopop/jsonschema"

	"billtool/internal/billing"
)

// =============================================================================
// Errors
// =============================================================================

// ArgumentError is a schema or coercion failure. It is raised before any
// request reaches the billing API.
type ArgumentError struct {
	Tool  Name
	Field string
	Value string
	Err   error
}

func (e *ArgumentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tool %q: invalid argument", string(e.Tool))
	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " (value %s)", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// invalidArg builds an ArgumentError from inside a handler. The tool name is
// filled in on the way out.
func invalidArg(field string, value any, format string, a ...any) *ArgumentError {
	return &ArgumentError{Field: field, Value: describeValue(value), Err: fmt.Errorf(format, a...)}
}

// =============================================================================
// Coercing scalars
// =============================================================================

var (
	int64Type   = reflect.TypeOf(int64(0))
	float64Type = reflect.TypeOf(float64(0))
	stringType  = reflect.TypeOf("")
)

// scalarText returns the text of a JSON number or string literal.
func scalarText(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	if len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')) {
		return string(b), true
	}
	return "", false
}

func numberOrString() *invopopSchema.Schema {
	return &invopopSchema.Schema{AnyOf: []*invopopSchema.Schema{{Type: "number"}, {Type: "string"}}}
}

// FlexInt accepts 42 or "42".
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s, ok := scalarText(b)
	if ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*f = FlexInt(n)
			return nil
		}
		// 42.0 is an integer in JSON Schema.
		if x, err := strconv.ParseFloat(s, 64); err == nil && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			*f = FlexInt(int64(x))
			return nil
		}
	}
	return &json.UnmarshalTypeError{Value: string(bytes.TrimSpace(b)), Type: int64Type}
}

func (FlexInt) JSONSchema() *invopopSchema.Schema { return numberOrString() }

// FlexFloat accepts 19.99 or "19.99". NaN and infinities are rejected.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s, ok := scalarText(b)
	if ok {
		x, err := strconv.ParseFloat(s, 64)
		if err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
			*f = FlexFloat(x)
			return nil
		}
	}
	return &json.UnmarshalTypeError{Value: string(bytes.TrimSpace(b)), Type: float64Type}
}

func (FlexFloat) JSONSchema() *invopopSchema.Schema { return numberOrString() }

// FlexID is an object identifier given as a number or a string. It must be
// non-empty and usable as one path segment.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s, ok := scalarText(b)
	if !ok || s == "" || strings.ContainsAny(s, "/?#%") || s == "." || s == ".." {
		return &json.UnmarshalTypeError{Value: string(bytes.TrimSpace(b)), Type: stringType}
	}
	*f = FlexID(s)
	return nil
}

func (FlexID) JSONSchema() *invopopSchema.Schema { return numberOrString() }

func (f FlexID) String() string { return string(f) }

// FlexString accepts a string, number or boolean and keeps its text. Used for
// filter values.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	switch {
	case bytes.Equal(t, []byte("true")), bytes.Equal(t, []byte("false")):
		*f = FlexString(t)
		return nil
	}
	s, ok := scalarText(t)
	if !ok {
		return &json.UnmarshalTypeError{Value: string(t), Type: stringType}
	}
	*f = FlexString(s)
	return nil
}

func (FlexString) JSONSchema() *invopopSchema.Schema {
	return &invopopSchema.Schema{AnyOf: []*invopopSchema.Schema{{Type: "string"}, {Type: "number"}, {Type: "boolean"}}}
}

// =============================================================================
// Bag
// =============================================================================

type bagSetter interface {
	setBag(map[string]any)
}

// Bag holds the validated argument object of a pass-through tool. Embed it in
// an input struct; numbers stay json.Number so they are forwarded exactly.
type Bag struct {
	args map[string]any
}

func (b *Bag) setBag(m map[string]any) { b.args = m }

// Params returns a copy of every argument.
func (b Bag) Params() billing.Params {
	out := make(billing.Params, len(b.args))
	for k, v := range b.args {
		out[k] = v
	}
	return out
}

// Without returns a copy of the arguments minus keys.
func (b Bag) Without(keys ...string) billing.Params {
	return b.Params().Without(keys...)
}

// Has reports whether the caller supplied key.
func (b Bag) Has(key string) bool {
	_, ok := b.args[key]
	return ok
}

// =============================================================================
// Common inputs
// =============================================================================

// ListParams are the paging and filtering arguments every list tool takes.
type ListParams struct {
	Page          FlexInt               `json:"page,omitempty" jsonschema_description:"Page number, starting at 1"`
	PerPage       FlexInt               `json:"per_page,omitempty" jsonschema_description:"Results per page (max 100)"`
	Sort          string                `json:"sort,omitempty" jsonschema_description:"Sort expression, e.g. 'date DESC'"`
	Filter        map[string]FlexString `json:"filter,omitempty" jsonschema_description:"Exact-match filters by field"`
	Metadata      map[string]FlexString `json:"metadata,omitempty" jsonschema_description:"Filter by metadata values"`
	UpdatedAfter  FlexInt               `json:"updated_after,omitempty" jsonschema_description:"Only objects updated after this UNIX timestamp"`
	UpdatedBefore FlexInt               `json:"updated_before,omitempty" jsonschema_description:"Only objects updated before this UNIX timestamp"`
	Expand        string                `json:"expand,omitempty" jsonschema_description:"Comma separated relations to expand"`
}

// Options converts p to client list options. Unset fields stay zero.
func (p ListParams) Options() billing.ListOptions {
	return billing.ListOptions{
		Page:          int(p.Page),
		PerPage:       int(p.PerPage),
		Sort:          p.Sort,
		Filter:        flexMap(p.Filter),
		Metadata:      flexMap(p.Metadata),
		UpdatedAfter:  int64(p.UpdatedAfter),
		UpdatedBefore: int64(p.UpdatedBefore),
		Expand:        p.Expand,
	}
}

func flexMap(m map[string]FlexString) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}

// IDInput is the argument of get and delete tools.
type IDInput struct {
	ID FlexID `json:"id" jsonschema_description:"Object ID"`
}

// IDBagInput is an ID plus forwarded fields (updates and actions).
type IDBagInput struct {
	ID FlexID `json:"id" jsonschema_description:"Object ID"`
	Bag
}

// BagInput forwards every field unchanged (creates).
type BagInput struct {
	Bag
}
