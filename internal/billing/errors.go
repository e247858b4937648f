package billing

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the billing API. The body is expected
// to look like {"type":"invalid_request","message":"...","param":"customer"}.
type APIError struct {
	Status  int
	Type    string
	Message string
	Param   string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "billing api: %s /%s: %d", e.Method, e.Path, e.Status)
	if e.Type != "" {
		b.WriteString(" " + e.Type)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, " (param %q)", e.Param)
	}
	return b.String()
}

// StatusCode returns the HTTP status. It lets the retry package classify
// the error without importing billing.
func (e *APIError) StatusCode() int { return e.Status }

// NotFound reports whether the object did not exist.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

func parseAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Status: status, Method: method, Path: path}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		e.Type = r.Get("type").String()
		e.Message = r.Get("message").String()
		e.Param = r.Get("param").String()
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(http.StatusText(status))
	}
	return e
}
