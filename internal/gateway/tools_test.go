package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"billtool/internal/billing"
	"billtool/internal/domain"
	"billtool/internal/metrics"
	"billtool/internal/tooling"
)

// =============================================================================
// stubCaller — scripted Caller for transport tests
// =============================================================================

type stubCall struct {
	Name string
	Args string
}

type stubCaller struct {
	mu    sync.Mutex
	calls []stubCall
	// block, when set, holds HandleToolCall until ctx is done.
	block bool
}

func newStubCaller() *stubCaller { return &stubCaller{} }

func (s *stubCaller) HandleToolCall(ctx context.Context, name string, _ tooling.Client, args json.RawMessage) (domain.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, stubCall{Name: name, Args: string(args)})
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return domain.Response{}, ctx.Err()
	}
	switch name {
	case "get_invoice":
		return domain.TextResponse(`{"id": 42}`), nil
	case "missing_arg":
		return domain.Response{}, &tooling.ArgumentError{Tool: tooling.Name(name), Field: "id", Err: errors.New("required")}
	case "upstream":
		return domain.Response{}, &billing.APIError{Status: 404, Message: "not found"}
	case "boom":
		return domain.Response{}, errors.New("boom")
	case "panic":
		panic("handler bug")
	}
	return domain.Response{}, &tooling.NotFoundError{Name: name}
}

func (s *stubCaller) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "get_invoice", Description: "Retrieve an invoice", InputSchema: json.RawMessage(`{"type":"object"}`)}}
}

func (s *stubCaller) last() stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return stubCall{}
	}
	return s.calls[len(s.calls)-1]
}

// postJSON builds a POST carrying a JSON body.
func postJSON(path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newTestServer(t *testing.T, caller Caller, opts ...Option) *Server {
	t.Helper()
	srv, err := NewServer(&domain.GatewayConfig{Port: 0}, caller, nil, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// =============================================================================
// POST /tools/{name}
// =============================================================================

func TestCallTool_WhenSuccess_ShouldReturnEnvelope(t *testing.T) {
	caller := newStubCaller()
	srv := newTestServer(t, caller)

	req := postJSON("/tools/get_invoice", strings.NewReader(`{"id":42}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not an envelope: %v", err)
	}
	if resp.Text() != `{"id": 42}` {
		t.Errorf("unexpected text %q", resp.Text())
	}
	if got := caller.last(); got.Name != "get_invoice" || got.Args != `{"id":42}` {
		t.Errorf("caller got %+v", got)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request id")
	}
}

func TestCallTool_WhenBodyEmpty_ShouldPassEmptyArgs(t *testing.T) {
	caller := newStubCaller()
	srv := newTestServer(t, caller)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/get_invoice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if got := caller.last().Args; got != "" {
		t.Errorf("want empty args (dispatcher treats as {}), got %q", got)
	}
}

func TestCallTool_ErrorMapping(t *testing.T) {
	tests := []struct {
		tool        string
		wantStatus  int
		wantOutcome string
		wantField   string
	}{
		{"does_not_exist", http.StatusNotFound, "not_found", ""},
		{"missing_arg", http.StatusBadRequest, "invalid_arguments", "id"},
		{"upstream", http.StatusBadGateway, "upstream_error", ""},
		{"boom", http.StatusInternalServerError, "error", ""},
	}
	srv := newTestServer(t, newStubCaller())
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, postJSON("/tools/"+tt.tool, strings.NewReader(`{}`)))
			if rec.Code != tt.wantStatus {
				t.Errorf("status: want %d, got %d", tt.wantStatus, rec.Code)
			}
			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body: %v", err)
			}
			if body.Outcome != tt.wantOutcome || body.Field != tt.wantField {
				t.Errorf("body: %+v", body)
			}
			if body.Error == "" || body.RequestID == "" {
				t.Errorf("error body should carry message and request id: %+v", body)
			}
		})
	}
}

func TestCallTool_WhenUnknownTool_ShouldNameItInError(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/does_not_exist", nil))
	if !strings.Contains(rec.Body.String(), "does_not_exist") {
		t.Errorf("error should name the tool: %s", rec.Body.String())
	}
}

func TestCallTool_WhenBodyTooLarge_ShouldReturn413(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	big := strings.NewReader(`{"x":"` + strings.Repeat("a", maxArgsBytes) + `"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, postJSON("/tools/get_invoice", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("want 413, got %d", rec.Code)
	}
}

func TestCallTool_WhenBodyNotJSONContent_ShouldReturn415(t *testing.T) {
	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded", "multipart/form-data; boundary=x"} {
		t.Run(ct, func(t *testing.T) {
			caller := newStubCaller()
			srv := newTestServer(t, caller)
			req := httptest.NewRequest(http.MethodPost, "/tools/get_invoice", strings.NewReader(`{"id":42}`))
			if ct != "" {
				req.Header.Set("Content-Type", ct)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusUnsupportedMediaType {
				t.Errorf("want 415, got %d", rec.Code)
			}
			if got := caller.last(); got.Name != "" {
				t.Errorf("tool should not run, got %+v", got)
			}
		})
	}
}

func TestCallTool_WhenContentTypeHasCharset_ShouldAccept(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	req := httptest.NewRequest(http.MethodPost, "/tools/get_invoice", strings.NewReader(`{"id":42}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCallTool_WhenMethodGet_ShouldReturn405(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools/get_invoice", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("want 405, got %d", rec.Code)
	}
}

// =============================================================================
// GET /tools, /metrics
// =============================================================================

func TestListTools_ShouldReturnDefinitions(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body struct {
		Tools []domain.ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 1 || body.Tools[0].Name != "get_invoice" {
		t.Errorf("unexpected tools %+v", body.Tools)
	}
}

func TestMetrics_WhenCollectorSet_ShouldServeExposition(t *testing.T) {
	c := metrics.NewCollector("billtool")
	c.RecordToolCall("get_invoice", "ok", 0)
	srv := newTestServer(t, newStubCaller(), WithMetrics(c))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "billtool_tool_calls_total") {
		t.Errorf("want metrics exposition, got %d:\n%s", rec.Code, rec.Body.String())
	}
}

func TestMetrics_WhenCollectorUnset_ShouldReturn404(t *testing.T) {
	srv := newTestServer(t, newStubCaller())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", rec.Code)
	}
}

func TestStatusFor_WhenWrapped_ShouldStillMap(t *testing.T) {
	err := fmt.Errorf("ctx: %w", &billing.APIError{Status: 500})
	if got := StatusFor(err); got != http.StatusBadGateway {
		t.Errorf("want 502, got %d", got)
	}
}
