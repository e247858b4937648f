package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"billtool/internal/billing"
	"billtool/internal/dispatch"
	"billtool/internal/tooling"
)

// maxArgsBytes caps a tool-call request body.
const maxArgsBytes = 1 << 20

// ErrorBody is the JSON body of every failed tool call.
type ErrorBody struct {
	Error     string `json:"error"`
	Outcome   string `json:"outcome"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// StatusFor maps a tool-call error to its HTTP status: 404 unknown tool,
// 400 bad arguments, 502 billing API failure, 500 anything else.
func StatusFor(err error) int {
	var argErr *tooling.ArgumentError
	var apiErr *billing.APIError
	switch {
	case errors.Is(err, tooling.ErrToolNotFound):
		return http.StatusNotFound
	case errors.As(err, &argErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func errorBody(err error, requestID string) ErrorBody {
	body := ErrorBody{
		Error:     err.Error(),
		Outcome:   string(dispatch.Classify(err)),
		RequestID: requestID,
	}
	var argErr *tooling.ArgumentError
	if errors.As(err, &argErr) {
		body.Field = argErr.Field
	}
	return body
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.caller.Definitions()})
}

func isJSONContent(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// handleCallTool runs POST /tools/{name}. The body is the argument object
// sent as application/json; an empty body means {}.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reqID := RequestIDFrom(r.Context())

	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArgsBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: err.Error(), Outcome: "error", RequestID: reqID})
		return
	}
	if len(bytes.TrimSpace(args)) > 0 && !isJSONContent(r.Header.Get("Content-Type")) {
		writeJSON(w, http.StatusUnsupportedMediaType, ErrorBody{Error: "content type must be application/json", Outcome: "error", RequestID: reqID})
		return
	}
	resp, err := s.caller.HandleToolCall(r.Context(), name, s.client, args)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.log().Warn("tool call failed", "tool", name, "status", status, "error", err, "request_id", reqID)
		}
		writeJSON(w, status, errorBody(err, reqID))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
