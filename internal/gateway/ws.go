package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"billtool/internal/domain"
)

// WebSocket message types.
const (
	TypeCall   = "call"
	TypeResult = "result"
	TypeError  = "error"
	TypeList   = "list"
	TypeTools  = "tools"
)

// WSMessage is the JSON message protocol for the WebSocket gateway.
// Request:  {"type":"call","id":"1","tool":"get_invoice","arguments":{"id":42}}
// Response: {"type":"result","id":"1","tool":"get_invoice","result":{"content":[...]}}
//
//	or {"type":"error","id":"1","tool":"get_invoice","error":"...","outcome":"not_found"}
type WSMessage struct {
	Type      string                  `json:"type"`
	ID        string                  `json:"id,omitempty"`
	Tool      string                  `json:"tool,omitempty"`
	Arguments json.RawMessage         `json:"arguments,omitempty"`
	Result    *domain.Response        `json:"result,omitempty"`
	Tools     []domain.ToolDefinition `json:"tools,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Outcome   string                  `json:"outcome,omitempty"`
}

// jsonMarshal is used when encoding WSMessage; tests may replace it to force Marshal errors.
// Access is protected by jsonMarshalMu for race-safe test swaps.
var (
	jsonMarshalMu sync.RWMutex
	jsonMarshal   = json.Marshal
)

// Default upgrader for WebSocket connections.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts non-browser clients, which send no Origin, and pages
// served from the gateway's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleWS upgrades the request to WebSocket and runs a read loop. Each
// "call" runs in its own goroutine, so replies may arrive out of order and
// are matched to requests by id. Writes are serialized with a mutex.
// Only GET is accepted for the WebSocket handshake.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxArgsBytes)
	if s.metrics != nil {
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}

	// Calls still running when the peer disconnects are cancelled.
	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	var writeMu sync.Mutex
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var in WSMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			reply := WSMessage{Type: TypeError, Error: "invalid JSON"}
			writeWSMessage(conn, &writeMu, &reply)
			continue
		}

		switch in.Type {
		case TypeCall:
			inflight.Add(1)
			go func(in WSMessage) {
				defer inflight.Done()
				out := s.callFromWS(ctx, in)
				writeWSMessage(conn, &writeMu, &out)
			}(in)
		case TypeList:
			out := WSMessage{Type: TypeTools, ID: in.ID, Tools: s.caller.Definitions()}
			writeWSMessage(conn, &writeMu, &out)
		default:
			out := WSMessage{Type: TypeError, ID: in.ID, Error: "unsupported message type: " + in.Type}
			writeWSMessage(conn, &writeMu, &out)
		}
	}
}

func (s *Server) callFromWS(ctx context.Context, in WSMessage) WSMessage {
	resp, err := s.caller.HandleToolCall(ctx, in.Tool, s.client, in.Arguments)
	if err != nil {
		body := errorBody(err, "")
		return WSMessage{Type: TypeError, ID: in.ID, Tool: in.Tool, Error: body.Error, Outcome: body.Outcome}
	}
	return WSMessage{Type: TypeResult, ID: in.ID, Tool: in.Tool, Result: &resp}
}

func writeWSMessage(conn *websocket.Conn, mu *sync.Mutex, msg *WSMessage) {
	jsonMarshalMu.RLock()
	marshal := jsonMarshal
	jsonMarshalMu.RUnlock()
	data, err := marshal(msg)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
