package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mutatingTools lists the tool_names whose success triggers a /ws change
// notification; read-only tools never need one.
var mutatingTools = map[string]bool{
	"create_entities":     true,
	"create_relations":    true,
	"add_observations":    true,
	"create_subgraph":     true,
	"delete_entities":     true,
	"delete_relations":    true,
	"generate_embeddings": true,
}

// changeEvent is the best-effort notification broadcast to /ws clients
// after a committed mutation — a change pointer only, no payload, no
// durability, no replay. Per SPEC_FULL.md's supplemental-feature note this
// is deliberately not a queryable mutation feed; a disconnected client just
// refreshes via read_graph.
type changeEvent struct {
	Op         string `json:"op"`
	EntityName string `json:"entity_name,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // CORS is enforced by withCORS before the upgrade
}

// hub fans change notifications out to connected /ws clients.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close() //nolint:errcheck
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close() //nolint:errcheck
		delete(h.clients, conn)
	}
}

// notifyMutation extracts a best-effort entity name out of a tool call's
// raw arguments and broadcasts a changeEvent, when toolName is one that
// mutates graph state at all.
func (h *hub) notifyMutation(toolName string, rawArgs json.RawMessage) {
	if !mutatingTools[toolName] {
		return
	}
	evt := changeEvent{Op: toolName, EntityName: extractEntityName(rawArgs)}
	h.broadcast(evt)
}

func extractEntityName(raw json.RawMessage) string {
	var loose map[string]any
	if len(raw) == 0 {
		return ""
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return ""
	}
	if name, ok := loose["entity_name"].(string); ok {
		return name
	}
	if names, ok := loose["names"].([]any); ok && len(names) > 0 {
		if s, ok := names[0].(string); ok {
			return s
		}
	}
	return ""
}

func (h *hub) broadcast(evt changeEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close() //nolint:errcheck
			delete(h.clients, conn)
		}
	}
}

// handleWS upgrades the connection and registers it for change
// notifications; it carries no request/response tool traffic, only
// server-to-client pushes, so the read loop exists only to detect
// disconnects: client-sent messages are read and discarded, and a read
// error (a close frame or a dropped connection) removes it from the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}
	s.hub.add(conn)
	defer s.hub.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
