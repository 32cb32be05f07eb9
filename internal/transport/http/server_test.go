package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/protocol"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := sqlite.Open(context.Background(), t.TempDir()+"/test.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g := graph.New(store, store, embedding.NewRegistry(), graph.ServerInfo{Name: "kgraphd-test"}, "")
	return New(Options{
		Graph: g,
		Identity: func() Identity {
			return Identity{Name: "kgraphd-test", Version: "dev", Host: "127.0.0.1", Port: 0}
		},
	})
}

func TestHandleHealth_ReportsIdentity(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "kgraphd-test", body["name"])
	_, hasStats := body["stats"]
	assert.False(t, hasStats)
}

func TestHandleHealth_VerboseIncludesStats(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=1", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "stats")
}

func TestHandleMCP_CreateEntitiesReturnsSSEResult(t *testing.T) {
	s := newTestServer(t)

	create := protocol.Request{
		ID:     "1",
		Method: "tools/call",
		Params: protocol.RequestParams{
			Name:      "create_entities",
			Arguments: json.RawMessage(`{"entities":[{"name":"Ada","entity_type":"person","observations":["wrote first program"]}]}`),
		},
	}
	body, err := json.Marshal(create)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	raw := rec.Body.String()
	assert.True(t, strings.HasPrefix(raw, "event: tool_result\ndata: "))

	jsonLine := strings.TrimPrefix(strings.SplitN(raw, "\n", 2)[1], "data: ")
	jsonLine = strings.TrimSpace(jsonLine)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(jsonLine), &resp))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestHandleMCP_RejectsNonPost(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleMCP_UnknownToolReturnsErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	call := protocol.Request{ID: "1", Method: "tools/call", Params: protocol.RequestParams{Name: "not_a_tool"}}
	body, err := json.Marshal(call)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	raw := rec.Body.String()
	jsonLine := strings.TrimPrefix(strings.SplitN(raw, "\n", 2)[1], "data: ")
	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(jsonLine)), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeUnknownTool, resp.Error.Code)
}
