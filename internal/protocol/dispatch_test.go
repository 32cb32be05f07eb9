package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
)

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	store, err := sqlite.Open(context.Background(), t.TempDir()+"/test.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return graph.New(store, store, embedding.NewRegistry(), graph.ServerInfo{Name: "kgraphd-test"}, "")
}

func TestDispatch_CreateEntitiesThenReadGraph(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	createReq := Request{
		ID:     "1",
		Method: "tools/call",
		Params: RequestParams{
			Name:      "create_entities",
			Arguments: json.RawMessage(`{"entities":[{"name":"Ada","entity_type":"person","observations":["wrote first program"]}]}`),
		},
	}
	resp := Dispatch(ctx, g, createReq)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "text", resp.Result.Content[0].Type)
	assert.JSONEq(t, `{"created":1,"skipped":null}`, resp.Result.Content[0].Text)

	readReq := Request{ID: "2", Method: "tools/call", Params: RequestParams{Name: "read_graph"}}
	resp = Dispatch(ctx, g, readReq)
	require.Nil(t, resp.Error)
	assert.Contains(t, resp.Result.Content[0].Text, "Ada")
}

func TestDispatch_UnknownTool(t *testing.T) {
	g := newTestGraph(t)
	resp := Dispatch(context.Background(), g, Request{ID: "x", Params: RequestParams{Name: "not_a_tool"}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnknownTool, resp.Error.Code)
}

func TestDispatch_BadArguments(t *testing.T) {
	g := newTestGraph(t)
	resp := Dispatch(context.Background(), g, Request{
		ID: "x",
		Params: RequestParams{
			Name:      "create_entities",
			Arguments: json.RawMessage(`{"entities": "not-an-array"}`),
		},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeBadRequest, resp.Error.Code)
}

func TestDispatch_MissingEntitiesMapsToCode(t *testing.T) {
	g := newTestGraph(t)
	resp := Dispatch(context.Background(), g, Request{
		ID: "x",
		Params: RequestParams{
			Name:      "create_relations",
			Arguments: json.RawMessage(`{"relations":[{"from":"A","to":"B","relation_type":"knows"}],"external_refs":["A","B"]}`),
		},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMissingEntities, resp.Error.Code)
}
