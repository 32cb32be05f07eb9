package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/protocol"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
)

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	store, err := sqlite.Open(context.Background(), t.TempDir()+"/test.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return graph.New(store, store, embedding.NewRegistry(), graph.ServerInfo{Name: "kgraphd-test"}, "")
}

func TestRun_ProcessesRequestsInOrder(t *testing.T) {
	g := newTestGraph(t)

	in := strings.NewReader(
		`{"id":"1","method":"tools/call","params":{"name":"create_entities","arguments":{"entities":[{"name":"Ada","entity_type":"person","observations":[]}]}}}` + "\n" +
			`{"id":"2","method":"tools/call","params":{"name":"read_graph"}}` + "\n",
	)
	var out bytes.Buffer

	err := Run(context.Background(), Options{Graph: g, In: in, Out: &out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var resp1, resp2 protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp1))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &resp2))

	assert.Equal(t, "1", resp1.ID)
	assert.Nil(t, resp1.Error)
	assert.Equal(t, "2", resp2.ID)
	assert.Contains(t, resp2.Result.Content[0].Text, "Ada")
}

func TestRun_BadLineReportsErrorAndContinues(t *testing.T) {
	g := newTestGraph(t)

	in := strings.NewReader("not json\n" + `{"id":"2","method":"tools/call","params":{"name":"get_stats"}}` + "\n")
	var out bytes.Buffer

	err := Run(context.Background(), Options{Graph: g, In: in, Out: &out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var resp1, resp2 protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp1))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &resp2))

	require.NotNil(t, resp1.Error)
	assert.Equal(t, protocol.CodeBadRequest, resp1.Error.Code)
	assert.Equal(t, "2", resp2.ID)
	assert.Nil(t, resp2.Error)
}
