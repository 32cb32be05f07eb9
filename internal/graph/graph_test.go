package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
	"github.com/kgraphd/kgraphd/internal/types"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	store, err := sqlite.Open(context.Background(), t.TempDir()+"/test.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, store, embedding.NewRegistry(), ServerInfo{Name: "kgraphd-test"}, "")
}

func ptr[T any](v T) *T { return &v }

// S1 — create, read, delete.
func TestScenario_CreateReadDelete(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	res, err := g.CreateEntities(ctx, []types.NewEntityInput{
		{Name: "Ada", EntityType: "person", Observations: []string{"wrote first program"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &CreateEntitiesResult{Created: 1}, res)

	graph, err := g.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, graph.Entities, 1)
	assert.Equal(t, "Ada", graph.Entities[0].Name)
	assert.Equal(t, "person", graph.Entities[0].EntityType)
	require.Len(t, graph.Entities[0].Observations, 1)
	assert.Equal(t, "wrote first program", graph.Entities[0].Observations[0])
	assert.Empty(t, graph.Relations)

	del, err := g.DeleteEntities(ctx, []string{"Ada"})
	require.NoError(t, err)
	assert.Equal(t, 1, del.Deleted)

	graph, err = g.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Entities)
	assert.Empty(t, graph.Relations)
}

// S1 (wire shape) — read_graph's JSON must match the dump contract exactly:
// observations as bare strings, no internal id/timestamp fields leaking
// through. graph_test's Go-struct-level assertions above wouldn't catch a
// regression back to []Observation objects, since GraphDump's field is
// already typed []string at the Go level; this marshals and checks the
// actual bytes a client receives.
func TestScenario_ReadGraphWireShape(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{
		{Name: "Ada", EntityType: "person", Observations: []string{"wrote first program"}},
	})
	require.NoError(t, err)

	graph, err := g.ReadGraph(ctx)
	require.NoError(t, err)

	data, err := json.Marshal(graph)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	entities, ok := decoded["entities"].([]any)
	require.True(t, ok)
	require.Len(t, entities, 1)
	entity, ok := entities[0].(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "Ada", entity["name"])
	assert.Equal(t, "person", entity["entity_type"])
	assert.Equal(t, []any{"wrote first program"}, entity["observations"])
	assert.NotContains(t, entity, "created_at")
	assert.NotContains(t, entity, "updated_at")
	assert.NotContains(t, entity, "id")

	assert.Equal(t, []any{}, decoded["relations"])
}

// S2 — relation without entities must fail atomically.
func TestScenario_RelationWithoutEntitiesFailsAtomically(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateRelations(ctx, []types.NewRelationInput{
		{From: "Ada", To: "Babbage", RelationType: "inspired"},
	}, []string{"Ada", "Babbage"})
	require.Error(t, err)
	te := types.AsToolError(err)
	assert.Equal(t, types.KindMissingEntities, te.Kind)
	assert.ElementsMatch(t, []string{"Ada", "Babbage"}, te.Names)

	graph, err := g.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Entities)
	assert.Empty(t, graph.Relations)
}

// S3 — atomic subgraph.
func TestScenario_AtomicSubgraph(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	res, err := g.CreateSubgraph(ctx,
		[]types.NewEntityInput{{Name: "Ada", EntityType: "person"}, {Name: "Babbage", EntityType: "person"}},
		[]types.NewRelationInput{{From: "Ada", To: "Babbage", RelationType: "collaborated_with"}},
		nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntitiesCreated)
	assert.Equal(t, 1, res.RelationsCreated)

	graph, err := g.ReadGraph(ctx)
	require.NoError(t, err)
	assert.Len(t, graph.Entities, 2)
	require.Len(t, graph.Relations, 1)
	assert.Equal(t, "Ada", graph.Relations[0].FromEntity)
	assert.Equal(t, "Babbage", graph.Relations[0].ToEntity)
}

// S4 — duplicate relation is a no-op.
func TestScenario_DuplicateRelationIsNoOp(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateSubgraph(ctx,
		[]types.NewEntityInput{{Name: "Ada", EntityType: "person"}, {Name: "Babbage", EntityType: "person"}},
		[]types.NewRelationInput{{From: "Ada", To: "Babbage", RelationType: "collaborated_with"}},
		nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.CreateRelations(ctx, []types.NewRelationInput{
			{From: "Ada", To: "Babbage", RelationType: "collaborated_with"},
		}, []string{"Ada", "Babbage"})
		require.NoError(t, err)
	}

	stats, err := g.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RelationCount)
}

// S5 — cross-call visibility: a write followed immediately by a dependent
// write must see the first write's effects.
func TestScenario_CrossCallVisibility(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{{Name: "X", EntityType: "t"}})
	require.NoError(t, err)

	_, err = g.AddObservations(ctx, "X", []string{"o1"}, []string{"X"})
	require.NoError(t, err)

	graph, err := g.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, graph.Entities, 1)
	require.Len(t, graph.Entities[0].Observations, 1)
	assert.Equal(t, "o1", graph.Entities[0].Observations[0])
}

// S6 — search recovers a multi-word query via OR semantics.
func TestScenario_SearchRecoversMultiWordQuery(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{
		{Name: "agent-coordination", EntityType: "concept", Observations: []string{"agent"}},
		{Name: "memory-design", EntityType: "concept", Observations: []string{"memory"}},
	})
	require.NoError(t, err)

	res, err := g.SearchNodes(ctx, "agent coordination memory design architecture", ptr(10))
	require.NoError(t, err)
	require.NotEmpty(t, res.Entities)

	names := map[string]bool{}
	for _, e := range res.Entities {
		names[e.Name] = true
	}
	assert.True(t, names["agent-coordination"])
	assert.True(t, names["memory-design"])
}

// S7 — hybrid search falls back to lexical-only with a warning when no
// embedding provider can serve the semantic side.
func TestScenario_HybridSearchFallback(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{
		{Name: "anything-entity", EntityType: "t", Observations: []string{"anything"}},
	})
	require.NoError(t, err)

	// The default local provider dials Ollama lazily; with none running in
	// the test environment, Generate fails and the hybrid search degrades.
	res, err := g.SearchHybrid(ctx, "anything", ptr(5), ptr(0.7))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.NotEmpty(t, res.Entities)
}

func TestCreateEntities_DuplicateNameIsSkippedNotUpdated(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{{Name: "dup", EntityType: "a"}})
	require.NoError(t, err)

	res, err := g.CreateEntities(ctx, []types.NewEntityInput{
		{Name: "dup", EntityType: "b"},
		{Name: "fresh", EntityType: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{"dup"}, res.Skipped)

	ent, err := g.store.GetEntityByName(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "a", ent.EntityType)
}

func TestDeleteEntities_Idempotent(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateEntities(ctx, []types.NewEntityInput{{Name: "n", EntityType: "t"}})
	require.NoError(t, err)

	first, err := g.DeleteEntities(ctx, []string{"n"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Deleted)

	second, err := g.DeleteEntities(ctx, []string{"n"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deleted)
}

func TestCreateRelations_RequiresExternalRefs(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	_, err := g.CreateEntities(ctx, []types.NewEntityInput{{Name: "a", EntityType: "t"}, {Name: "b", EntityType: "t"}})
	require.NoError(t, err)

	_, err = g.CreateRelations(ctx, []types.NewRelationInput{{From: "a", To: "b", RelationType: "x"}}, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindInvalid, types.AsToolError(err).Kind)
}
