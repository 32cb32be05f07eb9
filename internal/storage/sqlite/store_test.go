package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/types"
)

func TestCreateEntity_DuplicateNameIsAlreadyExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "Ada", "person")
	require.NoError(t, err)

	_, err = store.CreateEntity(ctx, "Ada", "person")
	require.Error(t, err)
	te := types.AsToolError(err)
	assert.Equal(t, types.KindAlreadyExists, te.Kind)
}

func TestDeleteEntities_CascadesAndIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, "Ada", "person")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, "Ada", "wrote first program")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "Babbage", "person")
	require.NoError(t, err)
	_, _, err = store.CreateRelation(ctx, "Ada", "Babbage", "collaborated_with")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, id, "test-model", []float32{0.1, 0.2}))

	n, err := store.DeleteEntities(ctx, []string{"Ada"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	graph, err := store.ReadGraph(ctx)
	require.NoError(t, err)
	for _, e := range graph.Entities {
		assert.NotEqual(t, "Ada", e.Name)
	}
	assert.Empty(t, graph.Relations)

	exists, err := store.Exists(ctx, id, "test-model")
	require.NoError(t, err)
	assert.False(t, exists)

	// second delete is a no-op, not an error
	n, err = store.DeleteEntities(ctx, []string{"Ada"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCreateRelation_DuplicateIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "Ada", "person")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "Babbage", "person")
	require.NoError(t, err)

	id1, existed1, err := store.CreateRelation(ctx, "Ada", "Babbage", "collaborated_with")
	require.NoError(t, err)
	assert.False(t, existed1)

	id2, existed2, err := store.CreateRelation(ctx, "Ada", "Babbage", "collaborated_with")
	require.NoError(t, err)
	assert.True(t, existed2)
	assert.Equal(t, id1, id2)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RelationCount)
}

func TestCreateRelation_MissingEndpointIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.CreateRelation(ctx, "Ada", "Babbage", "inspired")
	require.Error(t, err)
	te := types.AsToolError(err)
	assert.Equal(t, types.KindNotFound, te.Kind)
}

func TestObservationsForEntity_OrderedByCreatedAtThenID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, "X", "t")
	require.NoError(t, err)
	for _, content := range []string{"o1", "o2", "o3"} {
		_, err := store.AddObservation(ctx, "X", content)
		require.NoError(t, err)
	}

	obs, err := store.ObservationsForEntity(ctx, id)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, []string{"o1", "o2", "o3"}, []string{obs[0].Content, obs[1].Content, obs[2].Content})
}

func TestSearchEntitiesFTS_MatchesOnNameOrType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "alpha", "person")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "beta", "place")
	require.NoError(t, err)

	matches, err := store.SearchEntitiesFTS(ctx, []string{"alpha"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestSearchEntitiesFTS_OrSemanticsAcrossTokens(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "agent-coordination", "concept")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "memory-design", "concept")
	require.NoError(t, err)

	matches, err := store.SearchEntitiesFTS(ctx, []string{"agent", "coordination", "memory", "design", "architecture"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(matches), 2)
}

func TestCheckpoint_VisibleToFreshConnection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := dir + "/graph.db"

	s1, err := Open(ctx, dbPath, nil)
	require.NoError(t, err)
	defer s1.Close()

	_, err = s1.CreateEntity(ctx, "Ada", "person")
	require.NoError(t, err)
	require.NoError(t, s1.Checkpoint(ctx))

	s2, err := Open(ctx, dbPath, nil)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.GetEntityByName(ctx, "Ada")
	require.NoError(t, err)
}

func TestVectorSearch_ZeroNormGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, "X", "t")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, id, "m", []float32{0, 0, 0}))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 5, -1, "m")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.0, matches[0].Similarity)
}
