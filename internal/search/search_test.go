package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), t.TempDir()+"/test.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLexical_ExactNameRanksAboveObservationOnlyMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "alpha", "concept")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "beta", "concept")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, "beta", "alpha-like")
	require.NoError(t, err)

	results, err := Lexical(ctx, store, "alpha", 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, "alpha", results[0].Name)
}

func TestLexical_MultiWordQueryORSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "agent-coordination", "concept")
	require.NoError(t, err)
	_, err = store.CreateEntity(ctx, "memory-design", "concept")
	require.NoError(t, err)

	results, err := Lexical(ctx, store, "agent coordination memory", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	assert.True(t, names["agent-coordination"])
	assert.True(t, names["memory-design"])
}

func TestLexical_ReordersMatchedObservationsFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "X", "t")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, "X", "no match one")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, "X", "contains needle")
	require.NoError(t, err)
	_, err = store.AddObservation(ctx, "X", "no match two")
	require.NoError(t, err)

	results, err := Lexical(ctx, store, "needle", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ObservationMatches)
	assert.Equal(t, "contains needle", results[0].Observations[0])
}

type stubProvider struct {
	model string
	dims  int
	vec   func(text string) []float32
	err   error
}

func (s *stubProvider) ModelName() string { return s.model }
func (s *stubProvider) Dimensions() int   { return s.dims }
func (s *stubProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec(text), nil
}
func (s *stubProvider) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Generate(ctx, t)
	}
	return out, nil
}

func TestHybrid_VectorWeightZeroMatchesLexical(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateEntity(ctx, "alpha", "concept")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, id, "stub", []float32{1, 0}))

	provider := &stubProvider{model: "stub", dims: 2, vec: func(string) []float32 { return []float32{1, 0} }}

	hybrid, err := Hybrid(ctx, store, store, provider, "alpha", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hybrid.Warning)
	require.NotEmpty(t, hybrid.Results)
	assert.Equal(t, "alpha", hybrid.Results[0].Name)
}

func TestHybrid_DegradesToLexicalOnProviderFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntity(ctx, "alpha", "concept")
	require.NoError(t, err)

	provider := &stubProvider{model: "stub", dims: 2, err: assertErr{}}

	hybrid, err := Hybrid(ctx, store, store, provider, "alpha", 5, 0.7)
	require.NoError(t, err)
	assert.NotEmpty(t, hybrid.Warning)
	require.NotEmpty(t, hybrid.Results)
	assert.Equal(t, "alpha", hybrid.Results[0].Name)
}

type assertErr struct{}

func (assertErr) Error() string { return "provider unavailable" }

var _ storage.VectorStore = (*sqlite.Store)(nil)
