package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	model string
	dims  int
	calls int
}

func (s *stubProvider) ModelName() string { return s.model }
func (s *stubProvider) Dimensions() int   { return s.dims }
func (s *stubProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return make([]float32, s.dims), nil
}
func (s *stubProvider) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

func TestRegistry_CurrentDefaultsToLocalProvider(t *testing.T) {
	r := NewRegistry()
	p := r.Current()
	require.NotNil(t, p)
	assert.Equal(t, DefaultLocalModel, p.ModelName())
}

func TestRegistry_ConfigureReplacesProviderAtomically(t *testing.T) {
	r := NewRegistry()
	r.Current() // install default

	custom := &stubProvider{model: "custom", dims: 8}
	r.Configure(custom)

	got := r.Current()
	assert.Same(t, custom, got)
}

func TestNewRemoteProvider_RequiresAPIKey(t *testing.T) {
	t.Setenv("KG_EMBEDDINGS_API_KEY", "")
	_, err := NewRemoteProvider(RemoteProviderConfig{Endpoint: "https://example.test/embed"})
	require.ErrorIs(t, err, errAPIKeyRequired)
}

func TestNewRemoteProvider_EnvVarTakesPrecedence(t *testing.T) {
	t.Setenv("KG_EMBEDDINGS_API_KEY", "env-key")
	p, err := NewRemoteProvider(RemoteProviderConfig{APIKey: "ctor-key", Endpoint: "https://example.test/embed", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "env-key", p.apiKey)
}
