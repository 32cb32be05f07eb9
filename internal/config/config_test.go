package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envSnapshot saves and clears KG_ environment variables so tests don't
// leak host environment into defaults assertions, mirroring the teacher's
// own BD_/BEADS_ snapshot helper.
func envSnapshot(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "KG_") {
			key := strings.SplitN(env, "=", 2)[0]
			val := os.Getenv(key)
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, val) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	envSnapshot(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, "kgraphd", cfg.Name)
	assert.Equal(t, 5, cfg.MinBackups)
	assert.Equal(t, "local", cfg.Embeddings.Provider)
	assert.Equal(t, 0.7, cfg.Vector.DefaultHybridWeight)
}

func TestLoad_EnvOverride(t *testing.T) {
	envSnapshot(t)
	t.Setenv("KG_PORT", "9999")
	t.Setenv("KG_EMBEDDINGS_MODEL", "custom-model")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
}

func TestLoad_TOMLFile(t *testing.T) {
	envSnapshot(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "0.0.0.0"
port = 9090

[embeddings]
provider = "remote"
model = "text-embed-1"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "remote", cfg.Embeddings.Provider)
}

func TestLoad_RejectsInvalidHybridWeight(t *testing.T) {
	envSnapshot(t)
	t.Setenv("KG_VECTOR_DEFAULT_HYBRID_WEIGHT", "1.5")

	_, err := Load("")
	require.Error(t, err)
}
