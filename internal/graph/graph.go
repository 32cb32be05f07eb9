// Package graph implements the tool layer (C4): the thirteen operations
// exposed to protocol clients, each validated before any write and made
// atomic with respect to the storage engine.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kgraphd/kgraphd/internal/compact"
	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/storage"
)

// Graph wraps the storage engine, vector store, and embedding registry
// behind the tool-layer contract. Both protocol adapters (HTTP+SSE and
// stdio) dispatch into the same *Graph instance; every method here is
// already safe for concurrent use because the storage engine owns its own
// locking.
type Graph struct {
	store    storage.Storage
	vs       storage.VectorStore
	registry *embedding.Registry
	info     ServerInfo

	// remoteEmbeddingEndpoint is the URL configure_embeddings wires into a
	// freshly constructed RemoteProvider when provider="remote". It is a
	// deployment-level setting (the endpoint itself, unlike the API key and
	// model, isn't passed per-call), so it lives on Graph rather than in the
	// tool's arguments.
	remoteEmbeddingEndpoint string

	// compactor, when set, folds an entity's observations into a bounded
	// summary before GenerateEmbeddings embeds them; nil means "use raw
	// concatenation" (the default, no API key required).
	compactor compact.Summarizer

	// searchDefaults fills in k/threshold/vector_weight for a tool call
	// that omits them, per config.Vector.
	searchDefaults SearchDefaults

	// embeddingBatchSize is the config.Embeddings.BatchSize fallback used
	// by GenerateEmbeddings when a tool call omits batch_size (<= 0). Zero
	// means "use the package default" (defaultEmbeddingBatchSize).
	embeddingBatchSize int

	// autoGenerateEmbeddings mirrors config.Embeddings.AutoGenerate: when
	// set, a successful create_entities/add_observations/create_subgraph
	// call triggers a best-effort GenerateEmbeddings for the entities it
	// just touched, so search_entities_semantic/search_hybrid stay useful
	// without an operator remembering to call generate_embeddings by hand.
	autoGenerateEmbeddings bool
}

// SetEmbeddingDefaults installs config.Embeddings' startup defaults:
// batchSize as GenerateEmbeddings' fallback when a call omits batch_size,
// and autoGenerate to trigger embedding generation automatically after a
// mutating call.
func (g *Graph) SetEmbeddingDefaults(batchSize int, autoGenerate bool) {
	g.embeddingBatchSize = batchSize
	g.autoGenerateEmbeddings = autoGenerate
}

// maybeAutoGenerateEmbeddings best-effort embeds names when auto_generate
// is enabled. Embedding failures (no provider reachable, rate limit)
// never fail the mutating call that triggered them — auto-generation is a
// convenience, not a correctness dependency of create_entities/
// add_observations/create_subgraph.
func (g *Graph) maybeAutoGenerateEmbeddings(ctx context.Context, names []string) {
	if !g.autoGenerateEmbeddings || len(names) == 0 {
		return
	}
	if _, err := g.GenerateEmbeddings(ctx, names, false, 0); err != nil {
		slog.Default().Warn("auto-generate embeddings failed", "error", err, "entity_count", len(names))
	}
}

// SearchDefaults mirrors config.Vector: the fallback k/threshold/
// vector_weight applied by SearchNodes/SearchEntitiesSemantic/SearchHybrid
// when a tool call's own argument is nil (omitted). An explicit value,
// including an explicit zero, is never overridden — only omission falls
// back to these.
type SearchDefaults struct {
	K            int
	Threshold    float64
	HybridWeight float64
}

// defaultSearchDefaults is what a Graph built without SetSearchDefaults
// (e.g. in a unit test) falls back to; it mirrors config.setDefaults'
// vector.* defaults so behavior doesn't silently change between a fully
// wired server and a bare Graph.
var defaultSearchDefaults = SearchDefaults{K: 10, Threshold: 0.3, HybridWeight: 0.7}

// SetSearchDefaults installs the configured vector-store fallback
// parameters; configure_embeddings does not touch these since they are
// deployment-level settings, not provider state.
func (g *Graph) SetSearchDefaults(d SearchDefaults) {
	g.searchDefaults = d
}

// SetCompactor installs an observation compactor used by GenerateEmbeddings
// for entities with enough observations that raw concatenation would make a
// poor embedding input. Passing nil restores raw-concatenation behavior.
func (g *Graph) SetCompactor(c compact.Summarizer) {
	g.compactor = c
}

// ServerInfo is the static identity reported by get_server_info and, via
// the runtime supervisor, the /health endpoint.
type ServerInfo struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	DatabasePath string `json:"database_path"`
}

// New constructs a Graph over the given storage engine, vector store, and
// embedding registry.
func New(store storage.Storage, vs storage.VectorStore, registry *embedding.Registry, info ServerInfo, remoteEmbeddingEndpoint string) *Graph {
	return &Graph{
		store:                   store,
		vs:                      vs,
		registry:                registry,
		info:                    info,
		remoteEmbeddingEndpoint: remoteEmbeddingEndpoint,
		searchDefaults:          defaultSearchDefaults,
	}
}

// withCheckpoint runs fn and, if it succeeds, forces a WAL checkpoint
// before returning — the post-commit barrier that makes a mutating tool
// call's effects visible to the very next tool call from any client, any
// adapter. The checkpoint must happen here, inside the tool method, and
// not left to the protocol adapter: the adapter serializes the response
// after this function returns, so the ordering guarantee only holds if the
// checkpoint lands before that point.
func withCheckpoint[T any](ctx context.Context, g *Graph, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	if cerr := g.store.Checkpoint(ctx); cerr != nil {
		var zero T
		return zero, fmt.Errorf("post-commit checkpoint: %w", cerr)
	}
	return result, nil
}
