package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

// defaultEmbeddingBatchSize bounds how many texts are sent to the provider
// in one BatchGenerate call when the caller doesn't specify one.
const defaultEmbeddingBatchSize = 32

// maxConcurrentEmbeddingBatches bounds how many BatchGenerate calls run at
// once against the provider, so a large generate_embeddings call fans out
// without opening an unbounded number of connections to a local Ollama
// daemon or a rate-limited remote endpoint.
const maxConcurrentEmbeddingBatches = 4

// compactionThreshold is the observation count at or above which an entity's
// source text is compacted (when a Summarizer is configured) rather than
// concatenated raw, keeping the embedding input bounded for heavily
// observed entities.
const compactionThreshold = 8

// GenerateEmbeddings builds each selected entity's embedding source text
// (its name joined with its observations) and upserts a vector for it under
// the registry's current model. With force=false, an entity that already
// carries an embedding for that model is skipped. entityNames, when empty,
// means "every entity"; filtering to missing-only then happens per-entity
// regardless, exactly as with an explicit id list.
func (g *Graph) GenerateEmbeddings(ctx context.Context, entityNames []string, force bool, batchSize int) (*GenerateEmbeddingsResult, error) {
	if batchSize <= 0 {
		batchSize = g.embeddingBatchSize
	}
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	provider := g.registry.Current()

	entities, err := g.resolveEmbeddingTargets(ctx, entityNames)
	if err != nil {
		return nil, err
	}

	result := &GenerateEmbeddingsResult{}
	var pending []types.Entity
	for _, ent := range entities {
		if !force {
			exists, err := g.vs.Exists(ctx, ent.ID, provider.ModelName())
			if err != nil {
				return nil, err
			}
			if exists {
				result.Skipped++
				continue
			}
		}
		pending = append(pending, ent)
	}

	var batches [][]types.Entity
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[start:end])
	}

	// Batches are independent provider calls, so they fan out with bounded
	// concurrency; only the shared result counters need a lock, guarded
	// separately from the errgroup's own error aggregation since a failed
	// batch is recorded as Failed rather than aborting its siblings.
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentEmbeddingBatches)
	for _, batch := range batches {
		batch := batch
		eg.Go(func() error {
			texts := make([]string, len(batch))
			for i, ent := range batch {
				texts[i] = g.embeddingSourceTextFor(egCtx, ent)
			}

			vectors, err := provider.BatchGenerate(egCtx, texts)
			if err != nil {
				mu.Lock()
				for _, ent := range batch {
					result.Failed = append(result.Failed, ent.Name)
				}
				mu.Unlock()
				return nil
			}

			entries := make([]storage.VectorEntry, len(batch))
			for i, ent := range batch {
				entries[i] = storage.VectorEntry{EntityID: ent.ID, ModelName: provider.ModelName(), Vector: vectors[i]}
			}
			if err := g.vs.BatchPut(egCtx, entries); err != nil {
				return err
			}

			mu.Lock()
			result.Generated += len(batch)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := g.store.Checkpoint(ctx); err != nil {
		return nil, fmt.Errorf("post-commit checkpoint: %w", err)
	}
	return result, nil
}

// embeddingSourceText joins an entity's name with its observation contents,
// the text the embedding provider generates a vector from.
func embeddingSourceText(ent types.Entity) string {
	parts := make([]string, 0, len(ent.Observations)+1)
	parts = append(parts, ent.Name)
	for _, o := range ent.Observations {
		parts = append(parts, o.Content)
	}
	return strings.Join(parts, "\n")
}

// embeddingSourceTextFor compacts an entity's observations via g.compactor
// when one is configured and the entity has accumulated enough observations
// to warrant it; any compaction failure (missing API key, rate limit after
// retries, unreachable endpoint) falls back to raw concatenation rather
// than failing the whole batch.
func (g *Graph) embeddingSourceTextFor(ctx context.Context, ent types.Entity) string {
	if g.compactor == nil || len(ent.Observations) < compactionThreshold {
		return embeddingSourceText(ent)
	}
	contents := make([]string, len(ent.Observations))
	for i, o := range ent.Observations {
		contents[i] = o.Content
	}
	summary, err := g.compactor.Summarize(ctx, ent.Name, contents)
	if err != nil {
		return embeddingSourceText(ent)
	}
	return ent.Name + "\n" + summary
}

// resolveEmbeddingTargets returns the entities to consider: every entity in
// the graph if names is empty, or just the named ones (missing names are
// silently ignored — generate_embeddings is a maintenance tool, not a
// reference-validated mutation).
func (g *Graph) resolveEmbeddingTargets(ctx context.Context, names []string) ([]types.Entity, error) {
	graph, err := g.store.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return graph.Entities, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []types.Entity
	for _, e := range graph.Entities {
		if want[e.Name] {
			out = append(out, e)
		}
	}
	return out, nil
}

// ConfigureEmbeddings replaces the registry's current provider.
func (g *Graph) ConfigureEmbeddings(ctx context.Context, provider, model, apiKey string) (*ConfigureEmbeddingsResult, error) {
	var p embedding.Provider
	switch provider {
	case "local", "":
		p = embedding.NewLocalProvider(model)
	case "remote":
		rp, err := embedding.NewRemoteProvider(embedding.RemoteProviderConfig{
			APIKey:   apiKey,
			Model:    model,
			Endpoint: g.remoteEmbeddingEndpoint,
		})
		if err != nil {
			return nil, types.NewProviderUnavailable(err.Error())
		}
		p = rp
	default:
		return nil, types.NewInvalid("provider", "must be \"local\" or \"remote\"")
	}

	g.registry.Configure(p)
	return &ConfigureEmbeddingsResult{Provider: provider, Model: p.ModelName()}, nil
}
