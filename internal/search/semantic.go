package search

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/storage"
)

// Semantic embeds query via the current provider, runs the vector store's
// k-NN search, and hydrates (name, entity_type, observations) for each hit.
func Semantic(ctx context.Context, vs storage.VectorStore, provider embedding.Provider, store storage.Storage, query string, k int, threshold float64) ([]Result, error) {
	qvec, err := provider.Generate(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := vs.Search(ctx, qvec, k, threshold, provider.ModelName())
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		ent, err := store.GetEntityByID(ctx, m.EntityID)
		if err != nil {
			continue
		}
		obsStrings := make([]string, len(ent.Observations))
		for i, o := range ent.Observations {
			obsStrings[i] = o.Content
		}
		results = append(results, Result{
			Name:         ent.Name,
			EntityType:   ent.EntityType,
			Observations: obsStrings,
			Score:        m.Similarity,
		})
	}
	return results, nil
}
