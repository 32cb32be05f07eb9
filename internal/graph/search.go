package graph

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/search"
)

// resolveK returns k if the caller supplied one, else g's configured
// default — an omitted k must not mean "unlimited".
func (g *Graph) resolveK(k *int) int {
	if k == nil {
		return g.searchDefaults.K
	}
	return *k
}

// resolveThreshold returns threshold if the caller supplied one, else g's
// configured default.
func (g *Graph) resolveThreshold(threshold *float64) float64 {
	if threshold == nil {
		return g.searchDefaults.Threshold
	}
	return *threshold
}

// resolveHybridWeight returns vectorWeight if the caller supplied one, else
// g's configured default. An explicit 0 or 1 is preserved exactly, since
// spec invariants pin search_hybrid(vector_weight=0)/(vector_weight=1) to
// the pure lexical/semantic results respectively.
func (g *Graph) resolveHybridWeight(vectorWeight *float64) float64 {
	if vectorWeight == nil {
		return g.searchDefaults.HybridWeight
	}
	return *vectorWeight
}

// SearchNodes runs the lexical (BM25, two-stream, OR-semantics) search
// described by the search and ranking component. A nil k falls back to
// config.Vector.DefaultK.
func (g *Graph) SearchNodes(ctx context.Context, query string, k *int) (*SearchResult, error) {
	results, err := search.Lexical(ctx, g.store, query, g.resolveK(k))
	if err != nil {
		return nil, err
	}
	return &SearchResult{Entities: results}, nil
}

// SearchEntitiesSemantic embeds query via the current provider and returns
// its vector k-NN hits, hydrated into entity records. A provider failure
// surfaces as ProviderUnavailable rather than degrading — unlike
// search_hybrid, this tool has no lexical fallback to degrade to. A nil k
// or threshold falls back to config.Vector.DefaultK/DefaultThreshold.
func (g *Graph) SearchEntitiesSemantic(ctx context.Context, query string, k *int, threshold *float64) (*SearchResult, error) {
	provider := g.registry.Current()
	results, err := search.Semantic(ctx, g.vs, provider, g.store, query, g.resolveK(k), g.resolveThreshold(threshold))
	if err != nil {
		return nil, err
	}
	return &SearchResult{Entities: results}, nil
}

// SearchHybrid fuses lexical and semantic search per the weighted-fusion
// formula; a failed semantic side degrades cleanly to lexical-only with a
// warning rather than failing the call. A nil k or vectorWeight falls back
// to config.Vector.DefaultK/DefaultHybridWeight.
func (g *Graph) SearchHybrid(ctx context.Context, query string, k *int, vectorWeight *float64) (*HybridSearchResult, error) {
	provider := g.registry.Current()
	result, err := search.Hybrid(ctx, g.store, g.vs, provider, query, g.resolveK(k), g.resolveHybridWeight(vectorWeight))
	if err != nil {
		return nil, err
	}
	return &HybridSearchResult{Entities: result.Results, Warning: result.Warning}, nil
}
