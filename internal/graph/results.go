package graph

import "github.com/kgraphd/kgraphd/internal/search"

// CreateEntitiesResult is the success shape of create_entities: entities
// that already existed are skipped (not updated) and reported separately
// so the rest of the batch can still succeed.
type CreateEntitiesResult struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}

// CreateRelationsResult is the success shape of create_relations.
type CreateRelationsResult struct {
	Created int `json:"created"`
}

// AddObservationsResult is the success shape of add_observations.
type AddObservationsResult struct {
	Added int `json:"added"`
}

// CreateSubgraphResult is the success shape of create_subgraph.
type CreateSubgraphResult struct {
	EntitiesCreated   int      `json:"entities_created"`
	RelationsCreated  int      `json:"relations_created"`
	ObservationsAdded int      `json:"observations_added"`
	SkippedEntities   []string `json:"skipped_entities,omitempty"`
}

// DeleteEntitiesResult is the success shape of delete_entities.
type DeleteEntitiesResult struct {
	Deleted int `json:"deleted"`
}

// DeleteRelationsResult is the success shape of delete_relations.
type DeleteRelationsResult struct {
	Deleted int `json:"deleted"`
}

// SearchResult wraps internal/search.Result for search_nodes and
// search_entities_semantic, whose external shape carries no warning field.
type SearchResult struct {
	Entities []search.Result `json:"entities"`
}

// HybridSearchResult wraps internal/search.HybridResult for search_hybrid.
type HybridSearchResult struct {
	Entities []search.Result `json:"entities"`
	Warning  string          `json:"warning,omitempty"`
}

// GenerateEmbeddingsResult is the success shape of generate_embeddings.
type GenerateEmbeddingsResult struct {
	Generated int      `json:"generated"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

// ConfigureEmbeddingsResult acknowledges a registry reconfiguration.
type ConfigureEmbeddingsResult struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
