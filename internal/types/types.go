// Package types defines the core data model of the knowledge graph:
// entities, observations, relations, and embeddings.
package types

import "time"

// Entity is a named, typed node in the graph. Name is the external key in
// every tool call; ID is an internal, opaque identifier never surfaced to
// clients.
type Entity struct {
	ID         int64     `json:"-"`
	Name       string    `json:"name"`
	EntityType string    `json:"entity_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Observations is populated by read paths that hydrate an entity's
	// observation list; it is not a database column.
	Observations []Observation `json:"observations,omitempty"`
}

// Observation is an atomic, append-only text statement about one entity.
type Observation struct {
	ID        int64     `json:"-"`
	EntityID  int64     `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Relation is a directed, typed edge between two entities. Identity is the
// (FromEntity, ToEntity, RelationType) triple.
type Relation struct {
	ID           int64     `json:"-"`
	FromEntity   string    `json:"from_entity"`
	ToEntity     string    `json:"to_entity"`
	RelationType string    `json:"relation_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Embedding is a vector representation of an entity's textual content under
// a specific model. The composite key is (EntityID, ModelName).
type Embedding struct {
	EntityID   int64     `json:"-"`
	ModelName  string    `json:"model_name"`
	Dimensions int       `json:"dimensions"`
	Vector     []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// SchemaMetadata is the single-row record tracking the applied schema
// version, maintained only by the migration routine.
type SchemaMetadata struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats summarizes graph size for diagnostics.
type Stats struct {
	EntityCount        int `json:"entity_count"`
	RelationCount       int `json:"relation_count"`
	ObservationCount    int `json:"observation_count"`
	DistinctEntityTypes int `json:"distinct_entity_types"`
	DistinctRelationTypes int `json:"distinct_relation_types"`
}

// Graph is the full dump shape returned by read_graph.
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// NewEntityInput is one element of the create_entities batch.
type NewEntityInput struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

// NewRelationInput is one element of the create_relations / create_subgraph
// relation batch.
type NewRelationInput struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

// ObservationsForExisting appends observations to an already-existing
// entity as part of create_subgraph.
type ObservationsForExisting struct {
	EntityName   string   `json:"entity_name"`
	Observations []string `json:"observations"`
}
