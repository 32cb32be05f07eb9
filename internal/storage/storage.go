// Package storage defines the interfaces the graph API and search layers
// use to reach the persistent store. The only implementation is the
// embedded SQLite engine in the sqlite subpackage; the interface exists so
// callers depend on a contract rather than a concrete driver.
package storage

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/types"
)

// FTSMatch is one row returned by a full-text query against either the
// entities or observations shadow index, before the search package folds
// per-entity scores together.
type FTSMatch struct {
	EntityID int64
	// ObservationID is zero for entities_fts matches.
	ObservationID int64
	// BM25 is the raw score from the FTS engine's bm25() auxiliary
	// function — lower is better, per SQLite convention.
	BM25 float64
}

// Storage is the full contract of the storage engine (graph CRUD, metadata,
// durability, and lexical full-text access). It is implemented by
// sqlite.Store; the graph API (internal/graph) and search layer
// (internal/search) are written against this interface, not the concrete
// type, so they can be exercised with a temp-file SQLite store in tests.
type Storage interface {
	// Entities.
	CreateEntity(ctx context.Context, name, entityType string) (int64, error)
	GetEntityByName(ctx context.Context, name string) (*types.Entity, error)
	GetEntityByID(ctx context.Context, id int64) (*types.Entity, error)
	EntitiesExist(ctx context.Context, names []string) (missing []string, err error)
	DeleteEntities(ctx context.Context, names []string) (int, error)

	// Observations.
	AddObservation(ctx context.Context, entityName, content string) (int64, error)
	ObservationsForEntity(ctx context.Context, entityID int64) ([]types.Observation, error)

	// Relations.
	CreateRelation(ctx context.Context, from, to, relationType string) (id int64, existed bool, err error)
	DeleteRelations(ctx context.Context, rels []types.NewRelationInput) (int, error)

	// Graph-wide reads.
	ReadGraph(ctx context.Context) (*types.Graph, error)
	GetStats(ctx context.Context) (*types.Stats, error)

	// Lexical full text, consumed by internal/search.
	SearchEntitiesFTS(ctx context.Context, tokens []string) ([]FTSMatch, error)
	SearchObservationsFTS(ctx context.Context, tokens []string) ([]FTSMatch, error)

	// Transactional composite used by create_subgraph and the batch tools;
	// fn runs inside one transaction, and its external_refs have already
	// been validated by the caller (internal/graph) before Tx is invoked.
	Tx(ctx context.Context, fn func(Tx) error) error

	// Checkpoint forces buffered WAL writes to be visible to any other
	// reader on the same database file. Called after every mutating tool
	// invocation, before the adapter responds to its client.
	Checkpoint(ctx context.Context) error

	Close() error
}

// Tx is the subset of Storage usable inside a Storage.Tx callback. It
// mirrors the mutating half of Storage so batch operations (create_entities,
// create_relations, create_subgraph) can compose multiple writes into one
// transaction while reusing the same per-row logic as the single-shot
// tools.
type Tx interface {
	CreateEntity(ctx context.Context, name, entityType string) (int64, error)
	AddObservation(ctx context.Context, entityName, content string) (int64, error)
	CreateRelation(ctx context.Context, from, to, relationType string) (id int64, existed bool, err error)
	EntitiesExist(ctx context.Context, names []string) (missing []string, err error)
}

// VectorStore persists per-(entity, model) embedding rows and performs
// cosine-similarity retrieval over them. It is backed by the same SQLite
// file as Storage (sqlite.Store implements both), kept as a separate
// interface because callers (internal/graph, internal/search) only
// need this narrower surface.
type VectorStore interface {
	Put(ctx context.Context, entityID int64, modelName string, vector []float32) error
	BatchPut(ctx context.Context, entries []VectorEntry) error
	Get(ctx context.Context, entityID int64, modelName string) ([]float32, error)
	Exists(ctx context.Context, entityID int64, modelName string) (bool, error)
	Delete(ctx context.Context, entityID int64, modelName string) error
	Search(ctx context.Context, queryVector []float32, k int, threshold float64, modelName string) ([]VectorMatch, error)
}

// VectorEntry is one row of a BatchPut call.
type VectorEntry struct {
	EntityID  int64
	ModelName string
	Vector    []float32
}

// VectorMatch is one hit from VectorStore.Search, ordered by descending
// Similarity by the implementation.
type VectorMatch struct {
	EntityID   int64
	Similarity float64
}
