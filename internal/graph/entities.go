package graph

import (
	"context"
	"errors"
	"strconv"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

// CreateEntities creates each entity and its observations in the given
// order. A name collision skips that entity (it is never updated) and adds
// it to the result's Skipped list; the rest of the batch still succeeds.
// This is the open-question decision spec.md records: skip-and-report, not
// update, not whole-call failure.
func (g *Graph) CreateEntities(ctx context.Context, entities []types.NewEntityInput) (*CreateEntitiesResult, error) {
	for i, e := range entities {
		idx := strconv.Itoa(i)
		if e.Name == "" {
			return nil, types.NewInvalid("entities["+idx+"].name", "must not be empty")
		}
		if e.EntityType == "" {
			return nil, types.NewInvalid("entities["+idx+"].entity_type", "must not be empty")
		}
	}

	var createdNames []string
	result, err := withCheckpoint(ctx, g, func() (*CreateEntitiesResult, error) {
		result := &CreateEntitiesResult{}
		err := g.store.Tx(ctx, func(tx storage.Tx) error {
			for _, e := range entities {
				if _, err := tx.CreateEntity(ctx, e.Name, e.EntityType); err != nil {
					var te *types.ToolError
					if errors.As(err, &te) && te.Kind == types.KindAlreadyExists {
						result.Skipped = append(result.Skipped, e.Name)
						continue
					}
					return err
				}
				result.Created++
				createdNames = append(createdNames, e.Name)
				for _, content := range e.Observations {
					if _, err := tx.AddObservation(ctx, e.Name, content); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	g.maybeAutoGenerateEmbeddings(ctx, createdNames)
	return result, nil
}

// DeleteEntities deletes each named entity, cascading to its observations,
// relations, and embeddings. Idempotent: names that do not exist are simply
// not counted, never an error.
func (g *Graph) DeleteEntities(ctx context.Context, names []string) (*DeleteEntitiesResult, error) {
	return withCheckpoint(ctx, g, func() (*DeleteEntitiesResult, error) {
		n, err := g.store.DeleteEntities(ctx, names)
		if err != nil {
			return nil, err
		}
		return &DeleteEntitiesResult{Deleted: n}, nil
	})
}
