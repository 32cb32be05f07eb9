package graph

import (
	"context"
	"errors"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

// CreateSubgraph is the only tool that can combine entity creation with
// relation creation in one atomic call: it creates every entity first, then
// every relation (whose endpoints may be newly created in this same call or
// already pre-existing), then appends observations to pre-existing
// entities. A failure in any phase rolls back the whole call, since all
// three phases run inside one storage transaction.
func (g *Graph) CreateSubgraph(ctx context.Context, entities []types.NewEntityInput, relations []types.NewRelationInput, observationsForExisting []types.ObservationsForExisting) (*CreateSubgraphResult, error) {
	for _, r := range relations {
		if r.RelationType == "" {
			return nil, types.NewInvalid("relation_type", "must not be empty")
		}
	}

	var touchedNames []string
	result, err := withCheckpoint(ctx, g, func() (*CreateSubgraphResult, error) {
		result := &CreateSubgraphResult{}
		err := g.store.Tx(ctx, func(tx storage.Tx) error {
			for _, e := range entities {
				if _, err := tx.CreateEntity(ctx, e.Name, e.EntityType); err != nil {
					var te *types.ToolError
					if errors.As(err, &te) && te.Kind == types.KindAlreadyExists {
						result.SkippedEntities = append(result.SkippedEntities, e.Name)
						continue
					}
					return err
				}
				result.EntitiesCreated++
				touchedNames = append(touchedNames, e.Name)
				for _, content := range e.Observations {
					if _, err := tx.AddObservation(ctx, e.Name, content); err != nil {
						return err
					}
				}
			}

			for _, r := range relations {
				_, existed, err := tx.CreateRelation(ctx, r.From, r.To, r.RelationType)
				if err != nil {
					return err
				}
				if !existed {
					result.RelationsCreated++
				}
			}

			for _, oe := range observationsForExisting {
				for _, content := range oe.Observations {
					if _, err := tx.AddObservation(ctx, oe.EntityName, content); err != nil {
						return err
					}
					result.ObservationsAdded++
				}
				touchedNames = append(touchedNames, oe.EntityName)
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
	g.maybeAutoGenerateEmbeddings(ctx, touchedNames)
	return result, nil
}
