package graph

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

// AddObservations appends observations, in order, to an already-existing
// entity. external_refs must include entityName; validated before any
// write, per the tool layer's single most important correctness property.
func (g *Graph) AddObservations(ctx context.Context, entityName string, observations []string, externalRefs []string) (*AddObservationsResult, error) {
	if err := validateExternalRefs(ctx, g.store, []string{entityName}, externalRefs); err != nil {
		return nil, err
	}
	for _, o := range observations {
		if o == "" {
			return nil, types.NewInvalid("observations", "entries must not be empty")
		}
	}

	result, err := withCheckpoint(ctx, g, func() (*AddObservationsResult, error) {
		added := 0
		err := g.store.Tx(ctx, func(tx storage.Tx) error {
			for _, content := range observations {
				if _, err := tx.AddObservation(ctx, entityName, content); err != nil {
					return err
				}
				added++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &AddObservationsResult{Added: added}, nil
	})
	if err != nil {
		return nil, err
	}
	g.maybeAutoGenerateEmbeddings(ctx, []string{entityName})
	return result, nil
}
