package graph

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

// CreateRelations creates each relation; external_refs is required and must
// be a superset of every from/to used in the batch, and every ref must
// already resolve to an existing entity — validated before any write, so a
// missing reference never produces a partial commit. Creating an edge that
// already exists (by its (from, to, relation_type) identity) is a no-op,
// not an error.
func (g *Graph) CreateRelations(ctx context.Context, relations []types.NewRelationInput, externalRefs []string) (*CreateRelationsResult, error) {
	if len(externalRefs) == 0 {
		return nil, types.NewInvalid("external_refs", "required and must declare every entity this batch depends on")
	}

	var used []string
	for _, r := range relations {
		if r.RelationType == "" {
			return nil, types.NewInvalid("relation_type", "must not be empty")
		}
		used = append(used, r.From, r.To)
	}
	used = dedupeStrings(used)

	if err := validateExternalRefs(ctx, g.store, used, externalRefs); err != nil {
		return nil, err
	}

	return withCheckpoint(ctx, g, func() (*CreateRelationsResult, error) {
		created := 0
		err := g.store.Tx(ctx, func(tx storage.Tx) error {
			for _, r := range relations {
				_, existed, err := tx.CreateRelation(ctx, r.From, r.To, r.RelationType)
				if err != nil {
					return err
				}
				if !existed {
					created++
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &CreateRelationsResult{Created: created}, nil
	})
}

// DeleteRelations deletes each named edge. Idempotent: an edge that does not
// exist is silently skipped.
func (g *Graph) DeleteRelations(ctx context.Context, relations []types.NewRelationInput) (*DeleteRelationsResult, error) {
	return withCheckpoint(ctx, g, func() (*DeleteRelationsResult, error) {
		n, err := g.store.DeleteRelations(ctx, relations)
		if err != nil {
			return nil, err
		}
		return &DeleteRelationsResult{Deleted: n}, nil
	})
}
