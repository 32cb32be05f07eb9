package sqlite

import (
	"context"
	"database/sql"

	"github.com/kgraphd/kgraphd/internal/storage"
)

// txWrapper adapts a *sql.Tx to storage.Tx by reusing the same row-level
// helpers the top-level Store methods call, so a batch tool composed of
// several Tx calls behaves identically to the equivalent sequence of
// single-shot calls, just inside one transaction.
type txWrapper struct {
	tx *sql.Tx
}

func (t *txWrapper) CreateEntity(ctx context.Context, name, entityType string) (int64, error) {
	return createEntity(ctx, t.tx, name, entityType)
}

func (t *txWrapper) AddObservation(ctx context.Context, entityName, content string) (int64, error) {
	return addObservation(ctx, t.tx, entityName, content)
}

func (t *txWrapper) CreateRelation(ctx context.Context, from, to, relationType string) (int64, bool, error) {
	return createRelation(ctx, t.tx, from, to, relationType)
}

func (t *txWrapper) EntitiesExist(ctx context.Context, names []string) ([]string, error) {
	return entitiesExist(ctx, t.tx, names)
}

// Tx runs fn inside one database transaction, rolling back on any error fn
// returns (including a panic recovered by database/sql's own Tx plumbing
// is not attempted here; callers are expected not to panic inside fn).
func (s *Store) Tx(ctx context.Context, fn func(storage.Tx) error) error {
	return s.runTx(ctx, func(tx *sql.Tx) error {
		return fn(&txWrapper{tx: tx})
	})
}
