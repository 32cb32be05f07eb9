package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/kgraphd/kgraphd/internal/types"
)

// createRelation creates the (from, to, relation_type) edge, or returns the
// id of the identical edge already present — creating it twice is a no-op,
// not an error, per the relation's logical identity.
func createRelation(ctx context.Context, e execer, from, to, relationType string) (int64, bool, error) {
	fromID, err := entityIDByName(ctx, e, from)
	if err != nil {
		return 0, false, err
	}
	toID, err := entityIDByName(ctx, e, to)
	if err != nil {
		return 0, false, err
	}

	var existingID int64
	err = e.QueryRowContext(ctx,
		`SELECT id FROM relations WHERE from_entity = ? AND to_entity = ? AND relation_type = ?`,
		fromID, toID, relationType).Scan(&existingID)
	if err == nil {
		return existingID, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, wrapDBError("create_relation", err)
	}

	now := time.Now().UTC()
	res, err := e.ExecContext(ctx,
		`INSERT INTO relations(from_entity, to_entity, relation_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		fromID, toID, relationType, now, now)
	if err != nil {
		if isUniqueConstraint(err) {
			// Lost a race with a concurrent identical insert; treat as the
			// existing-edge case rather than surfacing a spurious conflict.
			var id int64
			if qerr := e.QueryRowContext(ctx,
				`SELECT id FROM relations WHERE from_entity = ? AND to_entity = ? AND relation_type = ?`,
				fromID, toID, relationType).Scan(&id); qerr == nil {
				return id, true, nil
			}
		}
		return 0, false, wrapDBError("create_relation", err)
	}
	id, err := res.LastInsertId()
	return id, false, err
}

func (s *Store) CreateRelation(ctx context.Context, from, to, relationType string) (int64, bool, error) {
	return createRelation(ctx, s.db, from, to, relationType)
}

// DeleteRelations deletes each named edge by (from, to, relation_type).
// Idempotent: a non-existent edge is silently skipped.
func (s *Store) DeleteRelations(ctx context.Context, rels []types.NewRelationInput) (int, error) {
	var deleted int
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rels {
			fromID, err := entityIDByName(ctx, tx, r.From)
			if err != nil {
				continue // unresolved endpoint: nothing to delete, not an error
			}
			toID, err := entityIDByName(ctx, tx, r.To)
			if err != nil {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`DELETE FROM relations WHERE from_entity = ? AND to_entity = ? AND relation_type = ?`,
				fromID, toID, r.RelationType)
			if err != nil {
				return wrapDBError("delete_relation", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("delete_relation", err)
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
