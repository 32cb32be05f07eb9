package sqlite

import (
	"context"
	"time"

	"github.com/kgraphd/kgraphd/internal/types"
)

func addObservation(ctx context.Context, e execer, entityName, content string) (int64, error) {
	if content == "" {
		return 0, &types.ToolError{Kind: types.KindInvalid, Field: "content", Reason: "must not be empty"}
	}
	entityID, err := entityIDByName(ctx, e, entityName)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := e.ExecContext(ctx,
		`INSERT INTO observations(entity_id, content, created_at) VALUES (?, ?, ?)`,
		entityID, content, now)
	if err != nil {
		return 0, wrapDBError("add_observation", err)
	}
	return res.LastInsertId()
}

func (s *Store) AddObservation(ctx context.Context, entityName, content string) (int64, error) {
	return addObservation(ctx, s.db, entityName, content)
}

// ObservationsForEntity returns the entity's observations ordered by
// created_at ascending, ties broken by id — the canonical per-entity order
// used by read_graph and, before reordering, by search.
func (s *Store) ObservationsForEntity(ctx context.Context, entityID int64) ([]types.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, content, created_at FROM observations
		 WHERE entity_id = ? ORDER BY created_at ASC, id ASC`, entityID)
	if err != nil {
		return nil, wrapDBError("observations_for_entity", err)
	}
	defer rows.Close()

	var out []types.Observation
	for rows.Next() {
		var o types.Observation
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &o.CreatedAt); err != nil {
			return nil, wrapDBError("observations_for_entity", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
