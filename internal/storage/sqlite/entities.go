package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kgraphd/kgraphd/internal/types"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting the row-level
// helpers below be shared between the top-level Store methods and the
// in-transaction Tx wrapper.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func createEntity(ctx context.Context, e execer, name, entityType string) (int64, error) {
	if name == "" {
		return 0, &types.ToolError{Kind: types.KindInvalid, Field: "name", Reason: "must not be empty"}
	}
	if entityType == "" {
		return 0, &types.ToolError{Kind: types.KindInvalid, Field: "entity_type", Reason: "must not be empty"}
	}
	now := time.Now().UTC()
	res, err := e.ExecContext(ctx,
		`INSERT INTO entities(name, entity_type, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, entityType, now, now)
	if err != nil {
		if isUniqueConstraint(err) {
			return 0, types.NewAlreadyExists(name)
		}
		return 0, wrapDBError("create_entity", err)
	}
	return res.LastInsertId()
}

func entityIDByName(ctx context.Context, e execer, name string) (int64, error) {
	var id int64
	err := e.QueryRowContext(ctx, `SELECT id FROM entities WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, types.NewNotFound(name)
	}
	if err != nil {
		return 0, wrapDBError("entity_id_by_name", err)
	}
	return id, nil
}

func entitiesExist(ctx context.Context, e execer, names []string) ([]string, error) {
	var missing []string
	for _, n := range names {
		if _, err := entityIDByName(ctx, e, n); err != nil {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

func (s *Store) CreateEntity(ctx context.Context, name, entityType string) (int64, error) {
	return createEntity(ctx, s.db, name, entityType)
}

func (s *Store) GetEntityByName(ctx context.Context, name string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, entity_type, created_at, updated_at FROM entities WHERE name = ?`, name)
	var ent types.Entity
	if err := row.Scan(&ent.ID, &ent.Name, &ent.EntityType, &ent.CreatedAt, &ent.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFound(name)
		}
		return nil, wrapDBError("get_entity", err)
	}
	obs, err := s.ObservationsForEntity(ctx, ent.ID)
	if err != nil {
		return nil, err
	}
	ent.Observations = obs
	return &ent, nil
}

func (s *Store) GetEntityByID(ctx context.Context, id int64) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, entity_type, created_at, updated_at FROM entities WHERE id = ?`, id)
	var ent types.Entity
	if err := row.Scan(&ent.ID, &ent.Name, &ent.EntityType, &ent.CreatedAt, &ent.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFound(fmt.Sprintf("entity id %d", id))
		}
		return nil, wrapDBError("get_entity_by_id", err)
	}
	obs, err := s.ObservationsForEntity(ctx, ent.ID)
	if err != nil {
		return nil, err
	}
	ent.Observations = obs
	return &ent, nil
}

func (s *Store) EntitiesExist(ctx context.Context, names []string) ([]string, error) {
	return entitiesExist(ctx, s.db, names)
}

// DeleteEntities deletes each named entity, cascading to its observations,
// relations, and embeddings via ON DELETE CASCADE. Idempotent: a name that
// does not exist is silently skipped and not counted.
func (s *Store) DeleteEntities(ctx context.Context, names []string) (int, error) {
	var deleted int
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE name = ?`, name)
			if err != nil {
				return wrapDBError("delete_entity", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrapDBError("delete_entity", err)
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

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}
