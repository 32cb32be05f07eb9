package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// migrate brings the schema up to schemaVersion. It is idempotent: a
// database already at schemaVersion is left untouched. A timestamped copy
// of the file is taken before any migration work begins, independent of
// the runtime supervisor's own backup policy (§4.7), since a migration bug
// must not be able to destroy the only copy of the data.
func (s *Store) migrate(ctx context.Context) error {
	version, err := s.currentSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if s.path != "" && s.path != ":memory:" {
		if err := snapshotBeforeMigration(s.path); err != nil {
			s.logger.Warn("pre-migration snapshot failed", "error", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}

	legacyRows, legacyErr := legacyJSONObservations(ctx, tx)
	if legacyErr != nil {
		s.logger.Warn("no legacy observations column to migrate", "error", legacyErr)
	}

	if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
		return fmt.Errorf("apply schema v2: %w", err)
	}

	for _, row := range legacyRows {
		for i, content := range row.observations {
			createdAt := row.entityCreatedAt
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO observations(entity_id, content, created_at) VALUES (?, ?, ?)`,
				row.entityID, content, createdAt); err != nil {
				return fmt.Errorf("migrate legacy observation %d for entity %d: %w", i, row.entityID, err)
			}
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_metadata(version, description, applied_at, updated_at) VALUES (?, ?, ?, ?)`,
		schemaVersion, "add observations/relations/embeddings tables and FTS indexes", now, now); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

func (s *Store) currentSchemaVersion(ctx context.Context) (int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_metadata'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRowContext(ctx, `SELECT version FROM schema_metadata ORDER BY version DESC LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

type legacyObservationRow struct {
	entityID        int64
	entityCreatedAt time.Time
	observations    []string
}

// legacyJSONObservations parses the legacy per-entity JSON-array
// observations column, if the entities table still carries it (schema
// version < 2). Returns an error if the column is absent, which is the
// expected path for a fresh database.
func legacyJSONObservations(ctx context.Context, tx *sql.Tx) ([]legacyObservationRow, error) {
	var colCount int
	err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_table_info('entities') WHERE name='observations'`).Scan(&colCount)
	if err != nil || colCount == 0 {
		return nil, fmt.Errorf("legacy observations column absent")
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, created_at, observations FROM entities WHERE observations IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []legacyObservationRow
	for rows.Next() {
		var id int64
		var createdAt time.Time
		var raw string
		if err := rows.Scan(&id, &createdAt, &raw); err != nil {
			return nil, err
		}
		var obs []string
		if err := json.Unmarshal([]byte(raw), &obs); err != nil {
			continue
		}
		out = append(out, legacyObservationRow{entityID: id, entityCreatedAt: createdAt, observations: obs})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `ALTER TABLE entities DROP COLUMN observations`); err != nil {
		return out, fmt.Errorf("drop legacy observations column: %w", err)
	}
	return out, rows.Err()
}

// snapshotBeforeMigration copies the database file (and its WAL/SHM
// siblings, if present) to a timestamped sibling path before a migration
// runs, independent of the supervisor's periodic backup policy.
func snapshotBeforeMigration(dbPath string) error {
	dest := fmt.Sprintf("%s.premigration.%d", dbPath, time.Now().UTC().Unix())
	return copyFile(dbPath, dest)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
