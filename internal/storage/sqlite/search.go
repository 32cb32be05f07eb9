package sqlite

import (
	"context"
	"strings"

	"github.com/kgraphd/kgraphd/internal/storage"
)

// ftsOrQuery builds an FTS5 MATCH expression joining tokens with explicit
// OR semantics. Each token is quoted so it is treated as a literal term
// rather than being re-parsed as FTS5 query syntax (a token containing a
// hyphen or colon would otherwise be misread as an operator).
func ftsOrQuery(tokens []string) string {
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// SearchEntitiesFTS matches tokens (OR-joined) against entities_fts(name,
// entity_type). The bm25 auxiliary function must be called against the FTS
// table itself, not an alias or a joined view — querying the virtual table
// directly, rather than joining it to entities, is what that constraint
// requires here.
func (s *Store) SearchEntitiesFTS(ctx context.Context, tokens []string) ([]storage.FTSMatch, error) {
	q := ftsOrQuery(tokens)
	if q == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, bm25(entities_fts) FROM entities_fts WHERE entities_fts MATCH ?`, q)
	if err != nil {
		return nil, wrapDBError("search_entities_fts", err)
	}
	defer rows.Close()

	var out []storage.FTSMatch
	for rows.Next() {
		var m storage.FTSMatch
		if err := rows.Scan(&m.EntityID, &m.BM25); err != nil {
			return nil, wrapDBError("search_entities_fts", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchObservationsFTS matches tokens (OR-joined) against
// observations_fts(content), returning both the observation id and its
// owning entity id so the search layer can group scores per entity and
// later reorder each entity's observation list to put matches first.
func (s *Store) SearchObservationsFTS(ctx context.Context, tokens []string) ([]storage.FTSMatch, error) {
	q := ftsOrQuery(tokens)
	if q == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.entity_id, o.id, bm25(observations_fts)
		FROM observations_fts
		JOIN observations o ON o.id = observations_fts.rowid
		WHERE observations_fts MATCH ?`, q)
	if err != nil {
		return nil, wrapDBError("search_observations_fts", err)
	}
	defer rows.Close()

	var out []storage.FTSMatch
	for rows.Next() {
		var m storage.FTSMatch
		if err := rows.Scan(&m.EntityID, &m.ObservationID, &m.BM25); err != nil {
			return nil, wrapDBError("search_observations_fts", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
