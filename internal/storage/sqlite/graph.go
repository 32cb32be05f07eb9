package sqlite

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/types"
)

// ReadGraph returns every entity (with its ordered observations) and every
// relation. There is no pagination: the spec treats this as a full dump.
func (s *Store) ReadGraph(ctx context.Context) (*types.Graph, error) {
	entRows, err := s.db.QueryContext(ctx,
		`SELECT id, name, entity_type, created_at, updated_at FROM entities ORDER BY id ASC`)
	if err != nil {
		return nil, wrapDBError("read_graph.entities", err)
	}
	defer entRows.Close()

	var entities []types.Entity
	for entRows.Next() {
		var e types.Entity
		if err := entRows.Scan(&e.ID, &e.Name, &e.EntityType, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, wrapDBError("read_graph.entities", err)
		}
		entities = append(entities, e)
	}
	if err := entRows.Err(); err != nil {
		return nil, wrapDBError("read_graph.entities", err)
	}

	for i := range entities {
		obs, err := s.ObservationsForEntity(ctx, entities[i].ID)
		if err != nil {
			return nil, err
		}
		entities[i].Observations = obs
	}

	relRows, err := s.db.QueryContext(ctx, `
		SELECT fe.name, te.name, r.relation_type, r.created_at, r.updated_at
		FROM relations r
		JOIN entities fe ON fe.id = r.from_entity
		JOIN entities te ON te.id = r.to_entity
		ORDER BY r.id ASC`)
	if err != nil {
		return nil, wrapDBError("read_graph.relations", err)
	}
	defer relRows.Close()

	var relations []types.Relation
	for relRows.Next() {
		var r types.Relation
		if err := relRows.Scan(&r.FromEntity, &r.ToEntity, &r.RelationType, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrapDBError("read_graph.relations", err)
		}
		relations = append(relations, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, wrapDBError("read_graph.relations", err)
	}

	return &types.Graph{Entities: entities, Relations: relations}, nil
}

// GetStats returns entity/relation/observation counts and the number of
// distinct entity_type and relation_type values present.
func (s *Store) GetStats(ctx context.Context) (*types.Stats, error) {
	var stats types.Stats
	queries := []struct {
		dest *int
		sql  string
	}{
		{&stats.EntityCount, `SELECT count(*) FROM entities`},
		{&stats.RelationCount, `SELECT count(*) FROM relations`},
		{&stats.ObservationCount, `SELECT count(*) FROM observations`},
		{&stats.DistinctEntityTypes, `SELECT count(DISTINCT entity_type) FROM entities`},
		{&stats.DistinctRelationTypes, `SELECT count(DISTINCT relation_type) FROM relations`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, wrapDBError("get_stats", err)
		}
	}
	return &stats, nil
}
