package graph

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/types"
)

// GraphDump is read_graph's wire shape: {entities: [{name, entity_type,
// observations: [string, ...]}], relations: [{from_entity, to_entity,
// relation_type}]}, exactly as the graph dump contract fixes it.
// types.Graph/types.Entity carry internal bookkeeping (ids, created_at,
// updated_at, per-observation rows) that the dump contract doesn't
// include, so ReadGraph flattens into this dedicated type rather than
// marshaling the storage-layer structs directly.
type GraphDump struct {
	Entities  []EntityDump   `json:"entities"`
	Relations []RelationDump `json:"relations"`
}

// EntityDump is one read_graph entity row, observations flattened to their
// content strings in the same order storage returned them (created_at,
// then id).
type EntityDump struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

// RelationDump is one read_graph relation row.
type RelationDump struct {
	FromEntity   string `json:"from_entity"`
	ToEntity     string `json:"to_entity"`
	RelationType string `json:"relation_type"`
}

// ReadGraph returns every entity (with its ordered observations) and every
// relation. There is no pagination: a full dump.
func (g *Graph) ReadGraph(ctx context.Context) (*GraphDump, error) {
	raw, err := g.store.ReadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return dumpGraph(raw), nil
}

func dumpGraph(raw *types.Graph) *GraphDump {
	entities := make([]EntityDump, len(raw.Entities))
	for i, e := range raw.Entities {
		obs := make([]string, len(e.Observations))
		for j, o := range e.Observations {
			obs[j] = o.Content
		}
		entities[i] = EntityDump{Name: e.Name, EntityType: e.EntityType, Observations: obs}
	}
	relations := make([]RelationDump, len(raw.Relations))
	for i, r := range raw.Relations {
		relations[i] = RelationDump{FromEntity: r.FromEntity, ToEntity: r.ToEntity, RelationType: r.RelationType}
	}
	return &GraphDump{Entities: entities, Relations: relations}
}

// GetStats returns entity/relation/observation counts and distinct-type
// tallies, for diagnostics.
func (g *Graph) GetStats(ctx context.Context) (*types.Stats, error) {
	return g.store.GetStats(ctx)
}

// GetServerInfo returns the static identity this process reports, mirrored
// by the runtime supervisor's /health endpoint.
func (g *Graph) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	info := g.info
	return &info, nil
}
