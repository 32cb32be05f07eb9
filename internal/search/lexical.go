package search

import (
	"context"
	"sort"

	"github.com/kgraphd/kgraphd/internal/storage"
	"github.com/kgraphd/kgraphd/internal/types"
)

type entityScore struct {
	bestName float64
	obsSum   float64
	obsIDs   map[int64]bool
}

// Lexical runs the two-stream BM25 search described by the search and
// ranking component: entities_fts and observations_fts are queried
// independently, then folded together per entity as
// 2*best-name-match + sum(observation-match scores). Each result's
// observations are reordered so matches come first, preserving created-at
// order within each group.
func Lexical(ctx context.Context, store storage.Storage, query string, k int) ([]Result, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	entMatches, err := store.SearchEntitiesFTS(ctx, tokens)
	if err != nil {
		return nil, err
	}
	obsMatches, err := store.SearchObservationsFTS(ctx, tokens)
	if err != nil {
		return nil, err
	}

	scores := map[int64]*entityScore{}
	get := func(id int64) *entityScore {
		s, ok := scores[id]
		if !ok {
			s = &entityScore{obsIDs: map[int64]bool{}}
			scores[id] = s
		}
		return s
	}

	for _, m := range entMatches {
		s := get(m.EntityID)
		r := relevance(m.BM25)
		if r > s.bestName {
			s.bestName = r
		}
	}
	for _, m := range obsMatches {
		s := get(m.EntityID)
		s.obsSum += relevance(m.BM25)
		s.obsIDs[m.ObservationID] = true
	}

	type scored struct {
		entityID int64
		total    float64
	}
	var ordered []scored
	for id, s := range scores {
		ordered = append(ordered, scored{entityID: id, total: 2*s.bestName + s.obsSum})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].total != ordered[j].total {
			return ordered[i].total > ordered[j].total
		}
		return ordered[i].entityID < ordered[j].entityID
	})
	if k > 0 && len(ordered) > k {
		ordered = ordered[:k]
	}

	results := make([]Result, 0, len(ordered))
	for _, o := range ordered {
		ent, err := store.GetEntityByID(ctx, o.entityID)
		if err != nil {
			continue // entity deleted between the FTS query and hydration
		}
		matchedIDs := scores[o.entityID].obsIDs
		obsStrings, matchCount := reorderMatchesFirst(ent.Observations, matchedIDs)
		results = append(results, Result{
			Name:               ent.Name,
			EntityType:         ent.EntityType,
			Observations:       obsStrings,
			ObservationMatches: matchCount,
			Score:              o.total,
		})
	}
	return results, nil
}

// reorderMatchesFirst returns the entity's observation text in order,
// putting matched observations first (preserving created-at order within
// each group, which ObservationsForEntity already returned them in).
func reorderMatchesFirst(obs []types.Observation, matchedIDs map[int64]bool) ([]string, int) {
	var matched, rest []string
	count := 0
	for _, o := range obs {
		if matchedIDs[o.ID] {
			matched = append(matched, o.Content)
			count++
		} else {
			rest = append(rest, o.Content)
		}
	}
	return append(matched, rest...), count
}
