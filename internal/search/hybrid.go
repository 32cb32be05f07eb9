package search

import (
	"context"
	"sort"

	"github.com/kgraphd/kgraphd/internal/embedding"
	"github.com/kgraphd/kgraphd/internal/storage"
)

// expansionFactor widens each side's candidate pool before fusion, so a
// result strong on only one axis still has a chance to surface in the
// fused top k.
const expansionFactor = 2

// Hybrid fuses lexical and semantic search per §4.5: each side's top k'
// (k' = expansionFactor*k) is score-normalized to [0,1] by dividing by that
// set's own max, then combined as
// fused = vectorWeight*semanticNorm + (1-vectorWeight)*lexicalNorm, with a
// side an entity is absent from contributing 0. If the semantic side fails
// (no provider configured, provider error), the result degrades cleanly to
// lexical-only with a warning.
func Hybrid(ctx context.Context, store storage.Storage, vs storage.VectorStore, provider embedding.Provider, query string, k int, vectorWeight float64) (*HybridResult, error) {
	kPrime := k * expansionFactor
	if kPrime < k {
		kPrime = k
	}

	lexResults, err := Lexical(ctx, store, query, kPrime)
	if err != nil {
		return nil, err
	}
	lexByName := normalizeByName(lexResults)

	semResults, semErr := Semantic(ctx, vs, provider, store, query, kPrime, 0)
	var warning string
	semByName := map[string]float64{}
	semEntities := map[string]Result{}
	if semErr != nil {
		warning = "semantic search unavailable: " + semErr.Error()
	} else {
		semByName = normalizeByName(semResults)
		for _, r := range semResults {
			semEntities[r.Name] = r
		}
	}

	lexEntities := map[string]Result{}
	for _, r := range lexResults {
		lexEntities[r.Name] = r
	}

	names := map[string]bool{}
	for n := range lexByName {
		names[n] = true
	}
	for n := range semByName {
		names[n] = true
	}

	fused := make([]Result, 0, len(names))
	for name := range names {
		lexNorm := lexByName[name]
		semNorm := semByName[name]
		score := vectorWeight*semNorm + (1-vectorWeight)*lexNorm

		base, ok := lexEntities[name]
		if !ok {
			base = semEntities[name]
		}
		base.Score = score
		base.ComponentScores = &ComponentScores{Lexical: lexNorm, Semantic: semNorm}
		fused = append(fused, base)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Name < fused[j].Name
	})
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}

	return &HybridResult{Results: fused, Warning: warning}, nil
}

// normalizeByName divides every result's score by the set's max score,
// guarding against an empty or all-zero set.
func normalizeByName(results []Result) map[string]float64 {
	out := map[string]float64{}
	if len(results) == 0 {
		return out
	}
	max := results[0].Score
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		for _, r := range results {
			out[r.Name] = 0
		}
		return out
	}
	for _, r := range results {
		out[r.Name] = r.Score / max
	}
	return out
}
