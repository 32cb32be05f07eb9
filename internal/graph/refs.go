package graph

import (
	"context"

	"github.com/kgraphd/kgraphd/internal/types"
)

// validateExternalRefs enforces the single most important correctness
// property of the tool layer: every name a mutating call depends on must be
// both declared by the caller (present in refs) and already resolvable in
// storage. usedNames is the union of names the call actually touches (e.g.
// every from/to in a relations batch); it must be a subset of refs. refs
// themselves must all resolve to existing entities. Any gap fails the whole
// call with MissingEntities before a single write happens.
func validateExternalRefs(ctx context.Context, checker entityChecker, usedNames, refs []string) error {
	refSet := make(map[string]bool, len(refs))
	for _, r := range refs {
		refSet[r] = true
	}

	var undeclared []string
	for _, n := range usedNames {
		if !refSet[n] {
			undeclared = append(undeclared, n)
		}
	}

	missing, err := checker.EntitiesExist(ctx, refs)
	if err != nil {
		return err
	}

	allMissing := append([]string{}, undeclared...)
	for _, m := range missing {
		if !containsString(allMissing, m) {
			allMissing = append(allMissing, m)
		}
	}
	if len(allMissing) > 0 {
		return types.NewMissingEntities(allMissing)
	}
	return nil
}

// entityChecker is the narrow slice of storage.Storage that ref validation
// needs, so it can be exercised against either the top-level store or (were
// it ever needed) a transaction wrapper.
type entityChecker interface {
	EntitiesExist(ctx context.Context, names []string) ([]string, error)
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
