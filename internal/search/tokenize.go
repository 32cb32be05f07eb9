package search

import "strings"

// tokenize splits a query on whitespace. Multi-token queries are combined
// with OR semantics by the storage layer's FTS query builder: a document
// matching any token is a candidate. This is a deliberate correctness fix
// over AND semantics, which returns zero results for natural multi-word
// queries.
func tokenize(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// relevance converts a raw BM25 score (where lower is a better match) into
// a positive number where higher is better. Negation is monotone with the
// raw score and cheaper than a reciprocal, and is exact even when raw is
// very negative (a reciprocal can lose precision for extreme matches).
func relevance(rawBM25 float64) float64 {
	return -rawBM25
}
