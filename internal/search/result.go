package search

// ComponentScores annotates a hybrid result with the lexical and semantic
// contributions that were fused into its final score.
type ComponentScores struct {
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
}

// Result is one matched entity, shaped to match the external search result
// contract: entity payload, total score, observation-match count, and the
// entity's observations reordered so matches come first.
type Result struct {
	Name               string           `json:"name"`
	EntityType         string           `json:"entity_type"`
	Observations       []string         `json:"observations"`
	ObservationMatches int              `json:"observation_matches"`
	Score              float64          `json:"score"`
	ComponentScores    *ComponentScores `json:"component_scores,omitempty"`
}

// HybridResult additionally carries a warning when the semantic side
// degraded to unavailable and the result is lexical-only.
type HybridResult struct {
	Results []Result `json:"results"`
	Warning string   `json:"warning,omitempty"`
}
