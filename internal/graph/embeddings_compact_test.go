package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kgraphd/kgraphd/internal/types"
)

type fakeSummarizer struct {
	summary string
	err     error
}

func (f fakeSummarizer) Summarize(ctx context.Context, entityName string, observations []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func entityWithObservations(n int) types.Entity {
	ent := types.Entity{Name: "Ada"}
	for i := 0; i < n; i++ {
		ent.Observations = append(ent.Observations, types.Observation{Content: "note"})
	}
	return ent
}

func TestEmbeddingSourceTextFor_NoCompactorBelowThreshold(t *testing.T) {
	g := &Graph{}
	ent := entityWithObservations(3)
	assert.Equal(t, embeddingSourceText(ent), g.embeddingSourceTextFor(context.Background(), ent))
}

func TestEmbeddingSourceTextFor_UsesSummarizerAboveThreshold(t *testing.T) {
	g := &Graph{}
	g.SetCompactor(fakeSummarizer{summary: "compacted notes"})
	ent := entityWithObservations(compactionThreshold)

	got := g.embeddingSourceTextFor(context.Background(), ent)
	assert.Equal(t, "Ada\ncompacted notes", got)
}

func TestEmbeddingSourceTextFor_BelowThresholdIgnoresSummarizer(t *testing.T) {
	g := &Graph{}
	g.SetCompactor(fakeSummarizer{summary: "should not be used"})
	ent := entityWithObservations(compactionThreshold - 1)

	got := g.embeddingSourceTextFor(context.Background(), ent)
	assert.Equal(t, embeddingSourceText(ent), got)
}

func TestEmbeddingSourceTextFor_FallsBackOnSummarizerError(t *testing.T) {
	g := &Graph{}
	g.SetCompactor(fakeSummarizer{err: errors.New("rate limited")})
	ent := entityWithObservations(compactionThreshold)

	got := g.embeddingSourceTextFor(context.Background(), ent)
	assert.Equal(t, embeddingSourceText(ent), got)
}
