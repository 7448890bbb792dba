// Package search composes query analysis, embedding, and the vector
// store into a selective retrieval service with multi-factor re-ranking
// and search insights.
package search

import (
	"context"

	"github.com/alpsla/codequal-rag/internal/analyzer"
	"github.com/alpsla/codequal-rag/internal/store"
)

// Embedder is the single-text embedding dependency of the service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes one search call.
type Options struct {
	// MaxResults overrides the configured result limit when positive.
	MaxResults int

	// IncludeEducational forces the educational-content search even when
	// the query type would not trigger it.
	IncludeEducational bool
}

// ScoredResult is a document candidate after re-ranking.
type ScoredResult struct {
	store.DocumentResult

	// RelevanceScore combines similarity, importance, framework overlap,
	// and recency.
	RelevanceScore float64
}

// Insights carries guidance attached to a response.
type Insights struct {
	SuggestedRefinements []string
	AlternativeQueries   []string
	MissingContext       []string
}

// Empty reports whether the insights carry nothing.
func (i *Insights) Empty() bool {
	return len(i.SuggestedRefinements) == 0 &&
		len(i.AlternativeQueries) == 0 &&
		len(i.MissingContext) == 0
}

// Response is the structurally complete result of one search call.
// It is always returned, even on internal failure.
type Response struct {
	Query              analyzer.AnalyzedQuery
	DocumentResults    []ScoredResult
	EducationalResults []store.EducationalResult
	TotalResults       int
	SearchDurationMs   int64
	SearchInsights     *Insights
}
