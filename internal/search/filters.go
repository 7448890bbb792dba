package search

import (
	"github.com/alpsla/codequal-rag/internal/analyzer"
	"github.com/alpsla/codequal-rag/internal/store"
)

// contentTypePriority fixes which detected content type drives the store
// filter when the analyzer reports several.
var contentTypePriority = []string{"code", "example", "documentation", "config", "test"}

// primaryContentType picks the highest-priority detected content type.
// Empty when nothing was detected, which leaves the filter unset.
func primaryContentType(contentTypes []string) string {
	for _, preferred := range contentTypePriority {
		for _, detected := range contentTypes {
			if detected == preferred {
				return preferred
			}
		}
	}
	return ""
}

// minImportanceFor derives the importance floor from analysis confidence.
// Confident queries can afford stricter filtering; best-practices and
// architecture queries skew toward high-importance files regardless.
func minImportanceFor(query analyzer.AnalyzedQuery) float64 {
	var threshold float64
	switch {
	case query.AnalysisConfidence > 0.8:
		threshold = 0.3
	case query.AnalysisConfidence >= 0.6:
		threshold = 0.1
	default:
		threshold = 0
	}
	if query.QueryType == analyzer.QueryTypeBestPractices || query.QueryType == analyzer.QueryTypeArchitecture {
		threshold += 0.2
	}
	if threshold > 0.7 {
		threshold = 0.7
	}
	return threshold
}

// buildDocumentQuery assembles the store query from the analyzed intent.
func buildDocumentQuery(query analyzer.AnalyzedQuery, embedding []float32, repo *analyzer.RepositoryContext, threshold float64, maxCandidates int) store.DocumentQuery {
	q := store.DocumentQuery{
		Embedding:           embedding,
		ContentType:         primaryContentType(query.ContentTypes),
		Language:            query.ProgrammingLanguage,
		MinImportance:       minImportanceFor(query),
		SimilarityThreshold: threshold,
		MaxCandidates:       maxCandidates,
	}
	if len(query.Frameworks) > 0 {
		q.Framework = query.Frameworks[0]
	}
	if repo != nil {
		q.RepositoryID = repo.RepositoryID
	}
	return q
}
