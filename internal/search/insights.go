package search

import (
	"fmt"
	"strings"

	"github.com/alpsla/codequal-rag/internal/analyzer"
)

// buildInsights assembles response guidance: refinements for
// low-confidence queries, alternative phrasings when results are thin,
// and a note of missing language/framework context.
func buildInsights(query analyzer.AnalyzedQuery, rawQuery string, resultCount int, repo *analyzer.RepositoryContext) *Insights {
	insights := &Insights{}

	if query.AnalysisConfidence < 0.6 {
		insights.SuggestedRefinements = query.SuggestedRefinements
	}
	if resultCount < 3 {
		insights.AlternativeQueries = alternativeQueries(query, rawQuery)
	}
	insights.MissingContext = missingContext(query, repo)

	if insights.Empty() {
		return nil
	}
	return insights
}

// alternativeQueries proposes up to three rephrasings that add the
// detected language, framework, or an example qualifier.
func alternativeQueries(query analyzer.AnalyzedQuery, rawQuery string) []string {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return []string{"describe the function, error message, or concept you are looking for"}
	}
	lower := strings.ToLower(trimmed)

	var alternatives []string
	if query.ProgrammingLanguage != "" && !strings.Contains(lower, query.ProgrammingLanguage) {
		alternatives = append(alternatives, fmt.Sprintf("%s in %s", trimmed, query.ProgrammingLanguage))
	}
	for _, framework := range query.Frameworks {
		if !strings.Contains(lower, strings.ToLower(framework)) {
			alternatives = append(alternatives, fmt.Sprintf("%s with %s", trimmed, framework))
			break
		}
	}
	if !strings.Contains(lower, "example") {
		alternatives = append(alternatives, trimmed+" example")
	}
	if len(alternatives) == 0 {
		// Guarantee at least one alternative for thin result sets.
		alternatives = append(alternatives, "how to "+trimmed)
	}
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}
	return alternatives
}

// missingContext lists absent signals that would sharpen the search.
func missingContext(query analyzer.AnalyzedQuery, repo *analyzer.RepositoryContext) []string {
	var missing []string
	if query.ProgrammingLanguage == "" {
		missing = append(missing, "programming language")
	}
	if len(query.Frameworks) == 0 && (repo == nil || len(repo.Frameworks) == 0) {
		missing = append(missing, "framework")
	}
	return missing
}

// failureInsights is attached to the zero-result response produced when
// an internal step fails.
func failureInsights(reason string) *Insights {
	return &Insights{
		SuggestedRefinements: []string{
			"The search could not be completed (" + reason + "). Try again or simplify the query.",
		},
	}
}

// shouldSearchEducational decides whether the educational store is
// consulted for this query.
func shouldSearchEducational(query analyzer.AnalyzedQuery, opts Options) bool {
	if opts.IncludeEducational || query.WantsExamples {
		return true
	}
	switch query.QueryType {
	case analyzer.QueryTypeExampleRequest, analyzer.QueryTypeBestPractices, analyzer.QueryTypeDocumentation:
		return true
	}
	return false
}

// inferDifficulty maps query keywords onto a difficulty level for the
// educational search, falling back to the analyzer's own detection.
func inferDifficulty(rawQuery string, query analyzer.AnalyzedQuery) string {
	lower := strings.ToLower(rawQuery)
	switch {
	case strings.Contains(lower, "tutorial") || strings.Contains(lower, "basic"):
		return "beginner"
	case strings.Contains(lower, "optimization") || strings.Contains(lower, "advanced") ||
		strings.Contains(lower, "enterprise") || strings.Contains(lower, "scalability"):
		return "advanced"
	case query.DifficultyLevel != "":
		return query.DifficultyLevel
	default:
		return "intermediate"
	}
}
