package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer() *Analyzer {
	return New(nil)
}

func TestAnalyze_JWTAuthenticationScenario(t *testing.T) {
	repo := &RepositoryContext{
		PrimaryLanguage: "TypeScript",
		Frameworks:      []string{"express"},
	}

	result := newAnalyzer().Analyze("how to implement JWT authentication", nil, repo)

	assert.Equal(t, QueryTypeCodeSearch, result.QueryType)
	assert.Equal(t, "typescript", result.ProgrammingLanguage)
	assert.Contains(t, result.Frameworks, "express")
}

func TestAnalyze_QueryTypes(t *testing.T) {
	tests := []struct {
		query string
		want  QueryType
	}{
		{"how to implement a linked list", QueryTypeCodeSearch},
		{"documentation for the payments module", QueryTypeDocumentation},
		{"show me an example of middleware", QueryTypeExampleRequest},
		{"microservice architecture and system design", QueryTypeArchitecture},
		{"best practices for error handling", QueryTypeBestPractices},
		{"fix TypeError cannot read property of undefined", QueryTypeTroubleshooting},
		{"environment variables setup configuration", QueryTypeConfiguration},
		{"", QueryTypeCodeSearch}, // default on no match
	}

	a := newAnalyzer()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result := a.Analyze(tt.query, nil, nil)
			assert.Equal(t, tt.want, result.QueryType)
		})
	}
}

func TestAnalyze_ConfidenceBounds(t *testing.T) {
	queries := []string{
		"",
		"x",
		"how to implement JWT authentication in typescript with express examples",
		strings.Repeat("implement code function class method example react vue angular ", 5),
	}

	a := newAnalyzer()
	for _, q := range queries {
		result := a.Analyze(q, nil, nil)
		assert.GreaterOrEqual(t, result.AnalysisConfidence, 0.0, "query %q", q)
		assert.LessOrEqual(t, result.AnalysisConfidence, 1.0, "query %q", q)
	}
}

func TestAnalyze_ConfidenceMonotonicInSignals(t *testing.T) {
	a := newAnalyzer()

	weak := a.Analyze("thing", nil, nil)
	strong := a.Analyze("how to implement a python function in react", nil, nil)
	assert.Greater(t, strong.AnalysisConfidence, weak.AnalysisConfidence)
}

func TestAnalyze_LanguageFallbackChain(t *testing.T) {
	a := newAnalyzer()
	user := &UserContext{PreferredLanguages: []string{"Rust"}}
	repo := &RepositoryContext{PrimaryLanguage: "Python"}

	// Query wins over repo and user.
	result := a.Analyze("typescript generics how to", user, repo)
	assert.Equal(t, "typescript", result.ProgrammingLanguage)

	// Repo wins over user.
	result = a.Analyze("how to implement caching", user, repo)
	assert.Equal(t, "python", result.ProgrammingLanguage)

	// User is the last fallback.
	result = a.Analyze("how to implement caching", user, nil)
	assert.Equal(t, "rust", result.ProgrammingLanguage)
}

func TestAnalyze_ContentTypeDefaults(t *testing.T) {
	a := newAnalyzer()

	tests := []struct {
		query string
		want  []string
	}{
		{"implement quicksort", []string{"code"}},
		{"payments documentation", []string{"documentation"}},
		{"setup configuration", []string{"config"}},
		{"microservice system architecture diagram", []string{"code", "documentation"}},
	}
	for _, tt := range tests {
		result := a.Analyze(tt.query, nil, nil)
		assert.Equal(t, tt.want, result.ContentTypes, "query %q", tt.query)
	}
}

func TestAnalyze_SemanticQueryStripsStopWords(t *testing.T) {
	result := newAnalyzer().Analyze("how to implement the cache in   go", nil, nil)
	assert.Equal(t, "implement cache go", result.SemanticQuery)
}

func TestAnalyze_KeywordFilters(t *testing.T) {
	result := newAnalyzer().Analyze(`fix "connection refused" in getUserById and parse_token`, nil, nil)

	assert.Contains(t, result.KeywordFilters, "connection refused")
	assert.Contains(t, result.KeywordFilters, "getUserById")
	assert.Contains(t, result.KeywordFilters, "parse_token")
}

func TestAnalyze_IntentFlagsIndependent(t *testing.T) {
	result := newAnalyzer().Analyze("show me an example of how to fix this error in the docs", nil, nil)

	assert.True(t, result.WantsExamples)
	assert.True(t, result.WantsDocumentation)
	assert.True(t, result.WantsTroubleshooting)
}

func TestAnalyze_DifficultyDetection(t *testing.T) {
	a := newAnalyzer()

	result := a.Analyze("beginner guide to goroutines", nil, nil)
	assert.Equal(t, "beginner", result.DifficultyLevel)

	result = a.Analyze("advanced enterprise scaling patterns", nil, nil)
	assert.Equal(t, "advanced", result.DifficultyLevel)

	user := &UserContext{SkillLevel: "intermediate"}
	result = a.Analyze("how to implement caching", user, nil)
	assert.Equal(t, "intermediate", result.DifficultyLevel)
}

func TestAnalyze_RefinementsOnlyAtLowConfidence(t *testing.T) {
	a := newAnalyzer()

	// Short vague query: refinements expected.
	low := a.Analyze("cache", nil, nil)
	require.LessOrEqual(t, low.AnalysisConfidence, 0.8)
	assert.NotEmpty(t, low.SuggestedRefinements)

	// Troubleshooting query lacking the word "error".
	ts := a.Analyze("fix the crash", nil, nil)
	require.Equal(t, QueryTypeTroubleshooting, ts.QueryType)
	found := false
	for _, s := range ts.SuggestedRefinements {
		if strings.Contains(s, "error text") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyze_CachedResultStable(t *testing.T) {
	a := newAnalyzer()
	first := a.Analyze("how to implement JWT authentication", nil, nil)
	second := a.Analyze("how to implement JWT authentication", nil, nil)
	assert.Equal(t, first, second)
}
