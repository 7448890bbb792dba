// Package analyzer turns free-text queries into structured search intent.
// Classification is data-driven: a fixed table of regex pattern groups per
// query type, with repository and user context as fallbacks. Analysis
// never fails; internal errors produce a low-confidence fallback result.
package analyzer

import (
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the LRU cache size for analysis results.
const DefaultCacheSize = 1000

// Confidence scoring constants. Confidence is monotonically non-decreasing
// in the number of matched intent signals and clamped to 1.0.
const (
	confidenceBase          = 0.5
	confidencePerTypeMatch  = 0.15
	confidenceLanguageFound = 0.2
	confidencePerFramework  = 0.1
	confidenceMediumQuery   = 0.1 // word count > 5
	confidenceLongQuery     = 0.1 // word count > 10
	fallbackConfidence      = 0.1
)

// UserContext carries per-user preferences used as analysis fallbacks.
type UserContext struct {
	PreferredLanguages []string
	SkillLevel         string
}

// RepositoryContext carries repository attributes used as analysis fallbacks.
type RepositoryContext struct {
	RepositoryID    string
	PrimaryLanguage string
	Frameworks      []string
}

// AnalyzedQuery is the structured intent extracted from a query.
type AnalyzedQuery struct {
	QueryType            QueryType
	ProgrammingLanguage  string
	Frameworks           []string
	ContentTypes         []string
	DifficultyLevel      string
	WantsExamples        bool
	WantsDocumentation   bool
	WantsTroubleshooting bool
	SemanticQuery        string
	KeywordFilters       []string
	AnalysisConfidence   float64
	SuggestedRefinements []string
}

// Analyzer classifies queries against the pattern tables.
// Results are cached in an LRU cache keyed on query plus context.
type Analyzer struct {
	cache  *lru.Cache[string, AnalyzedQuery]
	logger *slog.Logger
}

// New creates an analyzer with the default cache size.
func New(logger *slog.Logger) *Analyzer {
	cache, _ := lru.New[string, AnalyzedQuery](DefaultCacheSize)
	return &Analyzer{cache: cache, logger: logger}
}

// Analyze extracts structured intent from a free-text query.
// It never fails: on internal error it returns a low-confidence fallback
// with QueryType code_search.
func (a *Analyzer) Analyze(query string, user *UserContext, repo *RepositoryContext) (result AnalyzedQuery) {
	defer func() {
		if r := recover(); r != nil {
			if a.logger != nil {
				a.logger.Error("query analysis panicked", "panic", r, "query", query)
			}
			result = fallbackResult(query)
		}
	}()

	key := cacheKey(query, user, repo)
	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	result = analyze(query, user, repo)
	a.cache.Add(key, result)
	return result
}

func analyze(query string, user *UserContext, repo *RepositoryContext) AnalyzedQuery {
	trimmed := strings.TrimSpace(query)
	words := strings.Fields(trimmed)

	queryType, typeMatches := classifyType(trimmed)

	language := detectLanguage(trimmed)
	languageFromQuery := language != ""
	if language == "" && repo != nil {
		language = normalizeLanguage(repo.PrimaryLanguage)
	}
	if language == "" && user != nil && len(user.PreferredLanguages) > 0 {
		language = normalizeLanguage(user.PreferredLanguages[0])
	}

	frameworks := detectFrameworks(trimmed)
	if len(frameworks) == 0 && repo != nil {
		frameworks = append(frameworks, repo.Frameworks...)
	}

	contentTypes := detectContentTypes(trimmed)
	if len(contentTypes) == 0 {
		contentTypes = defaultContentTypes(queryType)
	}

	difficulty := detectDifficulty(trimmed)
	if difficulty == "" && user != nil {
		difficulty = user.SkillLevel
	}

	result := AnalyzedQuery{
		QueryType:            queryType,
		ProgrammingLanguage:  language,
		Frameworks:           frameworks,
		ContentTypes:         contentTypes,
		DifficultyLevel:      difficulty,
		WantsExamples:        examplesIntentPattern.MatchString(trimmed),
		WantsDocumentation:   docsIntentPattern.MatchString(trimmed),
		WantsTroubleshooting: troubleIntentPattern.MatchString(trimmed),
		SemanticQuery:        buildSemanticQuery(trimmed),
		KeywordFilters:       extractKeywordFilters(trimmed),
	}

	confidence := confidenceBase +
		confidencePerTypeMatch*float64(typeMatches) +
		confidencePerFramework*float64(len(detectFrameworks(trimmed)))
	if languageFromQuery {
		confidence += confidenceLanguageFound
	}
	if len(words) > 5 {
		confidence += confidenceMediumQuery
	}
	if len(words) > 10 {
		confidence += confidenceLongQuery
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	result.AnalysisConfidence = confidence

	if confidence <= 0.8 {
		result.SuggestedRefinements = suggestRefinements(trimmed, result, languageFromQuery)
	}

	return result
}

// classifyType picks the query type with the most pattern matches,
// defaulting to code_search on a tie or no match.
func classifyType(query string) (QueryType, int) {
	best := QueryTypeCodeSearch
	bestCount := 0
	for _, group := range queryTypeTable {
		count := 0
		for _, p := range group.Patterns {
			if p.MatchString(query) {
				count++
			}
		}
		if count > bestCount {
			best = group.Type
			bestCount = count
		}
	}
	return best, bestCount
}

func detectLanguage(query string) string {
	for _, lp := range languageTable {
		if lp.Pattern.MatchString(query) {
			return lp.Language
		}
	}
	return ""
}

// normalizeLanguage maps a context-provided language name to its canonical
// lowercase form, falling back to plain lowercasing.
func normalizeLanguage(language string) string {
	if language == "" {
		return ""
	}
	for _, lp := range languageTable {
		if lp.Pattern.MatchString(language) {
			return lp.Language
		}
	}
	return strings.ToLower(language)
}

func detectFrameworks(query string) []string {
	var frameworks []string
	for _, fp := range frameworkTable {
		if fp.Pattern.MatchString(query) {
			frameworks = append(frameworks, fp.Language)
		}
	}
	return frameworks
}

func detectContentTypes(query string) []string {
	var types []string
	for _, ct := range contentTypeTable {
		if ct.Pattern.MatchString(query) {
			types = append(types, ct.ContentType)
		}
	}
	return types
}

// defaultContentTypes returns the content types implied by the query type
// when the query text names none.
func defaultContentTypes(qt QueryType) []string {
	switch qt {
	case QueryTypeCodeSearch, QueryTypeExampleRequest:
		return []string{"code"}
	case QueryTypeDocumentation:
		return []string{"documentation"}
	case QueryTypeConfiguration:
		return []string{"config"}
	default:
		return []string{"code", "documentation"}
	}
}

func detectDifficulty(query string) string {
	switch {
	case beginnerPattern.MatchString(query):
		return "beginner"
	case advancedPattern.MatchString(query):
		return "advanced"
	case intermediatePattern.MatchString(query):
		return "intermediate"
	default:
		return ""
	}
}

// buildSemanticQuery strips stop words and collapses whitespace.
func buildSemanticQuery(query string) string {
	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[strings.ToLower(w)]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// extractKeywordFilters pulls quoted phrases plus identifier-cased tokens.
func extractKeywordFilters(query string) []string {
	var filters []string

	for _, m := range quotedPhrasePattern.FindAllStringSubmatch(query, -1) {
		phrase := m[1]
		if phrase == "" {
			phrase = m[2]
		}
		if phrase != "" {
			filters = append(filters, phrase)
		}
	}

	for _, w := range strings.Fields(query) {
		token := strings.Trim(w, `.,;:!?()"'`)
		if camelCasePattern.MatchString(token) ||
			pascalCasePattern.MatchString(token) ||
			snakeCasePattern.MatchString(token) {
			filters = append(filters, token)
		}
	}

	return filters
}

// suggestRefinements proposes query improvements when confidence is low.
func suggestRefinements(query string, result AnalyzedQuery, languageFromQuery bool) []string {
	var suggestions []string
	lower := strings.ToLower(query)

	if result.AnalysisConfidence < 0.4 {
		suggestions = append(suggestions, "Try a more specific query describing what you are looking for")
	}
	if !languageFromQuery {
		suggestions = append(suggestions, "Name a programming language to narrow the results")
	}
	if result.QueryType == QueryTypeCodeSearch && !strings.Contains(lower, "example") {
		suggestions = append(suggestions, `Add "example" to see usage examples`)
	}
	if result.QueryType == QueryTypeTroubleshooting && !strings.Contains(lower, "error") {
		suggestions = append(suggestions, "Include the exact error text for better matches")
	}
	return suggestions
}

func fallbackResult(query string) AnalyzedQuery {
	return AnalyzedQuery{
		QueryType:          QueryTypeCodeSearch,
		ContentTypes:       []string{"code"},
		SemanticQuery:      strings.TrimSpace(query),
		AnalysisConfidence: fallbackConfidence,
	}
}

func cacheKey(query string, user *UserContext, repo *RepositoryContext) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	if user != nil {
		b.WriteString("\x00u:")
		b.WriteString(strings.Join(user.PreferredLanguages, ","))
		b.WriteString(":")
		b.WriteString(user.SkillLevel)
	}
	if repo != nil {
		b.WriteString("\x00r:")
		b.WriteString(repo.PrimaryLanguage)
		b.WriteString(":")
		b.WriteString(strings.Join(repo.Frameworks, ","))
	}
	return b.String()
}
