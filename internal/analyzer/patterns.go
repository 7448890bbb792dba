package analyzer

import "regexp"

// QueryType represents the intent classification of a search query.
type QueryType string

const (
	QueryTypeCodeSearch      QueryType = "code_search"
	QueryTypeDocumentation   QueryType = "documentation"
	QueryTypeExampleRequest  QueryType = "example_request"
	QueryTypeArchitecture    QueryType = "architecture"
	QueryTypeBestPractices   QueryType = "best_practices"
	QueryTypeTroubleshooting QueryType = "troubleshooting"
	QueryTypeAPIReference    QueryType = "api_reference"
	QueryTypeConfiguration   QueryType = "configuration"
)

// queryTypePatterns binds a query type to its indicator patterns.
// The table is data-driven and compiled once at package init.
type queryTypePatterns struct {
	Type     QueryType
	Patterns []*regexp.Regexp
}

var queryTypeTable = []queryTypePatterns{
	{QueryTypeCodeSearch, compileAll(
		`(?i)\b(implement|implementation|function|method|class|code|snippet|write|create|build)\b`,
		`(?i)\bhow\s+to\b`,
		`(?i)\b(find|search|locate)\b.*\b(code|function|class)\b`,
	)},
	{QueryTypeDocumentation, compileAll(
		`(?i)\b(docs?|documentation|readme|guide|manual|reference\s+guide)\b`,
		`(?i)\b(what\s+is|what\s+does|explain|describe|overview)\b`,
	)},
	{QueryTypeExampleRequest, compileAll(
		`(?i)\b(example|examples|sample|samples|demo|template|boilerplate)\b`,
		`(?i)\bshow\s+me\b`,
	)},
	{QueryTypeArchitecture, compileAll(
		`(?i)\b(architecture|design\s+pattern|structure|diagram|system\s+design|component|layering)\b`,
		`(?i)\b(microservice|monolith|event[\s-]driven)\b`,
	)},
	{QueryTypeBestPractices, compileAll(
		`(?i)\b(best\s+practices?|recommended|convention|idiomatic|proper\s+way|right\s+way)\b`,
		`(?i)\b(should\s+i|is\s+it\s+better)\b`,
	)},
	{QueryTypeTroubleshooting, compileAll(
		`(?i)\b(error|bug|fix|issue|problem|fail|failing|crash|broken|debug|not\s+working)\b`,
		`(?i)\b(exception|stack\s*trace|undefined|null\s+pointer)\b`,
	)},
	{QueryTypeAPIReference, compileAll(
		`(?i)\b(api|endpoint|route|rest|graphql|parameters?|signature|return\s+type)\b`,
	)},
	{QueryTypeConfiguration, compileAll(
		`(?i)\b(config|configuration|settings?|environment\s+variables?|setup|install|\.env|yaml|toml)\b`,
	)},
}

// languagePatterns maps canonical language names to indicator patterns.
type languagePattern struct {
	Language string
	Pattern  *regexp.Regexp
}

var languageTable = []languagePattern{
	{"typescript", regexp.MustCompile(`(?i)\b(typescript|tsx?)\b`)},
	{"javascript", regexp.MustCompile(`(?i)\b(javascript|js|node(\.js)?|es6)\b`)},
	{"python", regexp.MustCompile(`(?i)\b(python|py|django|flask)\b`)},
	{"go", regexp.MustCompile(`(?i)\b(golang|go)\b`)},
	{"java", regexp.MustCompile(`(?i)\bjava\b`)},
	{"rust", regexp.MustCompile(`(?i)\brust\b`)},
	{"ruby", regexp.MustCompile(`(?i)\b(ruby|rails)\b`)},
	{"php", regexp.MustCompile(`(?i)\b(php|laravel)\b`)},
	{"csharp", regexp.MustCompile(`(?i)\b(c#|csharp|\.net|dotnet)\b`)},
	{"swift", regexp.MustCompile(`(?i)\bswift\b`)},
	{"kotlin", regexp.MustCompile(`(?i)\bkotlin\b`)},
}

var frameworkTable = []languagePattern{
	{"react", regexp.MustCompile(`(?i)\breact(\.js)?\b`)},
	{"vue", regexp.MustCompile(`(?i)\bvue(\.js)?\b`)},
	{"angular", regexp.MustCompile(`(?i)\bangular\b`)},
	{"express", regexp.MustCompile(`(?i)\bexpress(\.js)?\b`)},
	{"nextjs", regexp.MustCompile(`(?i)\bnext(\.js|js)\b`)},
	{"django", regexp.MustCompile(`(?i)\bdjango\b`)},
	{"flask", regexp.MustCompile(`(?i)\bflask\b`)},
	{"spring", regexp.MustCompile(`(?i)\bspring(\s+boot)?\b`)},
	{"rails", regexp.MustCompile(`(?i)\b(rails|ruby\s+on\s+rails)\b`)},
	{"laravel", regexp.MustCompile(`(?i)\blaravel\b`)},
	{"fastapi", regexp.MustCompile(`(?i)\bfastapi\b`)},
	{"nestjs", regexp.MustCompile(`(?i)\bnest(\.js|js)\b`)},
}

// contentTypeTable maps content-type indicators in the query text.
var contentTypeTable = []struct {
	ContentType string
	Pattern     *regexp.Regexp
}{
	{"code", regexp.MustCompile(`(?i)\b(code|function|class|method|implementation|snippet)\b`)},
	{"example", regexp.MustCompile(`(?i)\b(example|sample|demo|template)\b`)},
	{"documentation", regexp.MustCompile(`(?i)\b(docs?|documentation|guide|readme|manual)\b`)},
	{"config", regexp.MustCompile(`(?i)\b(config|configuration|settings?|setup)\b`)},
	{"test", regexp.MustCompile(`(?i)\b(test|tests|testing|spec|unit\s+test)\b`)},
}

// Difficulty keyword patterns, most specific first.
var (
	beginnerPattern     = regexp.MustCompile(`(?i)\b(beginner|basic|simple|easy|intro|getting\s+started)\b`)
	advancedPattern     = regexp.MustCompile(`(?i)\b(advanced|complex|enterprise|expert|optimization|scalability)\b`)
	intermediatePattern = regexp.MustCompile(`(?i)\b(intermediate|moderate)\b`)
)

// Intent flag patterns. The flags are independent, not mutually exclusive.
var (
	examplesIntentPattern = regexp.MustCompile(`(?i)\b(example|sample|demo|show\s+me|template)\b`)
	docsIntentPattern     = regexp.MustCompile(`(?i)\b(docs?|documentation|explain|describe|what\s+is)\b`)
	troubleIntentPattern  = regexp.MustCompile(`(?i)\b(error|fix|debug|issue|problem|not\s+working|fail)\b`)
)

// Keyword filter extraction patterns.
var (
	quotedPhrasePattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	camelCasePattern    = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	pascalCasePattern   = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`)
	snakeCasePattern    = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
)

// stopWords are removed when building the semantic query.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {}, "my": {},
	"of": {}, "on": {}, "or": {}, "show": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "want": {}, "what": {}, "where": {}, "which": {},
	"with": {}, "would": {}, "you": {},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(expr)
	}
	return patterns
}
