package enhancer

import (
	"fmt"
	"strings"

	"github.com/alpsla/codequal-rag/internal/chunker"
)

// conceptTags maps domain concepts to the keywords that indicate them.
// Scanning is case-insensitive over the raw chunk content.
var conceptTags = []struct {
	Tag      string
	Keywords []string
}{
	{"security", []string{"security", "vulnerability", "exploit", "cve", "xss", "csrf"}},
	{"authentication", []string{"authentication", "login", "jwt", "oauth", "credential"}},
	{"authorization", []string{"authorization", "permission", "access control", "rbac"}},
	{"vulnerability", []string{"vulnerability", "vulnerable", "cve"}},
	{"injection", []string{"injection", "sql injection", "sanitize", "unsanitized"}},
	{"performance", []string{"performance", "slow", "latency", "bottleneck"}},
	{"optimization", []string{"optimization", "optimize", "efficient"}},
	{"memory-leak", []string{"memory leak", "leak", "out of memory"}},
	{"coupling", []string{"coupling", "tightly coupled"}},
	{"cohesion", []string{"cohesion"}},
	{"refactoring", []string{"refactor", "refactoring", "rewrite"}},
	{"race-condition", []string{"race condition", "data race"}},
	{"deadlock", []string{"deadlock"}},
	{"scalability", []string{"scalability", "scale", "scaling"}},
}

// deriveTags scans content against the concept table and adds structural
// tags from chunk metadata.
func deriveTags(c chunker.Chunk) []string {
	lower := strings.ToLower(c.Content)
	var tags []string

	for _, ct := range conceptTags {
		for _, kw := range ct.Keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, ct.Tag)
				break
			}
		}
	}

	if c.Metadata.HasBeforeAfter {
		tags = append(tags, "has-fix", "before-after")
	}
	if c.Metadata.Actionable {
		tags = append(tags, "actionable")
	}
	if c.Metadata.HasCode {
		tags = append(tags, "has-code")
	}
	if c.Type == chunker.ChunkTypeItem || c.Type == chunker.ChunkTypeGroup {
		tags = append(tags, "finding")
	}
	if c.Metadata.Severity != "" {
		tags = append(tags, c.Metadata.Severity+"-priority")
	}

	return tags
}

// deriveQuestions generates natural-language questions this chunk can
// answer, keyed on detected tags and metadata.
func deriveQuestions(c chunker.Chunk, tags []string) []string {
	var questions []string
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	if c.Metadata.Severity != "" {
		questions = append(questions,
			fmt.Sprintf("What are the %s severity issues?", c.Metadata.Severity))
	}
	for _, path := range c.Metadata.FilePaths {
		questions = append(questions, fmt.Sprintf("What issues are in %s?", path))
	}
	if tagSet["security"] {
		questions = append(questions,
			"What security vulnerabilities were found?",
			"How can I improve the security of this code?")
	}
	if c.Metadata.HasBeforeAfter {
		questions = append(questions,
			"How do I fix this issue?",
			"Show me the before and after code")
	}
	if c.Type == chunker.ChunkTypeOverview {
		questions = append(questions, "What is the overall analysis summary?")
	}

	return questions
}
