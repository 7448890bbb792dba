// Package enhancer enriches chunks with retrieval-oriented context before
// embedding: a context header, sliding-window excerpts from neighboring
// chunks, semantic tags, potential questions, and extracted code references.
package enhancer

import (
	"strings"

	"github.com/alpsla/codequal-rag/internal/chunker"
)

// DefaultWindowChars is the default sliding-window excerpt size.
const DefaultWindowChars = 200

// Context carries document-level attributes injected into every
// enhanced chunk's context header.
type Context struct {
	Repository   string
	Language     string
	AnalysisType string
}

// WindowContext holds text excerpts from the neighboring chunks in
// document order. Empty strings mean the chunk sits at a boundary.
type WindowContext struct {
	Before string
	After  string
}

// ContextWindow summarizes neighbor availability for retrieval metadata.
type ContextWindow struct {
	HasPrevious    bool
	HasNext        bool
	PreviousTokens int
	NextTokens     int
}

// CodeReferences holds identifiers extracted from chunk content.
type CodeReferences struct {
	Files     []string
	Functions []string
	Classes   []string
	Imports   []string
}

// EnhancedChunk is a chunk plus enrichment. It is derived from the
// original chunk, which stays untouched.
type EnhancedChunk struct {
	chunker.Chunk

	EnhancedContent    string
	WindowContext      WindowContext
	SemanticTags       []string
	PotentialQuestions []string
	CodeReferences     CodeReferences
	ContextWindow      ContextWindow
}

// Options configures the enhancer.
type Options struct {
	// WindowChars is the max excerpt length taken from each neighbor.
	WindowChars int
}

// Enhancer derives EnhancedChunks from chunk sets.
type Enhancer struct {
	options Options
}

// New creates an enhancer with default options.
func New() *Enhancer {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an enhancer with custom options.
func NewWithOptions(opts Options) *Enhancer {
	if opts.WindowChars <= 0 {
		opts.WindowChars = DefaultWindowChars
	}
	return &Enhancer{options: opts}
}

// Enhance enriches every chunk, preserving order and count 1:1.
func (e *Enhancer) Enhance(chunks []chunker.Chunk, ectx Context) []EnhancedChunk {
	enhanced := make([]EnhancedChunk, len(chunks))
	for i, c := range chunks {
		ec := EnhancedChunk{Chunk: c}

		if i > 0 {
			ec.WindowContext.Before = excerptTail(chunks[i-1].Content, e.options.WindowChars)
			ec.ContextWindow.HasPrevious = true
			ec.ContextWindow.PreviousTokens = chunks[i-1].Metadata.TokenCount
		}
		if i < len(chunks)-1 {
			ec.WindowContext.After = excerptHead(chunks[i+1].Content, e.options.WindowChars)
			ec.ContextWindow.HasNext = true
			ec.ContextWindow.NextTokens = chunks[i+1].Metadata.TokenCount
		}

		ec.EnhancedContent = buildContextHeader(c, ectx) + c.Content
		ec.SemanticTags = deriveTags(c)
		ec.PotentialQuestions = deriveQuestions(c, ec.SemanticTags)
		ec.CodeReferences = extractCodeReferences(c.Content)

		enhanced[i] = ec
	}
	return enhanced
}

// buildContextHeader renders the single-line [Context: ...] prefix,
// omitting fields that are absent.
func buildContextHeader(c chunker.Chunk, ectx Context) string {
	var parts []string
	if ectx.Repository != "" {
		parts = append(parts, "Repository: "+ectx.Repository)
	}
	if ectx.Language != "" {
		parts = append(parts, "Language: "+ectx.Language)
	}
	if ectx.AnalysisType != "" {
		parts = append(parts, "Analysis Type: "+ectx.AnalysisType)
	}
	if c.Metadata.Section != "" {
		parts = append(parts, "Section: "+c.Metadata.Section)
	}
	if c.Metadata.Severity != "" {
		parts = append(parts, "Severity: "+c.Metadata.Severity)
	}
	if len(parts) == 0 {
		return ""
	}
	return "[Context: " + strings.Join(parts, ", ") + "]\n"
}
