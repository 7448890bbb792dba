package chunker

import (
	"regexp"
	"strings"
)

// Document source types accepted by Preprocess.
const (
	SourceTypeAnalysis      = "deepwiki_analysis"
	SourceTypeDocumentation = "documentation"
)

// Regex patterns for raw-text preprocessing.
var (
	// Matches headers: # Title, ## Title, etc.
	headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

	// Matches fenced code blocks (including metadata)
	codeBlockPattern = regexp.MustCompile("(?s)```[^`]*```")
)

// RawDocument is the ingestion input: a structured analysis report or a
// raw text document plus repository identity.
type RawDocument struct {
	Type         string
	RepositoryID string

	// Report is set for structured analysis documents.
	Report *Report

	// Text is set for raw text / documentation documents.
	Text string

	Metadata ContentMetadata
}

// Report is a structured analysis report prior to preprocessing.
type Report struct {
	Sections []Section
	Scores   Scores
}

// Preprocess reduces a raw document to the normalized PreprocessedContent
// shape the chunker consumes. It is total: malformed input yields an
// empty-but-valid document rather than an error.
func Preprocess(doc *RawDocument) *PreprocessedContent {
	if doc == nil {
		return &PreprocessedContent{SourceType: "unknown"}
	}

	out := &PreprocessedContent{
		SourceType: doc.Type,
		Metadata:   doc.Metadata,
	}
	if out.SourceType == "" {
		out.SourceType = SourceTypeDocumentation
	}

	if doc.Report != nil {
		out.Sections = doc.Report.Sections
		out.Metadata.Scores = doc.Report.Scores
		total := 0
		for _, s := range doc.Report.Sections {
			total += len(s.Findings)
		}
		if out.Metadata.TotalIssues == 0 {
			out.Metadata.TotalIssues = total
		}
		for _, s := range doc.Report.Sections {
			for _, f := range s.Findings {
				if f.CurrentCode != "" {
					out.CodeBlocks = append(out.CodeBlocks, f.CurrentCode)
				}
			}
		}
		return out
	}

	// Raw text: split on markdown headers into sections.
	text := strings.ReplaceAll(doc.Text, "\r\n", "\n")
	out.CleanContent = strings.TrimSpace(text)
	out.CodeBlocks = codeBlockPattern.FindAllString(text, -1)
	out.Sections = sectionsFromText(text)
	return out
}

// sectionsFromText derives sections from top-level markdown headers.
// Content before the first header becomes an "Introduction" section.
func sectionsFromText(text string) []Section {
	locs := headerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []Section{{Name: "Document", Summary: trimmed}}
	}

	var sections []Section
	if intro := strings.TrimSpace(text[:locs[0][0]]); intro != "" {
		sections = append(sections, Section{Name: "Introduction", Summary: intro})
	}

	for i, loc := range locs {
		name := strings.TrimSpace(text[loc[4]:loc[5]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		sections = append(sections, Section{Name: name, Summary: body})
	}
	return sections
}
