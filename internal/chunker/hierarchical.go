package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Options configures the hierarchical chunker.
type Options struct {
	// MaxChunksPerFile caps the number of chunks per document.
	MaxChunksPerFile int

	// MaxFindingsPerGroup is the number of medium/low findings per group
	// chunk before a new group is started.
	MaxFindingsPerGroup int
}

// HierarchicalChunker decomposes a preprocessed document into an ordered
// chunk tree: one overview chunk, one section chunk per analysis section,
// item chunks for critical/high findings, and group chunks for the rest.
type HierarchicalChunker struct {
	options Options
}

// NewHierarchicalChunker creates a chunker with default options.
func NewHierarchicalChunker() *HierarchicalChunker {
	return NewHierarchicalChunkerWithOptions(Options{})
}

// NewHierarchicalChunkerWithOptions creates a chunker with custom options.
func NewHierarchicalChunkerWithOptions(opts Options) *HierarchicalChunker {
	if opts.MaxChunksPerFile <= 0 {
		opts.MaxChunksPerFile = DefaultMaxChunksPerFile
	}
	if opts.MaxFindingsPerGroup <= 0 {
		opts.MaxFindingsPerGroup = DefaultMaxFindingsPerGroup
	}
	return &HierarchicalChunker{options: opts}
}

// Chunk decomposes a preprocessed document into an ordered chunk set.
// The result is deterministic: sections follow source order, items within
// a section follow finding order with critical before high, and grouped
// medium/low findings come last.
func (c *HierarchicalChunker) Chunk(doc *PreprocessedContent) []Chunk {
	if doc == nil {
		return nil
	}

	chunks := make([]Chunk, 0, 8)

	overview := c.buildOverview(doc)
	chunks = append(chunks, overview)

	for _, section := range doc.Sections {
		if len(chunks) >= c.options.MaxChunksPerFile {
			break
		}
		chunks = c.appendSection(chunks, doc, section, overview.ID)
	}

	// Finalize metadata: contiguous 0-based index and total count.
	total := len(chunks)
	for i := range chunks {
		chunks[i].Metadata.ChunkIndex = i
		chunks[i].Metadata.TotalChunks = total
	}

	return chunks
}

// buildOverview emits the single level-0 chunk summarizing the document.
func (c *HierarchicalChunker) buildOverview(doc *PreprocessedContent) Chunk {
	var b strings.Builder
	meta := doc.Metadata

	title := meta.AnalysisType
	if title == "" {
		title = "Analysis"
	}
	fmt.Fprintf(&b, "# %s Overview\n\n", capitalize(title))

	if meta.RepositoryName != "" {
		fmt.Fprintf(&b, "Repository: %s\n", meta.RepositoryName)
	}
	if meta.PrimaryLanguage != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", meta.PrimaryLanguage)
	}
	if meta.Scores.Overall > 0 {
		fmt.Fprintf(&b, "Overall score: %.1f\n", meta.Scores.Overall)
	}
	if len(meta.Scores.ByCategory) > 0 {
		categories := make([]string, 0, len(meta.Scores.ByCategory))
		for cat := range meta.Scores.ByCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		for _, cat := range categories {
			fmt.Fprintf(&b, "%s score: %.1f\n", cat, meta.Scores.ByCategory[cat])
		}
	}
	fmt.Fprintf(&b, "Total issues: %d\n", meta.TotalIssues)
	fmt.Fprintf(&b, "Sections: %d\n", len(doc.Sections))

	content := b.String()
	return Chunk{
		ID:      chunkID(meta.RepositoryName, "overview"),
		Content: content,
		Type:    ChunkTypeOverview,
		Level:   0,
		Metadata: Metadata{
			TokenCount: estimateTokens(content),
		},
	}
}

// appendSection emits the section chunk plus its item and group children.
func (c *HierarchicalChunker) appendSection(chunks []Chunk, doc *PreprocessedContent, section Section, overviewID string) []Chunk {
	sectionChunk := c.buildSectionChunk(doc, section, overviewID)
	// Link to the previous section at the same level.
	if prev := lastChunkWithParent(chunks, overviewID); prev != "" {
		sectionChunk.Relationships = append(sectionChunk.Relationships,
			Relationship{Type: RelationshipSibling, TargetChunkID: prev})
	}
	chunks = append(chunks, sectionChunk)

	// Items: critical first, then high, both preserving source finding order.
	var grouped []Finding
	for _, sev := range []string{SeverityCritical, SeverityHigh} {
		for i, f := range section.Findings {
			if f.Severity != sev {
				continue
			}
			if len(chunks) >= c.options.MaxChunksPerFile {
				return chunks
			}
			item := c.buildItemChunk(doc, section, f, i, sectionChunk.ID)
			if prev := lastChunkWithParent(chunks, sectionChunk.ID); prev != "" {
				item.Relationships = append(item.Relationships,
					Relationship{Type: RelationshipSibling, TargetChunkID: prev})
			}
			chunks = append(chunks, item)
		}
	}
	for _, f := range section.Findings {
		if f.Severity != SeverityCritical && f.Severity != SeverityHigh {
			grouped = append(grouped, f)
		}
	}

	// Group remaining medium/low findings, splitting only while the
	// per-file cap allows; the final group absorbs any remainder, and
	// once the cap is reached no further groups are emitted.
	for start := 0; start < len(grouped); {
		if len(chunks) >= c.options.MaxChunksPerFile {
			return chunks
		}
		end := start + c.options.MaxFindingsPerGroup
		if end > len(grouped) || len(chunks)+1 >= c.options.MaxChunksPerFile {
			end = len(grouped)
		}
		group := c.buildGroupChunk(doc, section, grouped[start:end], start, sectionChunk.ID)
		if prev := lastChunkWithParent(chunks, sectionChunk.ID); prev != "" {
			group.Relationships = append(group.Relationships,
				Relationship{Type: RelationshipSibling, TargetChunkID: prev})
		}
		chunks = append(chunks, group)
		start = end
	}

	return chunks
}

func (c *HierarchicalChunker) buildSectionChunk(doc *PreprocessedContent, section Section, overviewID string) Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", section.Name)
	if section.Summary != "" {
		b.WriteString(section.Summary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Findings: %d\n", len(section.Findings))

	bySeverity := map[string]int{}
	for _, f := range section.Findings {
		bySeverity[f.Severity]++
	}
	for _, sev := range []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		if n := bySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", sev, n)
		}
	}

	content := b.String()
	return Chunk{
		ID:      chunkID(doc.Metadata.RepositoryName, "section", section.Name),
		Content: content,
		Type:    ChunkTypeSection,
		Level:   1,
		Metadata: Metadata{
			Section:    section.Name,
			TokenCount: estimateTokens(content),
		},
		Relationships: []Relationship{
			{Type: RelationshipParent, TargetChunkID: overviewID},
		},
	}
}

func (c *HierarchicalChunker) buildItemChunk(doc *PreprocessedContent, section Section, f Finding, findingIdx int, sectionID string) Chunk {
	content := renderFinding(f)

	meta := Metadata{
		Section:        section.Name,
		Severity:       f.Severity,
		TokenCount:     estimateTokens(content),
		HasCode:        f.CurrentCode != "" || f.BeforeCode != "",
		HasBeforeAfter: f.BeforeCode != "" && f.AfterCode != "",
		Actionable:     f.Recommendation != "" || (f.BeforeCode != "" && f.AfterCode != ""),
	}
	if f.FilePath != "" {
		meta.FilePaths = []string{f.FilePath}
	}
	if f.LineNumber > 0 {
		meta.LineNumbers = []int{f.LineNumber}
	}

	return Chunk{
		ID:       chunkID(doc.Metadata.RepositoryName, "item", section.Name, f.Title, fmt.Sprintf("%d", findingIdx)),
		Content:  content,
		Type:     ChunkTypeItem,
		Level:    2,
		Metadata: meta,
		Relationships: []Relationship{
			{Type: RelationshipParent, TargetChunkID: sectionID},
		},
	}
}

func (c *HierarchicalChunker) buildGroupChunk(doc *PreprocessedContent, section Section, findings []Finding, startIdx int, sectionID string) Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s — additional findings\n\n", section.Name)

	meta := Metadata{
		Section: section.Name,
	}
	severity := SeverityLow
	for _, f := range findings {
		b.WriteString(renderFinding(f))
		b.WriteString("\n")
		if f.FilePath != "" {
			meta.FilePaths = append(meta.FilePaths, f.FilePath)
		}
		if f.LineNumber > 0 {
			meta.LineNumbers = append(meta.LineNumbers, f.LineNumber)
		}
		if f.CurrentCode != "" || f.BeforeCode != "" {
			meta.HasCode = true
		}
		if f.BeforeCode != "" && f.AfterCode != "" {
			meta.HasBeforeAfter = true
		}
		if f.Recommendation != "" {
			meta.Actionable = true
		}
		if f.Severity == SeverityMedium {
			severity = SeverityMedium
		}
	}
	meta.Severity = severity

	content := b.String()
	meta.TokenCount = estimateTokens(content)

	return Chunk{
		ID:       chunkID(doc.Metadata.RepositoryName, "group", section.Name, fmt.Sprintf("%d", startIdx)),
		Content:  content,
		Type:     ChunkTypeGroup,
		Level:    2,
		Metadata: meta,
		Relationships: []Relationship{
			{Type: RelationshipParent, TargetChunkID: sectionID},
		},
	}
}

// renderFinding renders a finding with a fixed structure: title, header
// line, description, current code, recommendation, before/after pair.
func renderFinding(f Finding) string {
	var b strings.Builder

	title := f.Title
	if title == "" {
		title = "Untitled finding"
	}
	fmt.Fprintf(&b, "### %s\n", title)

	var header []string
	if f.Category != "" {
		header = append(header, "Category: "+f.Category)
	}
	if f.Severity != "" {
		header = append(header, "Severity: "+f.Severity)
	}
	if f.FilePath != "" {
		loc := f.FilePath
		if f.LineNumber > 0 {
			loc = fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
		}
		header = append(header, "Location: "+loc)
	}
	if len(header) > 0 {
		b.WriteString(strings.Join(header, " | "))
		b.WriteString("\n")
	}

	if f.Description != "" {
		b.WriteString("\n")
		b.WriteString(f.Description)
		b.WriteString("\n")
	}
	if f.CurrentCode != "" {
		fmt.Fprintf(&b, "\nCurrent code:\n```\n%s\n```\n", f.CurrentCode)
	}
	if f.Recommendation != "" {
		fmt.Fprintf(&b, "\nRecommendation: %s\n", f.Recommendation)
	}
	if f.BeforeCode != "" && f.AfterCode != "" {
		fmt.Fprintf(&b, "\nBefore:\n```\n%s\n```\n\nAfter:\n```\n%s\n```\n", f.BeforeCode, f.AfterCode)
	}

	return b.String()
}

// lastChunkWithParent returns the ID of the most recently emitted chunk
// whose parent relationship targets parentID, or empty string.
func lastChunkWithParent(chunks []Chunk, parentID string) string {
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].ParentID() == parentID {
			return chunks[i].ID
		}
	}
	return ""
}

// chunkID builds a stable 16-hex-char ID from the given parts.
func chunkID(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])[:16]
}

func estimateTokens(content string) int {
	return len(content) / TokensPerChar
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
