// Package chunker decomposes preprocessed analysis documents into a
// hierarchy of chunks with parent/sibling relationships.
package chunker

// Chunking defaults.
const (
	DefaultMaxChunksPerFile    = 50
	DefaultMaxFindingsPerGroup = 5

	// TokensPerChar is a rough approximation: 4 chars = 1 token.
	TokensPerChar = 4
)

// ChunkType classifies a chunk within the document hierarchy.
type ChunkType string

const (
	ChunkTypeOverview ChunkType = "overview"
	ChunkTypeSection  ChunkType = "section"
	ChunkTypeItem     ChunkType = "item"
	ChunkTypeGroup    ChunkType = "group"
)

// RelationshipType describes how a chunk relates to another chunk.
type RelationshipType string

const (
	RelationshipParent  RelationshipType = "parent"
	RelationshipSibling RelationshipType = "sibling"
)

// Relationship links a chunk to another chunk in the same set.
type Relationship struct {
	Type          RelationshipType
	TargetChunkID string
}

// Severity levels for findings, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Metadata carries retrieval-oriented chunk attributes. Named optional
// fields cover the known schema; Extra is the escape hatch for
// forward-compatible fields.
type Metadata struct {
	ChunkIndex     int
	TotalChunks    int
	Section        string
	Severity       string
	FilePaths      []string
	LineNumbers    []int
	Tags           []string
	TokenCount     int
	HasCode        bool
	HasBeforeAfter bool
	Actionable     bool
	Extra          map[string]any
}

// Chunk is a decomposed, addressable unit of a document.
// Chunks are created once per ingestion run and immutable thereafter;
// enhancement produces a derived EnhancedChunk, never a mutation.
type Chunk struct {
	ID            string
	Content       string
	Type          ChunkType
	Level         int
	Metadata      Metadata
	Relationships []Relationship
}

// ParentID returns the target of the chunk's parent relationship,
// or empty string for the overview chunk.
func (c *Chunk) ParentID() string {
	for _, rel := range c.Relationships {
		if rel.Type == RelationshipParent {
			return rel.TargetChunkID
		}
	}
	return ""
}

// Finding is a single analysis finding within a section.
type Finding struct {
	Title          string
	Category       string
	Severity       string
	Description    string
	FilePath       string
	LineNumber     int
	CurrentCode    string
	Recommendation string
	BeforeCode     string
	AfterCode      string
}

// Section is a top-level analysis section of a preprocessed document.
type Section struct {
	Name     string
	Summary  string
	Findings []Finding
}

// Scores holds top-level analysis scores for the overview chunk.
type Scores struct {
	Overall    float64
	ByCategory map[string]float64
}

// ContentMetadata carries document-level attributes shared by all chunks.
type ContentMetadata struct {
	RepositoryName  string
	RepositoryURL   string
	PrimaryLanguage string
	Frameworks      []string
	AnalysisType    string
	Scores          Scores
	TotalIssues     int
}

// PreprocessedContent is the normalized document shape all ingestion
// inputs (structured reports and raw text) reduce to before chunking.
type PreprocessedContent struct {
	SourceType   string
	CleanContent string
	Sections     []Section
	CodeBlocks   []string
	Metadata     ContentMetadata
}
