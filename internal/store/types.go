// Package store defines the typed persistence contract the engine calls,
// plus a local implementation backed by SQLite metadata rows and HNSW
// vector indexes.
package store

import (
	"context"
	"time"
)

// ChunkRecord is the persisted form of an enhanced, embedded chunk.
type ChunkRecord struct {
	ID                  string
	RepositoryID        string
	FilePath            string
	Content             string
	ContentType         string
	ContentLanguage     string
	ChunkIndex          int
	ChunkTotal          int
	ImportanceScore     float64
	FunctionNames       []string
	ClassNames          []string
	Dependencies        []string
	FrameworkReferences []string
	Metadata            map[string]any
	FileSizeBytes       int64
	LastModifiedAt      time.Time
	ExpiresAt           time.Time
}

// DocumentQuery selects document chunks by vector similarity plus
// metadata filters. Zero-valued filters are not applied.
type DocumentQuery struct {
	Embedding           []float32
	RepositoryID        string
	ContentType         string
	Language            string
	Framework           string
	MinImportance       float64
	SimilarityThreshold float64
	MaxCandidates       int
}

// DocumentResult is a scored chunk returned from SearchDocuments.
type DocumentResult struct {
	ID                  string
	RepositoryID        string
	FilePath            string
	ContentChunk        string
	ContentType         string
	ContentLanguage     string
	ImportanceScore     float64
	Similarity          float64
	Metadata            map[string]any
	FrameworkReferences []string
	UpdatedAt           time.Time
}

// EducationalQuery selects educational content by vector similarity.
type EducationalQuery struct {
	Embedding           []float32
	Language            string
	Difficulty          string
	Framework           string
	SimilarityThreshold float64
	MaxResults          int
}

// EducationalResult is a scored educational item.
type EducationalResult struct {
	ID                  string
	Title               string
	Content             string
	ContentType         string
	ProgrammingLanguage string
	DifficultyLevel     string
	Frameworks          []string
	QualityScore        float64
	Similarity          float64
}

// EducationalItem is the ingestion side of educational content.
type EducationalItem struct {
	ID                  string
	Title               string
	Content             string
	ContentType         string
	ProgrammingLanguage string
	DifficultyLevel     string
	Frameworks          []string
	QualityScore        float64
}

// Repository is repository-level metadata upserted after each
// ingestion run.
type Repository struct {
	ID             string
	Name           string
	URL            string
	LastAnalyzedAt time.Time
}

// DocumentStore is the persistence contract for the RAG engine. Vector
// similarity is cosine; all stored vectors share one dimensionality per
// deployment. Implementations must tolerate concurrent writes to
// disjoint file-path keys.
type DocumentStore interface {
	// UpsertChunk stores a chunk record with its embedding, replacing
	// any existing record with the same ID.
	UpsertChunk(ctx context.Context, record ChunkRecord, embedding []float32) error

	// DeleteChunksForFile removes all chunks for a file path within a
	// repository. Returns the number of chunks removed.
	DeleteChunksForFile(ctx context.Context, repositoryID, filePath string) (int, error)

	// SearchDocuments returns up to MaxCandidates chunks above the
	// similarity threshold, ordered by similarity descending then
	// importance descending.
	SearchDocuments(ctx context.Context, q DocumentQuery) ([]DocumentResult, error)

	// UpsertEducationalContent stores an educational item with its
	// embedding.
	UpsertEducationalContent(ctx context.Context, item EducationalItem, embedding []float32) error

	// SearchEducationalContent returns educational items above the
	// similarity threshold, ordered by similarity descending.
	SearchEducationalContent(ctx context.Context, q EducationalQuery) ([]EducationalResult, error)

	// CleanupExpired removes chunks whose retention expiry has passed.
	// Returns the number of chunks removed.
	CleanupExpired(ctx context.Context) (int, error)

	// UpsertRepository stores repository-level metadata.
	UpsertRepository(ctx context.Context, repo Repository) error

	// Close releases store resources.
	Close() error
}
