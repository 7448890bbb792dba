// Package update ingests repository and document changes: filtering,
// windowed chunking, code metadata extraction, importance scoring,
// embedding, and store writes. Batches run sequentially; files within a
// batch run concurrently.
package update

import "time"

// ChangeType classifies a file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChange is one changed file in a repository update. Added and
// modified changes carry content; deleted changes do not.
type FileChange struct {
	FilePath     string
	ChangeType   ChangeType
	Content      string
	CurrentHash  string
	LastModified time.Time
}

// RepositoryChanges is the ingestion input for one update run.
type RepositoryChanges struct {
	RepositoryID   string
	RepositoryName string
	RepositoryURL  string
	Changes        []FileChange
}

// ProcessedCounts breaks an update run down by change type.
type ProcessedCounts struct {
	Added    int
	Modified int
	Deleted  int
}

// EmbeddingCounts tracks embedding lifecycle totals for an update run.
type EmbeddingCounts struct {
	Created int
	Updated int
	Deleted int
}

// UpdateResult summarizes one ProcessChanges run. Per-file failures are
// accumulated in Errors; the run itself never fails.
type UpdateResult struct {
	Processed        ProcessedCounts
	Embeddings       EmbeddingCounts
	Errors           []string
	ExpiredRemoved   int
	ProcessingTimeMs int64
}
