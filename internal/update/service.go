package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alpsla/codequal-rag/internal/chunker"
	"github.com/alpsla/codequal-rag/internal/config"
	"github.com/alpsla/codequal-rag/internal/enhancer"
	"github.com/alpsla/codequal-rag/internal/store"
)

// Embedder is the batch-embedding dependency of the update service.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Service ingests repository file changes and analysis documents into
// the document store.
type Service struct {
	store    store.DocumentStore
	embedder Embedder
	chunker  *chunker.HierarchicalChunker
	enhancer *enhancer.Enhancer
	logger   *slog.Logger
	cfg      config.UpdateConfig
}

// NewService wires the incremental update pipeline. The chunking
// configuration shapes the document pipeline: chunk cap, finding group
// size, and neighbor window excerpt length.
func NewService(documentStore store.DocumentStore, embedder Embedder, logger *slog.Logger, cfg config.UpdateConfig, chunking config.ChunkingConfig) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:    documentStore,
		embedder: embedder,
		chunker: chunker.NewHierarchicalChunkerWithOptions(chunker.Options{
			MaxChunksPerFile:    chunking.MaxChunksPerFile,
			MaxFindingsPerGroup: chunking.MaxFindingsPerGroup,
		}),
		enhancer: enhancer.NewWithOptions(enhancer.Options{
			WindowChars: chunking.WindowContextChars,
		}),
		logger: logger,
		cfg:    cfg,
	}
}

// fileOutcome is the result of processing one file change.
type fileOutcome struct {
	change        FileChange
	chunksWritten int
	chunksRemoved int
	err           error
}

// ProcessChanges ingests a set of repository file changes. It never
// returns an error: per-file failures are accumulated in the result and
// processing continues. Batches run strictly in order; files within a
// batch run concurrently.
func (s *Service) ProcessChanges(ctx context.Context, changes RepositoryChanges) *UpdateResult {
	start := time.Now()
	runID := uuid.NewString()
	result := &UpdateResult{}

	accepted := make([]FileChange, 0, len(changes.Changes))
	for _, change := range changes.Changes {
		if shouldProcess(s.cfg.IncludePatterns, s.cfg.ExcludePatterns, change.FilePath) {
			accepted = append(accepted, change)
		}
	}

	s.logger.Info("update_run_started",
		slog.String("run_id", runID),
		slog.String("repository", changes.RepositoryID),
		slog.Int("changes", len(changes.Changes)),
		slog.Int("accepted", len(accepted)))

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	for batchStart := 0; batchStart < len(accepted); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(accepted) {
			batchEnd = len(accepted)
		}
		batch := accepted[batchStart:batchEnd]

		// Changes to the same path must apply in submission order, so a
		// batch is partitioned per path and paths run concurrently.
		groups := groupByPath(batch)

		var mu sync.Mutex
		var outcomes []fileOutcome

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, group := range groups {
			group := group
			g.Go(func() error {
				for _, change := range group {
					outcome := s.processFile(gctx, changes.RepositoryID, change)
					mu.Lock()
					outcomes = append(outcomes, outcome)
					mu.Unlock()
				}
				// Per-file errors never cancel sibling files.
				return nil
			})
		}
		_ = g.Wait()

		for _, outcome := range outcomes {
			s.tally(result, outcome)
		}
	}

	if removed, err := s.store.CleanupExpired(ctx); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("cleanup: %v", err))
	} else {
		result.ExpiredRemoved = removed
		result.Embeddings.Deleted += removed
	}

	if err := s.store.UpsertRepository(ctx, store.Repository{
		ID:             changes.RepositoryID,
		Name:           changes.RepositoryName,
		URL:            changes.RepositoryURL,
		LastAnalyzedAt: time.Now(),
	}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("repository metadata: %v", err))
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.logger.Info("update_run_finished",
		slog.String("run_id", runID),
		slog.Int("added", result.Processed.Added),
		slog.Int("modified", result.Processed.Modified),
		slog.Int("deleted", result.Processed.Deleted),
		slog.Int("errors", len(result.Errors)),
		slog.Int64("duration_ms", result.ProcessingTimeMs))
	return result
}

// groupByPath partitions a batch into per-path change sequences,
// preserving submission order within each path.
func groupByPath(batch []FileChange) [][]FileChange {
	index := make(map[string]int, len(batch))
	var groups [][]FileChange
	for _, change := range batch {
		if i, ok := index[change.FilePath]; ok {
			groups[i] = append(groups[i], change)
			continue
		}
		index[change.FilePath] = len(groups)
		groups = append(groups, []FileChange{change})
	}
	return groups
}

// tally folds one file outcome into the run result.
func (s *Service) tally(result *UpdateResult, outcome fileOutcome) {
	if outcome.err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: %v", outcome.change.FilePath, outcome.err))
		return
	}
	switch outcome.change.ChangeType {
	case ChangeAdded:
		result.Processed.Added++
		result.Embeddings.Created += outcome.chunksWritten
	case ChangeModified:
		result.Processed.Modified++
		result.Embeddings.Updated += outcome.chunksWritten
	case ChangeDeleted:
		result.Processed.Deleted++
		result.Embeddings.Deleted += outcome.chunksRemoved
	}
}

// processFile handles one file change end to end.
func (s *Service) processFile(ctx context.Context, repositoryID string, change FileChange) fileOutcome {
	outcome := fileOutcome{change: change}

	if change.ChangeType == ChangeDeleted {
		removed, err := s.store.DeleteChunksForFile(ctx, repositoryID, change.FilePath)
		outcome.chunksRemoved = removed
		outcome.err = err
		return outcome
	}

	if change.Content == "" {
		outcome.err = fmt.Errorf("%s change carries no content", change.ChangeType)
		return outcome
	}

	// Delete-then-insert keeps the missing window as short as the store
	// allows.
	if _, err := s.store.DeleteChunksForFile(ctx, repositoryID, change.FilePath); err != nil {
		outcome.err = fmt.Errorf("delete existing chunks: %w", err)
		return outcome
	}

	windows := splitWindows(change.Content, s.cfg.ChunkSize, s.cfg.ChunkOverlap, s.cfg.MaxChunksPerFile)

	language := LanguageForPath(change.FilePath)
	var meta CodeMetadata
	if s.cfg.ExtractMetadata && language != "" {
		meta = ExtractCodeMetadata(change.Content, language)
	}

	var importance float64
	if s.cfg.ComputeImportance {
		importance = ComputeImportance(change.FilePath, change.Content, len(meta.Functions))
	}

	vectors, err := s.embedWindows(ctx, windows)
	if err != nil {
		outcome.err = fmt.Errorf("embed windows: %w", err)
		return outcome
	}

	contentType := "documentation"
	if language != "" {
		contentType = "code"
	}
	var expiresAt time.Time
	if s.cfg.RetentionDays > 0 {
		expiresAt = time.Now().AddDate(0, 0, s.cfg.RetentionDays)
	}

	for i, window := range windows {
		record := store.ChunkRecord{
			ID:                  windowID(repositoryID, change.FilePath, i),
			RepositoryID:        repositoryID,
			FilePath:            change.FilePath,
			Content:             window,
			ContentType:         contentType,
			ContentLanguage:     language,
			ChunkIndex:          i,
			ChunkTotal:          len(windows),
			ImportanceScore:     importance,
			FunctionNames:       meta.Functions,
			ClassNames:          meta.Classes,
			Dependencies:        meta.Imports,
			FrameworkReferences: meta.FrameworkReferences,
			FileSizeBytes:       int64(len(change.Content)),
			LastModifiedAt:      change.LastModified,
			ExpiresAt:           expiresAt,
		}
		if s.cfg.ExtractMetadata && language != "" {
			record.Metadata = map[string]any{"complexity": meta.Complexity}
		}
		if change.CurrentHash != "" {
			if record.Metadata == nil {
				record.Metadata = map[string]any{}
			}
			record.Metadata["content_hash"] = change.CurrentHash
		}
		if err := s.store.UpsertChunk(ctx, record, vectors[i]); err != nil {
			outcome.err = fmt.Errorf("store window %d: %w", i, err)
			return outcome
		}
		outcome.chunksWritten++
	}
	return outcome
}

// embedWindows generates one vector per window. When embedding
// generation is disabled the windows get zero vectors so records remain
// storable and searchable by metadata.
func (s *Service) embedWindows(ctx context.Context, windows []string) ([][]float32, error) {
	if s.cfg.GenerateEmbeddings {
		return s.embedder.EmbedBatch(ctx, windows)
	}
	vectors := make([][]float32, len(windows))
	for i := range vectors {
		vectors[i] = make([]float32, s.embedder.Dimensions())
	}
	return vectors, nil
}

// DocumentResult summarizes one ProcessDocument call.
type DocumentResult struct {
	ChunksStored      int
	EmbeddingsCreated int
}

// ProcessDocument ingests an analysis document through the full
// hierarchy pipeline: preprocess, chunk, enhance, embed, store. The
// document's chunks replace any previous ingestion of the same document
// path.
func (s *Service) ProcessDocument(ctx context.Context, doc *chunker.RawDocument) (*DocumentResult, error) {
	if doc == nil || doc.RepositoryID == "" {
		return nil, fmt.Errorf("document requires a repository ID")
	}

	pre := chunker.Preprocess(doc)
	chunks := s.chunker.Chunk(pre)
	if len(chunks) == 0 {
		return &DocumentResult{}, nil
	}

	enhanced := s.enhancer.Enhance(chunks, enhancer.Context{
		Repository:   pre.Metadata.RepositoryName,
		Language:     pre.Metadata.PrimaryLanguage,
		AnalysisType: pre.Metadata.AnalysisType,
	})

	texts := make([]string, len(enhanced))
	for i, chunk := range enhanced {
		texts[i] = chunk.EnhancedContent
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document chunks: %w", err)
	}

	docPath := documentPath(doc)
	if _, err := s.store.DeleteChunksForFile(ctx, doc.RepositoryID, docPath); err != nil {
		return nil, fmt.Errorf("delete previous document chunks: %w", err)
	}

	var expiresAt time.Time
	if s.cfg.RetentionDays > 0 {
		expiresAt = time.Now().AddDate(0, 0, s.cfg.RetentionDays)
	}

	stored := 0
	for i, chunk := range enhanced {
		contentType := "documentation"
		if chunk.Metadata.HasCode {
			contentType = "code"
		}
		record := store.ChunkRecord{
			ID:                  chunk.ID,
			RepositoryID:        doc.RepositoryID,
			FilePath:            docPath,
			Content:             chunk.EnhancedContent,
			ContentType:         contentType,
			ContentLanguage:     pre.Metadata.PrimaryLanguage,
			ChunkIndex:          chunk.Metadata.ChunkIndex,
			ChunkTotal:          chunk.Metadata.TotalChunks,
			FunctionNames:       chunk.CodeReferences.Functions,
			ClassNames:          chunk.CodeReferences.Classes,
			Dependencies:        chunk.CodeReferences.Imports,
			FrameworkReferences: pre.Metadata.Frameworks,
			LastModifiedAt:      time.Now(),
			ExpiresAt:           expiresAt,
			Metadata: map[string]any{
				"chunk_type":          string(chunk.Type),
				"section":             chunk.Metadata.Section,
				"severity":            chunk.Metadata.Severity,
				"semantic_tags":       chunk.SemanticTags,
				"potential_questions": chunk.PotentialQuestions,
			},
		}
		if err := s.store.UpsertChunk(ctx, record, vectors[i]); err != nil {
			return nil, fmt.Errorf("store chunk %s: %w", chunk.ID, err)
		}
		stored++
	}

	return &DocumentResult{ChunksStored: stored, EmbeddingsCreated: len(vectors)}, nil
}

// IngestEducational embeds and stores one educational content item.
func (s *Service) IngestEducational(ctx context.Context, item store.EducationalItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	vectors, err := s.embedder.EmbedBatch(ctx, []string{item.Title + "\n\n" + item.Content})
	if err != nil {
		return fmt.Errorf("embed educational content: %w", err)
	}
	return s.store.UpsertEducationalContent(ctx, item, vectors[0])
}

// windowID derives a stable chunk ID from repository, path, and window
// index.
func windowID(repositoryID, filePath string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", repositoryID, filePath, index)))
	return hex.EncodeToString(hash[:])[:16]
}

// documentPath is the synthetic file path analysis documents live under,
// so a re-ingested document replaces its previous chunks.
func documentPath(doc *chunker.RawDocument) string {
	docType := doc.Type
	if docType == "" {
		docType = "document"
	}
	return "analysis/" + docType
}
