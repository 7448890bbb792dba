// Package codequalrag is a selective RAG engine for code analysis
// documents: it ingests repository changes and analysis reports into a
// hierarchy of enriched, embedded chunks, and answers natural-language
// queries with intent analysis, metadata filtering, vector similarity,
// and multi-factor re-ranking.
package codequalrag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/alpsla/codequal-rag/internal/analyzer"
	"github.com/alpsla/codequal-rag/internal/chunker"
	"github.com/alpsla/codequal-rag/internal/config"
	"github.com/alpsla/codequal-rag/internal/embed"
	"github.com/alpsla/codequal-rag/internal/logging"
	"github.com/alpsla/codequal-rag/internal/search"
	"github.com/alpsla/codequal-rag/internal/store"
	"github.com/alpsla/codequal-rag/internal/telemetry"
	"github.com/alpsla/codequal-rag/internal/update"
	"github.com/alpsla/codequal-rag/pkg/version"
)

// Re-exported context types so callers do not import internal packages.
type (
	// UserContext carries per-user preferences used as analysis fallbacks.
	UserContext = analyzer.UserContext

	// RepositoryContext carries repository attributes used as analysis
	// fallbacks and search scoping.
	RepositoryContext = analyzer.RepositoryContext

	// SearchOptions tunes one search call.
	SearchOptions = search.Options

	// SearchResponse is the structurally complete result of one search.
	SearchResponse = search.Response

	// RepositoryChanges is the ingestion input for one update run.
	RepositoryChanges = update.RepositoryChanges

	// FileChange is one changed file in a repository update.
	FileChange = update.FileChange

	// UpdateResult summarizes one ProcessChanges run.
	UpdateResult = update.UpdateResult

	// RawDocument is an analysis document for full-pipeline ingestion.
	RawDocument = chunker.RawDocument

	// EducationalItem is educational content for ingestion.
	EducationalItem = store.EducationalItem
)

// Change type values for FileChange.
const (
	ChangeAdded    = update.ChangeAdded
	ChangeModified = update.ChangeModified
	ChangeDeleted  = update.ChangeDeleted
)

// Engine bundles the full ingestion and retrieval pipeline behind one
// handle. Construct with New, release with Close.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func()

	store    *store.LocalStore
	lock     *store.DirLock
	embedder *embed.CachedEmbedder
	metrics  *telemetry.QueryLogger

	search *search.Service
	update *update.Service
}

// New constructs an engine from configuration. A persistent storage
// path is guarded by a directory lock; in-memory storage is not.
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		WriteToStderr: cfg.Logging.FilePath == "",
	})
	if err != nil {
		return nil, fmt.Errorf("logging setup: %w", err)
	}

	var lock *store.DirLock
	storePath := ""
	if cfg.Storage.Path != "" {
		lock = store.NewDirLock(cfg.Storage.Path)
		acquired, err := lock.TryLock()
		if err != nil {
			logCleanup()
			return nil, err
		}
		if !acquired {
			logCleanup()
			return nil, fmt.Errorf("data directory %s is in use by another process", cfg.Storage.Path)
		}
		storePath = filepath.Join(cfg.Storage.Path, "store.db")
	}

	documentStore, err := store.NewLocalStore(storePath, cfg.Embeddings.Dimensions)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		logCleanup()
		return nil, err
	}

	provider := embed.NewClient(embed.ClientConfig{
		Endpoint:          cfg.Embeddings.Endpoint,
		APIKey:            cfg.Embeddings.APIKey,
		Model:             cfg.Embeddings.Model,
		Dimensions:        cfg.Embeddings.Dimensions,
		MaxBatchSize:      cfg.Embeddings.MaxBatchSize,
		Timeout:           cfg.Embeddings.Timeout,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
	})
	embedder := embed.NewCachedEmbedder(provider, embed.Options{
		CacheSize:  cfg.Embeddings.CacheSize,
		MaxRetries: cfg.Embeddings.MaxRetries,
	})

	metrics := telemetry.NewQueryLogger(telemetry.Options{
		BufferSize: cfg.Search.TelemetryBuffer,
		Logger:     logger,
	})

	queryAnalyzer := analyzer.New(logger)

	engine := &Engine{
		cfg:        cfg,
		logger:     logger,
		logCleanup: logCleanup,
		store:      documentStore,
		lock:       lock,
		embedder:   embedder,
		metrics:    metrics,
		search:     search.NewService(queryAnalyzer, embedder, documentStore, metrics, logger, cfg.Search),
		update:     update.NewService(documentStore, embedder, logger, cfg.Update, cfg.Chunking),
	}

	logger.Info("engine_started",
		slog.String("version", version.Short()),
		slog.String("storage", cfg.Storage.Path),
		slog.String("model", cfg.Embeddings.Model),
		slog.Int("dimensions", cfg.Embeddings.Dimensions))
	return engine, nil
}

// Search answers a natural-language query. It never returns an error:
// internal failures degrade to a zero-result response with insights.
func (e *Engine) Search(ctx context.Context, query string, user *UserContext, repo *RepositoryContext, opts SearchOptions) *SearchResponse {
	return e.search.Search(ctx, query, user, repo, opts)
}

// ProcessChanges ingests repository file changes. Per-file failures are
// reported in the result, never as an error.
func (e *Engine) ProcessChanges(ctx context.Context, changes RepositoryChanges) *UpdateResult {
	return e.update.ProcessChanges(ctx, changes)
}

// ProcessDocument ingests an analysis document through the hierarchy
// pipeline: preprocess, chunk, enhance, embed, store.
func (e *Engine) ProcessDocument(ctx context.Context, doc *RawDocument) (*update.DocumentResult, error) {
	return e.update.ProcessDocument(ctx, doc)
}

// IngestEducational embeds and stores one educational content item.
func (e *Engine) IngestEducational(ctx context.Context, item EducationalItem) error {
	return e.update.IngestEducational(ctx, item)
}

// CacheStats reports embedding cache usage.
func (e *Engine) CacheStats() embed.CacheStats {
	return e.embedder.CacheStats()
}

// Telemetry returns a snapshot of aggregated query telemetry.
func (e *Engine) Telemetry() telemetry.Snapshot {
	return e.metrics.Snapshot()
}

// Close flushes telemetry, releases the store, and frees the directory
// lock.
func (e *Engine) Close() error {
	e.metrics.Close()
	err := e.store.Close()
	if e.lock != nil {
		if unlockErr := e.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	e.logger.Info("engine_stopped")
	e.logCleanup()
	return err
}
