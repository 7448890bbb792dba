package search

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alpsla/codequal-rag/internal/analyzer"
	"github.com/alpsla/codequal-rag/internal/config"
	"github.com/alpsla/codequal-rag/internal/store"
	"github.com/alpsla/codequal-rag/internal/telemetry"
)

// Service answers natural-language queries over stored analysis chunks.
// Search never returns an error to the caller: every internal failure
// degrades to a structurally valid zero-result response with an
// explanatory insight.
type Service struct {
	analyzer *analyzer.Analyzer
	embedder Embedder
	store    store.DocumentStore
	metrics  *telemetry.QueryLogger
	logger   *slog.Logger
	cfg      config.SearchConfig
}

// NewService wires the selective search pipeline. The telemetry logger
// may be nil; recording is skipped in that case.
func NewService(a *analyzer.Analyzer, embedder Embedder, documentStore store.DocumentStore, metrics *telemetry.QueryLogger, logger *slog.Logger, cfg config.SearchConfig) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		analyzer: a,
		embedder: embedder,
		store:    documentStore,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Search runs the full retrieval pipeline: analyze, embed, filter,
// vector-search, re-rank, educational lookup, insight generation.
func (s *Service) Search(ctx context.Context, query string, user *analyzer.UserContext, repo *analyzer.RepositoryContext, opts Options) (resp *Response) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search panicked", "panic", r, "query", query)
			resp = &Response{
				Query:          analyzer.AnalyzedQuery{QueryType: analyzer.QueryTypeCodeSearch, AnalysisConfidence: 0.1},
				SearchInsights: failureInsights("internal error"),
			}
			resp.SearchDurationMs = time.Since(start).Milliseconds()
		}
	}()

	analyzed := s.analyzer.Analyze(query, user, repo)

	maxResults := s.cfg.MaxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	}

	semanticQuery := analyzed.SemanticQuery
	if semanticQuery == "" {
		semanticQuery = query
	}

	embedding, err := s.embedder.Embed(ctx, semanticQuery)
	if err != nil {
		s.logger.Error("query embedding failed", "error", err, "query", query)
		resp = &Response{
			Query:          analyzed,
			SearchInsights: failureInsights("embedding provider unavailable"),
		}
		resp.SearchDurationMs = time.Since(start).Milliseconds()
		s.record(query, analyzed, repo, 0, start)
		return resp
	}

	// Document and educational lookups are independent; run them in
	// parallel. Each branch degrades to empty results on failure, so the
	// group never returns an error.
	var (
		candidates  []store.DocumentResult
		educational []store.EducationalResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Oversample so re-ranking has room to reorder before truncation.
		storeQuery := buildDocumentQuery(analyzed, embedding, repo, s.cfg.SimilarityThreshold, 2*maxResults)
		results, err := s.store.SearchDocuments(gctx, storeQuery)
		if err != nil {
			s.logger.Warn("document search failed", "error", err, "query", query)
			return nil
		}
		candidates = results
		return nil
	})
	if shouldSearchEducational(analyzed, opts) {
		g.Go(func() error {
			results, err := s.store.SearchEducationalContent(gctx, store.EducationalQuery{
				Embedding:           embedding,
				Language:            analyzed.ProgrammingLanguage,
				Difficulty:          inferDifficulty(query, analyzed),
				SimilarityThreshold: s.cfg.SimilarityThreshold,
				MaxResults:          maxResults,
			})
			if err != nil {
				s.logger.Warn("educational search failed", "error", err, "query", query)
				return nil
			}
			educational = results
			return nil
		})
	}
	_ = g.Wait()

	weights := rerankWeights{
		importance: s.cfg.ImportanceWeight,
		framework:  s.cfg.FrameworkWeight,
		recency:    s.cfg.RecencyWeight,
		windowDays: s.cfg.RecencyWindowDays,
	}
	documents := rerank(candidates, analyzed.Frameworks, weights, maxResults, time.Now())

	resp = &Response{
		Query:              analyzed,
		DocumentResults:    documents,
		EducationalResults: educational,
		TotalResults:       len(documents) + len(educational),
		SearchInsights:     buildInsights(analyzed, query, len(documents), repo),
	}
	resp.SearchDurationMs = time.Since(start).Milliseconds()

	s.record(query, analyzed, repo, resp.TotalResults, start)
	return resp
}

// record submits the query pattern to telemetry, best-effort.
func (s *Service) record(query string, analyzed analyzer.AnalyzedQuery, repo *analyzer.RepositoryContext, resultCount int, start time.Time) {
	if s.metrics == nil {
		return
	}
	event := telemetry.QueryEvent{
		Query:       query,
		QueryType:   string(analyzed.QueryType),
		ResultCount: resultCount,
		Confidence:  analyzed.AnalysisConfidence,
		Latency:     time.Since(start),
	}
	if repo != nil {
		event.RepositoryID = repo.RepositoryID
	}
	s.metrics.Record(event)
}
