package update

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpsla/codequal-rag/internal/chunker"
	"github.com/alpsla/codequal-rag/internal/config"
	"github.com/alpsla/codequal-rag/internal/logging"
	"github.com/alpsla/codequal-rag/internal/store"
)

const testDims = 4

// stubEmbedder returns unit vectors and can be forced to fail.
type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0, 0}
	}
	return vectors, nil
}

func (s *stubEmbedder) Dimensions() int { return testDims }

func testConfig() config.UpdateConfig {
	cfg := config.Default().Update
	cfg.GenerateEmbeddings = true
	cfg.ExtractMetadata = true
	cfg.ComputeImportance = true
	return cfg
}

func newTestService(t *testing.T) (*Service, *store.LocalStore, *stubEmbedder) {
	t.Helper()
	return newTestServiceWithChunking(t, config.Default().Chunking)
}

func newTestServiceWithChunking(t *testing.T, chunking config.ChunkingConfig) (*Service, *store.LocalStore, *stubEmbedder) {
	t.Helper()
	st, err := store.NewLocalStore("", testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	embedder := &stubEmbedder{}
	return NewService(st, embedder, logging.Discard(), testConfig(), chunking), st, embedder
}

func TestProcessChanges_AddThenDelete(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "repo-1",
		Changes: []FileChange{
			{FilePath: "src/auth.ts", ChangeType: ChangeAdded, Content: "export function login() {}"},
			{FilePath: "src/auth.ts", ChangeType: ChangeDeleted},
		},
	})

	assert.Equal(t, 1, result.Processed.Added)
	assert.Equal(t, 0, result.Processed.Modified)
	assert.Equal(t, 1, result.Processed.Deleted)
	assert.Empty(t, result.Errors)

	count, err := st.ChunkCount(ctx, "repo-1")
	require.NoError(t, err)
	assert.Zero(t, count, "deletion after addition must leave no chunks")
}

func TestProcessChanges_AddedFileStoresChunks(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	content := "import express from 'express'\nexport function handler() {}\n"
	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID:   "repo-1",
		RepositoryName: "acme/api",
		Changes: []FileChange{
			{FilePath: "src/api/handler.ts", ChangeType: ChangeAdded, Content: content},
		},
	})

	assert.Equal(t, 1, result.Processed.Added)
	assert.Equal(t, 1, result.Embeddings.Created)
	assert.Empty(t, result.Errors)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))

	results, err := st.SearchDocuments(ctx, store.DocumentQuery{
		Embedding: []float32{1, 0, 0, 0}, MaxCandidates: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/api/handler.ts", results[0].FilePath)
	assert.Equal(t, "code", results[0].ContentType)
	assert.Equal(t, "typescript", results[0].ContentLanguage)
	assert.Contains(t, results[0].FrameworkReferences, "express")
	assert.Greater(t, results[0].ImportanceScore, 0.0, "api/ path must carry importance")

	repo, err := st.GetRepository(ctx, "repo-1")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "acme/api", repo.Name)
	assert.False(t, repo.LastAnalyzedAt.IsZero())
}

func TestProcessChanges_ModifiedReplacesChunks(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes:      []FileChange{{FilePath: "a.ts", ChangeType: ChangeAdded, Content: strings.Repeat("x", 4000)}},
	})
	before, err := st.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Greater(t, before, 1, "long content splits into several windows")

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes:      []FileChange{{FilePath: "a.ts", ChangeType: ChangeModified, Content: "short now"}},
	})
	assert.Equal(t, 1, result.Processed.Modified)
	assert.Equal(t, 1, result.Embeddings.Updated)

	after, err := st.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, after, "old windows must be replaced, not accumulated")
}

func TestProcessChanges_ExcludeWins(t *testing.T) {
	svc, st, _ := newTestService(t)
	svc.cfg.IncludePatterns = []string{"*.ts"}
	svc.cfg.ExcludePatterns = []string{"node_modules/*"}
	ctx := context.Background()

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes: []FileChange{
			{FilePath: "src/keep.ts", ChangeType: ChangeAdded, Content: "a"},
			{FilePath: "node_modules/lodash/index.ts", ChangeType: ChangeAdded, Content: "b"},
			{FilePath: "README.md", ChangeType: ChangeAdded, Content: "c"},
		},
	})

	assert.Equal(t, 1, result.Processed.Added, "only src/keep.ts passes the filters")
	count, err := st.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessChanges_PerFileErrorsAccumulate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes: []FileChange{
			{FilePath: "empty.ts", ChangeType: ChangeAdded}, // no content
			{FilePath: "good.ts", ChangeType: ChangeAdded, Content: "export function ok() {}"},
		},
	})

	assert.Equal(t, 1, result.Processed.Added, "the good file still lands")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "empty.ts")
}

func TestProcessChanges_EmbeddingFailureIsPerFile(t *testing.T) {
	svc, _, embedder := newTestService(t)
	embedder.err = errors.New("provider down")
	ctx := context.Background()

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes:      []FileChange{{FilePath: "a.ts", ChangeType: ChangeAdded, Content: "x"}},
	})

	assert.Zero(t, result.Processed.Added)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "a.ts")
}

func TestProcessChanges_EmbeddingsDisabled(t *testing.T) {
	svc, st, embedder := newTestService(t)
	svc.cfg.GenerateEmbeddings = false
	ctx := context.Background()

	result := svc.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID: "r",
		Changes:      []FileChange{{FilePath: "a.ts", ChangeType: ChangeAdded, Content: "plain"}},
	})

	assert.Equal(t, 1, result.Processed.Added)
	assert.Zero(t, embedder.calls, "provider must not be called when disabled")

	count, err := st.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "records are still stored with zero vectors")
}

func TestProcessDocument_FullPipeline(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	doc := &chunker.RawDocument{
		Type:         "deepwiki_analysis",
		RepositoryID: "repo-1",
		Report: &chunker.Report{
			Sections: []chunker.Section{
				{
					Name:    "Security",
					Summary: "Two findings",
					Findings: []chunker.Finding{
						{Title: "SQL injection", Severity: "critical", Description: "unsanitized input"},
						{Title: "Weak hash", Severity: "medium", Description: "md5 in use"},
					},
				},
			},
		},
		Metadata: chunker.ContentMetadata{
			RepositoryName:  "acme/api",
			PrimaryLanguage: "typescript",
			AnalysisType:    "security",
		},
	}

	result, err := svc.ProcessDocument(ctx, doc)
	require.NoError(t, err)
	assert.Greater(t, result.ChunksStored, 2, "overview, section, and finding chunks")
	assert.Equal(t, result.ChunksStored, result.EmbeddingsCreated)

	count, err := st.ChunkCount(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, result.ChunksStored, count)

	// Re-ingesting replaces rather than accumulates.
	again, err := svc.ProcessDocument(ctx, doc)
	require.NoError(t, err)
	count, err = st.ChunkCount(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, again.ChunksStored, count)
}

func TestProcessDocument_ChunkingConfigTakesEffect(t *testing.T) {
	chunking := config.Default().Chunking
	chunking.MaxChunksPerFile = 2
	svc, st, _ := newTestServiceWithChunking(t, chunking)
	ctx := context.Background()

	doc := &chunker.RawDocument{
		Type:         "deepwiki_analysis",
		RepositoryID: "repo-1",
		Report: &chunker.Report{
			Sections: []chunker.Section{
				{
					Name: "Security",
					Findings: []chunker.Finding{
						{Title: "SQL injection", Severity: "critical", Description: "unsanitized input"},
						{Title: "Weak hash", Severity: "high", Description: "md5 in use"},
						{Title: "Verbose errors", Severity: "medium", Description: "stack traces leak"},
					},
				},
			},
		},
		Metadata: chunker.ContentMetadata{RepositoryName: "acme/api"},
	}

	result, err := svc.ProcessDocument(ctx, doc)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.ChunksStored, 2)

	count, err := st.ChunkCount(ctx, "repo-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, count, 2)
}

func TestProcessDocument_RequiresRepositoryID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ProcessDocument(context.Background(), &chunker.RawDocument{Type: "documentation"})
	require.Error(t, err)
}

func TestIngestEducational(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.IngestEducational(ctx, store.EducationalItem{
		Title:               "Express middleware tutorial",
		Content:             "how middleware chains work",
		ProgrammingLanguage: "typescript",
		DifficultyLevel:     "beginner",
	}))

	results, err := st.SearchEducationalContent(ctx, store.EducationalQuery{
		Embedding: []float32{1, 0, 0, 0}, MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Express middleware tutorial", results[0].Title)
}
