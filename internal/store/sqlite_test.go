package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cqerrors "github.com/alpsla/codequal-rag/internal/errors"
)

const testDims = 4

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore("", testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id, repo, path string, importance float64) ChunkRecord {
	return ChunkRecord{
		ID:              id,
		RepositoryID:    repo,
		FilePath:        path,
		Content:         "content of " + id,
		ContentType:     "code",
		ContentLanguage: "typescript",
		ImportanceScore: importance,
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunk(ctx, testRecord("a", "repo-1", "src/a.ts", 0.5), []float32{1, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, testRecord("b", "repo-1", "src/b.ts", 0.9), []float32{0, 1, 0, 0}))

	results, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:     []float32{1, 0.1, 0, 0},
		MaxCandidates: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID, "closest vector first")
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchDocuments_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recA := testRecord("a", "repo-1", "src/a.ts", 0.8)
	recA.FrameworkReferences = []string{"express"}
	recB := testRecord("b", "repo-2", "src/b.ts", 0.2)
	recB.ContentType = "documentation"
	require.NoError(t, s.UpsertChunk(ctx, recA, []float32{1, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, recB, []float32{0.9, 0.1, 0, 0}))

	query := []float32{1, 0, 0, 0}

	byRepo, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: query, RepositoryID: "repo-1", MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, byRepo, 1)
	assert.Equal(t, "a", byRepo[0].ID)

	byType, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: query, ContentType: "documentation", MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b", byType[0].ID)

	byImportance, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: query, MinImportance: 0.5, MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, byImportance, 1)
	assert.Equal(t, "a", byImportance[0].ID)

	byFramework, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: query, Framework: "Express", MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, byFramework, 1)
	assert.Equal(t, "a", byFramework[0].ID, "framework filter is case-insensitive")
}

func TestSearchDocuments_ZeroVectorSimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Chunks ingested with embedding generation disabled carry zero
	// vectors; they must report similarity 0, never NaN.
	require.NoError(t, s.UpsertChunk(ctx, testRecord("zero", "repo-1", "src/zero.ts", 0.5), []float32{0, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, testRecord("unit", "repo-1", "src/unit.ts", 0.5), []float32{1, 0, 0, 0}))

	all, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:     []float32{1, 0, 0, 0},
		MaxCandidates: 10,
	})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, res := range all {
		assert.False(t, math.IsNaN(res.Similarity), "chunk %s", res.ID)
	}
	assert.Equal(t, "unit", all[0].ID)
	assert.Zero(t, all[1].Similarity)

	// A positive threshold keeps directionless chunks out of results.
	filtered, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:           []float32{1, 0, 0, 0},
		SimilarityThreshold: 0.3,
		MaxCandidates:       10,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "unit", filtered[0].ID)

	// Replacing the zero vector with a real one makes it searchable.
	require.NoError(t, s.UpsertChunk(ctx, testRecord("zero", "repo-1", "src/zero.ts", 0.5), []float32{0, 1, 0, 0}))
	replaced, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:           []float32{0, 1, 0, 0},
		SimilarityThreshold: 0.3,
		MaxCandidates:       10,
	})
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.Equal(t, "zero", replaced[0].ID)
}

func TestSearchDocuments_SimilarityThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunk(ctx, testRecord("near", "r", "a.ts", 0), []float32{1, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, testRecord("far", "r", "b.ts", 0), []float32{-1, 0, 0, 0}))

	results, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:           []float32{1, 0, 0, 0},
		SimilarityThreshold: 0.5,
		MaxCandidates:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
}

func TestUpsertChunk_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunk(ctx, testRecord("a", "r", "a.ts", 0.1), []float32{1, 0, 0, 0}))
	updated := testRecord("a", "r", "a.ts", 0.9)
	updated.Content = "updated content"
	require.NoError(t, s.UpsertChunk(ctx, updated, []float32{0, 1, 0, 0}))

	count, err := s.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: []float32{0, 1, 0, 0}, MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "updated content", results[0].ContentChunk)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-4, "new vector must replace the old one")
}

func TestDeleteChunksForFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunk(ctx, testRecord("a1", "r", "a.ts", 0), []float32{1, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, testRecord("a2", "r", "a.ts", 0), []float32{0, 1, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, testRecord("b1", "r", "b.ts", 0), []float32{0, 0, 1, 0}))

	deleted, err := s.DeleteChunksForFile(ctx, "r", "a.ts")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	results, err := s.SearchDocuments(ctx, DocumentQuery{Embedding: []float32{1, 0, 0, 0}, MaxCandidates: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)

	deleted, err = s.DeleteChunksForFile(ctx, "r", "missing.ts")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := testRecord("old", "r", "old.ts", 0)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	fresh := testRecord("new", "r", "new.ts", 0)
	fresh.ExpiresAt = time.Now().Add(24 * time.Hour)
	forever := testRecord("keep", "r", "keep.ts", 0)

	require.NoError(t, s.UpsertChunk(ctx, expired, []float32{1, 0, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, fresh, []float32{0, 1, 0, 0}))
	require.NoError(t, s.UpsertChunk(ctx, forever, []float32{0, 0, 1, 0}))

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := s.ChunkCount(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEducationalContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := EducationalItem{
		ID:                  "edu-1",
		Title:               "JWT authentication tutorial",
		Content:             "step by step guide",
		ContentType:         "tutorial",
		ProgrammingLanguage: "typescript",
		DifficultyLevel:     "beginner",
		Frameworks:          []string{"express"},
		QualityScore:        0.8,
	}
	require.NoError(t, s.UpsertEducationalContent(ctx, item, []float32{1, 0, 0, 0}))

	results, err := s.SearchEducationalContent(ctx, EducationalQuery{
		Embedding:  []float32{1, 0, 0, 0},
		Language:   "typescript",
		Difficulty: "beginner",
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "JWT authentication tutorial", results[0].Title)
	assert.Equal(t, []string{"express"}, results[0].Frameworks)

	none, err := s.SearchEducationalContent(ctx, EducationalQuery{
		Embedding:  []float32{1, 0, 0, 0},
		Difficulty: "advanced",
		MaxResults: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	analyzed := time.Now().Truncate(time.Second)
	require.NoError(t, s.UpsertRepository(ctx, Repository{
		ID: "repo-1", Name: "acme/api", URL: "https://example.com/acme/api", LastAnalyzedAt: analyzed,
	}))

	repo, err := s.GetRepository(ctx, "repo-1")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "acme/api", repo.Name)
	assert.True(t, repo.LastAnalyzedAt.Equal(analyzed))

	// Upsert replaces.
	require.NoError(t, s.UpsertRepository(ctx, Repository{ID: "repo-1", Name: "acme/api-v2"}))
	repo, err = s.GetRepository(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, "acme/api-v2", repo.Name)

	missing, err := s.GetRepository(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDimensionValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertChunk(ctx, testRecord("a", "r", "a.ts", 0), []float32{1, 0})
	require.Error(t, err)
	assert.Equal(t, cqerrors.ErrCodeDimensionMismatch, cqerrors.GetCode(err))

	_, err = s.SearchDocuments(ctx, DocumentQuery{Embedding: []float32{1}, MaxCandidates: 5})
	require.Error(t, err)
	assert.Equal(t, cqerrors.ErrCodeDimensionMismatch, cqerrors.GetCode(err))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/store.db"
	ctx := context.Background()

	s, err := NewLocalStore(path, testDims)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("c%d", i)
		vec := make([]float32, testDims)
		vec[i] = 1
		require.NoError(t, s.UpsertChunk(ctx, testRecord(id, "r", id+".ts", 0), vec))
	}
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(path, testDims)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	results, err := reopened.SearchDocuments(ctx, DocumentQuery{
		Embedding: []float32{0, 1, 0, 0}, MaxCandidates: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ID, "vector index must be rebuilt from persisted embeddings")
}

func TestDirLock(t *testing.T) {
	dir := t.TempDir()

	first := NewDirLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock(), "double unlock is safe")

	second := NewDirLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}
