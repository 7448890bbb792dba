package codequalrag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpsla/codequal-rag/internal/config"
)

const testDims = 8

// newEmbeddingServer serves an OpenAI-style embeddings endpoint that
// returns the same unit vector for every input, so any stored chunk is
// a perfect match for any query.
func newEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			vec := make([]float32, testDims)
			vec[0] = 1
			resp.Data = append(resp.Data, item{Index: i, Embedding: vec})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return server
}

func testEngineConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Embeddings.Endpoint = endpoint
	cfg.Embeddings.Dimensions = testDims
	cfg.Storage.Path = dir
	cfg.Logging.FilePath = filepath.Join(dir, "engine.log")
	return cfg
}

func TestEngine_IngestThenSearch(t *testing.T) {
	server := newEmbeddingServer(t)
	engine, err := New(testEngineConfig(t, server.URL))
	require.NoError(t, err)
	defer func() { require.NoError(t, engine.Close()) }()

	ctx := context.Background()

	result := engine.ProcessChanges(ctx, RepositoryChanges{
		RepositoryID:   "repo-1",
		RepositoryName: "acme/api",
		Changes: []FileChange{
			{
				// api/ + index. path heuristics give this file enough
				// importance to clear the confident-query floor.
				FilePath:   "src/api/index.ts",
				ChangeType: ChangeAdded,
				Content:    "import express from 'express'\nimport jwt from 'jsonwebtoken'\nexport function signToken(user) {}\n",
			},
		},
	})
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Processed.Added)

	repo := &RepositoryContext{
		RepositoryID:    "repo-1",
		PrimaryLanguage: "TypeScript",
		Frameworks:      []string{"express"},
	}
	resp := engine.Search(ctx, "how to implement JWT authentication", nil, repo, SearchOptions{})

	require.NotNil(t, resp)
	assert.Equal(t, "code_search", string(resp.Query.QueryType))
	require.NotEmpty(t, resp.DocumentResults)
	assert.Equal(t, "src/api/index.ts", resp.DocumentResults[0].FilePath)
	assert.Greater(t, resp.DocumentResults[0].RelevanceScore, 0.0)

	stats := engine.CacheStats()
	assert.Greater(t, stats.Size, 0, "query and chunk embeddings are cached")
}

func TestEngine_ProcessDocument(t *testing.T) {
	server := newEmbeddingServer(t)
	engine, err := New(testEngineConfig(t, server.URL))
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	docResult, err := engine.ProcessDocument(context.Background(), &RawDocument{
		Type:         "deepwiki_analysis",
		RepositoryID: "repo-1",
		Text:         "# Overview\nThe service layer is tightly coupled.\n\n# Performance\nSlow queries in the user endpoint.",
	})
	require.NoError(t, err)
	assert.Greater(t, docResult.ChunksStored, 0)
}

func TestEngine_DataDirLock(t *testing.T) {
	server := newEmbeddingServer(t)
	cfg := testEngineConfig(t, server.URL)

	first, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = New(cfg)
	require.Error(t, err, "a second engine on the same data directory must be refused")
}

func TestEngine_NilConfigUsesDefaults(t *testing.T) {
	// Defaults point at a local endpoint that is not running; construction
	// must still succeed since no network call happens until first use.
	engine, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, engine.Close())
}
