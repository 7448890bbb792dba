package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/alpsla/codequal-rag/internal/embed"
	cqerrors "github.com/alpsla/codequal-rag/internal/errors"
)

// LocalStore implements DocumentStore with SQLite for metadata rows and
// embedding blobs, plus in-memory HNSW graphs for similarity search.
// Graphs are rebuilt from the embedding column on open, so SQLite is the
// single source of truth. Deletes are lazy on the graph side: the node
// stays in the graph but loses its ID mapping and never surfaces in
// results.
type LocalStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	dimensions int
	closed     bool

	docs *vectorIndex
	edu  *vectorIndex
}

// Verify interface implementation at compile time.
var _ DocumentStore = (*LocalStore)(nil)

// vectorIndex pairs an HNSW graph with string-ID mappings. Zero-norm
// vectors never enter the graph: cosine distance against them is NaN,
// which would corrupt traversal ordering. Their IDs are tracked aside
// and surface at similarity 0 so metadata-only lookups still reach them.
type vectorIndex struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	zeroIDs map[string]struct{}
	nextKey uint64
}

func newVectorIndex() *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &vectorIndex{
		graph:   graph,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		zeroIDs: make(map[string]struct{}),
	}
}

// add inserts or replaces a vector. Replacement orphans the old graph
// node instead of deleting it.
func (v *vectorIndex) add(id string, vec []float32) {
	if oldKey, exists := v.idMap[id]; exists {
		delete(v.keyMap, oldKey)
		delete(v.idMap, id)
	}
	delete(v.zeroIDs, id)

	if zeroNorm(vec) {
		v.zeroIDs[id] = struct{}{}
		return
	}

	key := v.nextKey
	v.nextKey++

	vecCopy := make([]float32, len(vec))
	copy(vecCopy, vec)

	v.graph.Add(hnsw.MakeNode(key, embed.Normalize(vecCopy)))
	v.idMap[id] = key
	v.keyMap[key] = id
}

func (v *vectorIndex) remove(id string) {
	if key, exists := v.idMap[id]; exists {
		delete(v.keyMap, key)
		delete(v.idMap, id)
	}
	delete(v.zeroIDs, id)
}

// hit is a raw nearest-neighbor match before metadata filtering.
type hit struct {
	id         string
	similarity float64
}

// search returns up to k live matches ordered by similarity descending.
// Indexed vectors come first; directionless vectors trail at similarity 0.
func (v *vectorIndex) search(query []float32, k int) []hit {
	if k <= 0 {
		return nil
	}

	var hits []hit
	if v.graph.Len() > 0 && !zeroNorm(query) {
		normalized := embed.Normalize(query)
		nodes := v.graph.Search(normalized, k)
		hits = make([]hit, 0, len(nodes))
		for _, node := range nodes {
			id, live := v.keyMap[node.Key]
			if !live {
				continue
			}
			similarity, err := embed.CosineSimilarity(normalized, node.Value)
			if err != nil {
				continue
			}
			hits = append(hits, hit{id: id, similarity: similarity})
		}
	}

	for id := range v.zeroIDs {
		if len(hits) >= k {
			break
		}
		hits = append(hits, hit{id: id, similarity: 0})
	}
	return hits
}

// zeroNorm reports whether a vector has no direction.
func zeroNorm(v []float32) bool {
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	content TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	content_language TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL DEFAULT 0,
	chunk_total INTEGER NOT NULL DEFAULT 0,
	importance_score REAL NOT NULL DEFAULT 0,
	function_names TEXT NOT NULL DEFAULT '[]',
	class_names TEXT NOT NULL DEFAULT '[]',
	dependencies TEXT NOT NULL DEFAULT '[]',
	framework_references TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	file_size_bytes INTEGER NOT NULL DEFAULT 0,
	last_modified_at INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0,
	embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_repo_file ON chunks(repository_id, file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_expires ON chunks(expires_at);

CREATE TABLE IF NOT EXISTS educational_content (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	programming_language TEXT NOT NULL DEFAULT '',
	difficulty_level TEXT NOT NULL DEFAULT '',
	frameworks TEXT NOT NULL DEFAULT '[]',
	quality_score REAL NOT NULL DEFAULT 0,
	embedding BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS repositories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	last_analyzed_at INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// NewLocalStore opens or creates a local store at path. An empty path
// creates an in-memory store for testing. Existing embeddings are loaded
// into the vector indexes on open.
func NewLocalStore(path string, dimensions int) (*LocalStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cqerrors.StoreError(fmt.Sprintf("failed to create store directory %s", dir), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cqerrors.StoreError("failed to open database", err)
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cqerrors.StoreError("failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, cqerrors.StoreError("failed to initialize schema", err)
	}

	s := &LocalStore{
		db:         db,
		dimensions: dimensions,
		docs:       newVectorIndex(),
		edu:        newVectorIndex(),
	}

	if err := s.loadIndexes(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// loadIndexes rebuilds the HNSW graphs from persisted embeddings.
func (s *LocalStore) loadIndexes() error {
	load := func(query string, idx *vectorIndex) error {
		rows, err := s.db.Query(query)
		if err != nil {
			return cqerrors.StoreError("failed to load embeddings", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return cqerrors.StoreError("failed to scan embedding row", err)
			}
			idx.add(id, decodeVector(blob))
		}
		return rows.Err()
	}

	if err := load(`SELECT id, embedding FROM chunks`, s.docs); err != nil {
		return err
	}
	return load(`SELECT id, embedding FROM educational_content`, s.edu)
}

// UpsertChunk stores a chunk record and its embedding.
func (s *LocalStore) UpsertChunk(ctx context.Context, record ChunkRecord, embedding []float32) error {
	if record.ID == "" {
		return cqerrors.ValidationError("chunk record requires an ID", nil)
	}
	if s.dimensions > 0 && len(embedding) != s.dimensions {
		return cqerrors.DimensionMismatchError(s.dimensions, len(embedding))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cqerrors.StoreError("store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (
			id, repository_id, file_path, content, content_type, content_language,
			chunk_index, chunk_total, importance_score,
			function_names, class_names, dependencies, framework_references,
			metadata, file_size_bytes, last_modified_at, expires_at, updated_at, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repository_id=excluded.repository_id, file_path=excluded.file_path,
			content=excluded.content, content_type=excluded.content_type,
			content_language=excluded.content_language, chunk_index=excluded.chunk_index,
			chunk_total=excluded.chunk_total, importance_score=excluded.importance_score,
			function_names=excluded.function_names, class_names=excluded.class_names,
			dependencies=excluded.dependencies, framework_references=excluded.framework_references,
			metadata=excluded.metadata, file_size_bytes=excluded.file_size_bytes,
			last_modified_at=excluded.last_modified_at, expires_at=excluded.expires_at,
			updated_at=excluded.updated_at, embedding=excluded.embedding`,
		record.ID, record.RepositoryID, record.FilePath, record.Content,
		record.ContentType, record.ContentLanguage,
		record.ChunkIndex, record.ChunkTotal, record.ImportanceScore,
		encodeStrings(record.FunctionNames), encodeStrings(record.ClassNames),
		encodeStrings(record.Dependencies), encodeStrings(record.FrameworkReferences),
		encodeMetadata(record.Metadata), record.FileSizeBytes,
		unixOrZero(record.LastModifiedAt), unixOrZero(record.ExpiresAt),
		time.Now().Unix(), encodeVector(embedding))
	if err != nil {
		return cqerrors.StoreError("failed to upsert chunk", err)
	}

	s.docs.add(record.ID, embedding)
	return nil
}

// DeleteChunksForFile removes all chunks for a file within a repository.
func (s *LocalStore) DeleteChunksForFile(ctx context.Context, repositoryID, filePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, cqerrors.StoreError("store is closed", nil)
	}

	ids, err := s.collectIDs(ctx,
		`SELECT id FROM chunks WHERE repository_id = ? AND file_path = ?`, repositoryID, filePath)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE repository_id = ? AND file_path = ?`, repositoryID, filePath); err != nil {
		return 0, cqerrors.StoreError("failed to delete chunks", err)
	}
	for _, id := range ids {
		s.docs.remove(id)
	}
	return len(ids), nil
}

// SearchDocuments runs a filtered nearest-neighbor search over chunks.
// The graph is oversampled relative to MaxCandidates because metadata
// filters discard hits after the vector pass.
func (s *LocalStore) SearchDocuments(ctx context.Context, q DocumentQuery) ([]DocumentResult, error) {
	if q.MaxCandidates <= 0 {
		q.MaxCandidates = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqerrors.StoreError("store is closed", nil)
	}
	if s.dimensions > 0 && len(q.Embedding) != s.dimensions {
		return nil, cqerrors.DimensionMismatchError(s.dimensions, len(q.Embedding))
	}

	oversample := q.MaxCandidates * 4
	if oversample < 50 {
		oversample = 50
	}
	hits := s.docs.search(q.Embedding, oversample)

	results := make([]DocumentResult, 0, q.MaxCandidates)
	for _, h := range hits {
		if h.similarity < q.SimilarityThreshold {
			continue
		}
		res, err := s.loadChunk(ctx, h.id)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if q.RepositoryID != "" && res.RepositoryID != q.RepositoryID {
			continue
		}
		if q.ContentType != "" && res.ContentType != q.ContentType {
			continue
		}
		if q.Language != "" && !strings.EqualFold(res.ContentLanguage, q.Language) {
			continue
		}
		if q.MinImportance > 0 && res.ImportanceScore < q.MinImportance {
			continue
		}
		if q.Framework != "" && !containsFold(res.FrameworkReferences, q.Framework) {
			continue
		}
		res.Similarity = h.similarity
		results = append(results, *res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ImportanceScore > results[j].ImportanceScore
	})
	if len(results) > q.MaxCandidates {
		results = results[:q.MaxCandidates]
	}
	return results, nil
}

// loadChunk fetches one chunk row; nil when the row no longer exists.
func (s *LocalStore) loadChunk(ctx context.Context, id string) (*DocumentResult, error) {
	var res DocumentResult
	var funcNames, classNames, deps, frameworks, metadata string
	var lastModified, updatedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, repository_id, file_path, content, content_type, content_language,
		       importance_score, function_names, class_names, dependencies,
		       framework_references, metadata, last_modified_at, updated_at
		FROM chunks WHERE id = ?`, id).Scan(
		&res.ID, &res.RepositoryID, &res.FilePath, &res.ContentChunk,
		&res.ContentType, &res.ContentLanguage, &res.ImportanceScore,
		&funcNames, &classNames, &deps, &frameworks, &metadata,
		&lastModified, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cqerrors.StoreError("failed to load chunk", err)
	}

	res.FrameworkReferences = decodeStrings(frameworks)
	res.Metadata = decodeMetadata(metadata)
	if updatedAt > 0 {
		res.UpdatedAt = time.Unix(updatedAt, 0)
	}
	return &res, nil
}

// UpsertEducationalContent stores an educational item with its embedding.
func (s *LocalStore) UpsertEducationalContent(ctx context.Context, item EducationalItem, embedding []float32) error {
	if item.ID == "" {
		return cqerrors.ValidationError("educational item requires an ID", nil)
	}
	if s.dimensions > 0 && len(embedding) != s.dimensions {
		return cqerrors.DimensionMismatchError(s.dimensions, len(embedding))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cqerrors.StoreError("store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO educational_content (
			id, title, content, content_type, programming_language,
			difficulty_level, frameworks, quality_score, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content,
			content_type=excluded.content_type,
			programming_language=excluded.programming_language,
			difficulty_level=excluded.difficulty_level,
			frameworks=excluded.frameworks, quality_score=excluded.quality_score,
			embedding=excluded.embedding`,
		item.ID, item.Title, item.Content, item.ContentType,
		item.ProgrammingLanguage, item.DifficultyLevel,
		encodeStrings(item.Frameworks), item.QualityScore, encodeVector(embedding))
	if err != nil {
		return cqerrors.StoreError("failed to upsert educational content", err)
	}

	s.edu.add(item.ID, embedding)
	return nil
}

// SearchEducationalContent runs a filtered nearest-neighbor search over
// educational items.
func (s *LocalStore) SearchEducationalContent(ctx context.Context, q EducationalQuery) ([]EducationalResult, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqerrors.StoreError("store is closed", nil)
	}
	if s.dimensions > 0 && len(q.Embedding) != s.dimensions {
		return nil, cqerrors.DimensionMismatchError(s.dimensions, len(q.Embedding))
	}

	oversample := q.MaxResults * 4
	if oversample < 20 {
		oversample = 20
	}
	hits := s.edu.search(q.Embedding, oversample)

	results := make([]EducationalResult, 0, q.MaxResults)
	for _, h := range hits {
		if h.similarity < q.SimilarityThreshold {
			continue
		}

		var res EducationalResult
		var frameworks string
		err := s.db.QueryRowContext(ctx, `
			SELECT id, title, content, content_type, programming_language,
			       difficulty_level, frameworks, quality_score
			FROM educational_content WHERE id = ?`, h.id).Scan(
			&res.ID, &res.Title, &res.Content, &res.ContentType,
			&res.ProgrammingLanguage, &res.DifficultyLevel, &frameworks, &res.QualityScore)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, cqerrors.StoreError("failed to load educational content", err)
		}

		if q.Language != "" && !strings.EqualFold(res.ProgrammingLanguage, q.Language) {
			continue
		}
		if q.Difficulty != "" && !strings.EqualFold(res.DifficultyLevel, q.Difficulty) {
			continue
		}
		res.Frameworks = decodeStrings(frameworks)
		if q.Framework != "" && !containsFold(res.Frameworks, q.Framework) {
			continue
		}
		res.Similarity = h.similarity
		results = append(results, res)
		if len(results) == q.MaxResults {
			break
		}
	}
	return results, nil
}

// CleanupExpired removes chunks whose retention expiry has passed.
func (s *LocalStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, cqerrors.StoreError("store is closed", nil)
	}

	now := time.Now().Unix()
	ids, err := s.collectIDs(ctx,
		`SELECT id FROM chunks WHERE expires_at > 0 AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE expires_at > 0 AND expires_at <= ?`, now); err != nil {
		return 0, cqerrors.StoreError("failed to delete expired chunks", err)
	}
	for _, id := range ids {
		s.docs.remove(id)
	}
	return len(ids), nil
}

// UpsertRepository stores repository-level metadata.
func (s *LocalStore) UpsertRepository(ctx context.Context, repo Repository) error {
	if repo.ID == "" {
		return cqerrors.ValidationError("repository requires an ID", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cqerrors.StoreError("store is closed", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (id, name, url, last_analyzed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, url=excluded.url,
			last_analyzed_at=excluded.last_analyzed_at`,
		repo.ID, repo.Name, repo.URL, unixOrZero(repo.LastAnalyzedAt))
	if err != nil {
		return cqerrors.StoreError("failed to upsert repository", err)
	}
	return nil
}

// GetRepository loads repository metadata; nil when absent.
func (s *LocalStore) GetRepository(ctx context.Context, id string) (*Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cqerrors.StoreError("store is closed", nil)
	}

	var repo Repository
	var lastAnalyzed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, last_analyzed_at FROM repositories WHERE id = ?`, id).Scan(
		&repo.ID, &repo.Name, &repo.URL, &lastAnalyzed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cqerrors.StoreError("failed to load repository", err)
	}
	if lastAnalyzed > 0 {
		repo.LastAnalyzedAt = time.Unix(lastAnalyzed, 0)
	}
	return &repo, nil
}

// ChunkCount returns the number of stored chunks, optionally scoped to a
// repository.
func (s *LocalStore) ChunkCount(ctx context.Context, repositoryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cqerrors.StoreError("store is closed", nil)
	}

	var count int
	var err error
	if repositoryID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE repository_id = ?`, repositoryID).Scan(&count)
	}
	if err != nil {
		return 0, cqerrors.StoreError("failed to count chunks", err)
	}
	return count, nil
}

// Close releases store resources.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *LocalStore) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cqerrors.StoreError("failed to query chunk IDs", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, cqerrors.StoreError("failed to scan chunk ID", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// encodeVector serializes a float32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, val := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(val))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMetadata(data string) map[string]any {
	if data == "" || data == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil
	}
	return m
}
