// Package embed wraps the text-embedding provider with an LRU cache,
// cache-aware batching with API-limit splitting, bounded rate-limit
// retries, and vector math helpers.
package embed

import (
	"context"
	"math"
	"sort"
	"time"

	cqerrors "github.com/alpsla/codequal-rag/internal/errors"
)

// Common embedding constants.
const (
	// DefaultDimensions is the default embedding dimensionality.
	DefaultDimensions = 768

	// DefaultMaxBatchSize is the provider per-call item cap.
	DefaultMaxBatchSize = 100

	// DefaultMaxRetries bounds rate-limit retries per batch call.
	DefaultMaxRetries = 3

	// DefaultTimeout is the per-call provider timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultCacheSize is the default number of cached embeddings.
	DefaultCacheSize = 1000
)

// Provider generates vector embeddings for text over the network.
// Implementations must preserve input-to-output order and distinguish
// rate-limit errors (retryable) from all other errors (fatal to the call).
type Provider interface {
	// Embed generates embeddings for up to MaxBatchSize texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize returns the provider's per-call item cap.
	MaxBatchSize() int

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

// Match is a similarity result from TopK.
type Match struct {
	Index      int
	Similarity float64
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns a DimensionMismatch error if lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, cqerrors.DimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize scales a vector to unit length. The zero vector maps to itself.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// TopK returns the k candidates most similar to query, sorted descending
// by similarity with ties broken by original index ascending. Candidates
// with mismatched dimensions are skipped.
func TopK(query []float32, candidates [][]float32, k int) []Match {
	matches := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		sim, err := CosineSimilarity(query, c)
		if err != nil {
			continue
		}
		matches = append(matches, Match{Index: i, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Index < matches[j].Index
	})

	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
