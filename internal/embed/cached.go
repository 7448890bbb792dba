package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	cqerrors "github.com/alpsla/codequal-rag/internal/errors"
)

// CachedEmbedder wraps a Provider with LRU caching and cache-aware
// batching. Cache hits never touch the provider; misses are queued and
// sent in provider-cap-sized batches, results concatenated in original
// order. All cache access happens under a single lock per instance.
type CachedEmbedder struct {
	provider   Provider
	maxRetries int
	maxSize    int

	mu     sync.Mutex
	cache  *lru.Cache[string, []float32]
	hits   uint64
	misses uint64

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// CacheStats reports embedding cache usage.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Options configures the cached embedder.
type Options struct {
	// CacheSize is the LRU entry limit (default: DefaultCacheSize).
	CacheSize int

	// MaxRetries bounds rate-limit retries per batch call.
	MaxRetries int
}

// NewCachedEmbedder creates a cached embedder wrapping the given provider.
func NewCachedEmbedder(provider Provider, opts Options) *CachedEmbedder {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	cache, _ := lru.New[string, []float32](opts.CacheSize)
	return &CachedEmbedder{
		provider:   provider,
		maxRetries: opts.MaxRetries,
		maxSize:    opts.CacheSize,
		cache:      cache,
		sleep:      sleepContext,
	}
}

// cacheKey is a stable hash of the exact text submitted for embedding,
// scoped by model so a model change invalidates entries.
func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.provider.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached embedding if available, otherwise calls the
// provider and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, order-preserving.
// Cached texts cost zero provider calls; uncached texts are batched up to
// the provider cap and sent sequentially.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	c.mu.Lock()
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			c.hits++
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
			c.misses++
		}
	}
	c.mu.Unlock()

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	// Split into provider-cap-sized batches, sent sequentially.
	batchCap := c.provider.MaxBatchSize()
	if batchCap <= 0 {
		batchCap = DefaultMaxBatchSize
	}

	embedded := make([][]float32, 0, len(uncachedTexts))
	for start := 0; start < len(uncachedTexts); start += batchCap {
		end := start + batchCap
		if end > len(uncachedTexts) {
			end = len(uncachedTexts)
		}
		vectors, err := c.embedWithRetry(ctx, uncachedTexts[start:end])
		if err != nil {
			return nil, err
		}
		embedded = append(embedded, vectors...)
	}

	c.mu.Lock()
	for j, idx := range uncachedIndices {
		results[idx] = embedded[j]
		c.cache.Add(c.cacheKey(texts[idx]), embedded[j])
	}
	c.mu.Unlock()

	return results, nil
}

// embedWithRetry calls the provider, retrying the same batch on
// rate-limit errors after the provider-specified delay, up to
// maxRetries attempts. All other errors propagate immediately.
func (c *CachedEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		vectors, err := c.provider.Embed(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, cqerrors.New(cqerrors.ErrCodeProviderResponse,
					"provider returned wrong result count", nil)
			}
			return vectors, nil
		}
		if !cqerrors.IsRateLimit(err) {
			return nil, err
		}
		lastErr = err
		if attempt >= c.maxRetries {
			break
		}

		delay := cqerrors.RetryAfter(err)
		if delay <= 0 {
			delay = backoff
			backoff *= 2
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, cqerrors.Wrap(cqerrors.ErrCodeEmbeddingFailed, lastErr)
}

// ClearCache discards all cached embeddings and resets counters.
func (c *CachedEmbedder) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
	c.hits = 0
	c.misses = 0
}

// CacheStats reports cache size and hit rate.
func (c *CachedEmbedder) CacheStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.cache.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Dimensions returns the embedding dimension (passthrough).
func (c *CachedEmbedder) Dimensions() int {
	return c.provider.Dimensions()
}

// ModelName returns the model identifier (passthrough).
func (c *CachedEmbedder) ModelName() string {
	return c.provider.ModelName()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
