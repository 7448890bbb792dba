package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	cqerrors "github.com/alpsla/codequal-rag/internal/errors"
)

// ClientConfig configures the HTTP embedding provider.
type ClientConfig struct {
	// Endpoint is the API base URL (e.g., "https://api.openai.com/v1").
	Endpoint string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the embedding model identifier.
	Model string

	// Dimensions is the expected embedding dimensionality.
	Dimensions int

	// MaxBatchSize is the per-call item cap imposed by the provider.
	MaxBatchSize int

	// Timeout is the per-call timeout.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls (0 = unlimited).
	RequestsPerSecond float64
}

// Client calls an OpenAI-compatible embeddings endpoint.
type Client struct {
	client  *http.Client
	config  ClientConfig
	limiter *rate.Limiter
}

// Verify interface implementation at compile time.
var _ Provider = (*Client)(nil)

// embedRequest is the /embeddings request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /embeddings response body.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewClient creates an HTTP embedding provider.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		client:  &http.Client{},
		config:  cfg,
		limiter: limiter,
	}
}

// Embed generates embeddings for the given texts, order-preserving.
// HTTP 429 responses map to a retryable rate-limit error carrying the
// Retry-After delay; all other failures are fatal to the call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > c.config.MaxBatchSize {
		return nil, cqerrors.ValidationError(
			fmt.Sprintf("batch of %d exceeds provider cap %d", len(texts), c.config.MaxBatchSize), nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, cqerrors.InternalError("failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.config.Endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, cqerrors.InternalError("failed to create embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cqerrors.New(cqerrors.ErrCodeProviderTimeout, "embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, cqerrors.RateLimitError("embedding provider rate limited",
			parseRetryAfter(resp.Header.Get("Retry-After")), nil)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, cqerrors.New(cqerrors.ErrCodeProviderResponse,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, cqerrors.New(cqerrors.ErrCodeProviderResponse, "failed to decode embed response", err)
	}
	if len(result.Data) != len(texts) {
		return nil, cqerrors.New(cqerrors.ErrCodeProviderResponse,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Data)), nil)
	}

	// Order by the provider-reported index to guarantee input order.
	vectors := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, cqerrors.New(cqerrors.ErrCodeProviderResponse,
				fmt.Sprintf("embedding index %d out of range", item.Index), nil)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// MaxBatchSize returns the provider's per-call item cap.
func (c *Client) MaxBatchSize() int {
	return c.config.MaxBatchSize
}

// Dimensions returns the embedding dimension.
func (c *Client) Dimensions() int {
	return c.config.Dimensions
}

// ModelName returns the model identifier.
func (c *Client) ModelName() string {
	return c.config.Model
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
