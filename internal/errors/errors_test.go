package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"store locked", ErrCodeStoreLocked, CategoryStore, SeverityWarning, true},
		{"rate limit", ErrCodeProviderRateLimit, CategoryProvider, SeverityWarning, true},
		{"validation", ErrCodeInvalidInput, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
		{"corrupt store", ErrCodeStoreCorrupt, CategoryStore, SeverityFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestErrorChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeProviderUnavailable, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), ErrCodeProviderUnavailable)

	wrapped := fmt.Errorf("embed batch: %w", err)
	var ee *EngineError
	require.True(t, stderrors.As(wrapped, &ee))
	assert.Equal(t, ErrCodeProviderUnavailable, ee.Code)
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeSearchFailed, "first", nil)
	b := New(ErrCodeSearchFailed, "second", nil)
	assert.True(t, stderrors.Is(a, b))

	c := New(ErrCodeUpdateFailed, "other", nil)
	assert.False(t, stderrors.Is(a, c))
}

func TestRateLimitError(t *testing.T) {
	err := RateLimitError("slow down", 2*time.Second, nil)

	assert.True(t, IsRateLimit(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 2*time.Second, RetryAfter(err))

	assert.False(t, IsRateLimit(stderrors.New("plain")))
	assert.Zero(t, RetryAfter(stderrors.New("plain")))
}

func TestDimensionMismatchError(t *testing.T) {
	err := DimensionMismatchError(768, 512)
	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
	assert.Contains(t, err.Message, "768")
	assert.Contains(t, err.Message, "512")
	assert.False(t, err.Retryable)
}

func TestWithDetail(t *testing.T) {
	err := StoreError("insert failed", nil).
		WithDetail("file_path", "src/auth.ts").
		WithDetail("repository", "acme/api")

	assert.Equal(t, "src/auth.ts", err.Details["file_path"])
	assert.Equal(t, "acme/api", err.Details["repository"])
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
