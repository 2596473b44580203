package ragerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"webrag/internal/ragerr"
)

func TestIsTransient(t *testing.T) {
	t.Run("transient fetch error", func(t *testing.T) {
		err := &ragerr.FetchError{URL: "http://x", StatusCode: 503, Transient: true}
		assert.True(t, ragerr.IsTransient(err))
	})

	t.Run("permanent fetch error", func(t *testing.T) {
		err := &ragerr.FetchError{URL: "http://x", StatusCode: 404}
		assert.False(t, ragerr.IsTransient(err))
	})

	t.Run("wrapped transient error stays transient", func(t *testing.T) {
		inner := &ragerr.EmbeddingError{Transient: true, Err: errors.New("rate limited")}
		wrapped := fmt.Errorf("batch 3: %w", inner)
		assert.True(t, ragerr.IsTransient(wrapped))
	})

	t.Run("chunking error is permanent", func(t *testing.T) {
		err := &ragerr.ChunkingError{Err: errors.New("no content")}
		assert.False(t, ragerr.IsTransient(err))
	})

	t.Run("unknown error defaults to permanent", func(t *testing.T) {
		assert.False(t, ragerr.IsTransient(errors.New("who knows")))
	})

	t.Run("nil is permanent", func(t *testing.T) {
		assert.False(t, ragerr.IsTransient(nil))
	})
}

func TestDimensionMismatchUnwraps(t *testing.T) {
	err := &ragerr.EmbeddingError{
		Err: fmt.Errorf("%w: got 768, want 1536", ragerr.ErrDimensionMismatch),
	}
	assert.True(t, errors.Is(err, ragerr.ErrDimensionMismatch))
	assert.False(t, ragerr.IsTransient(err))
}

func TestErrorMessages(t *testing.T) {
	fe := &ragerr.FetchError{URL: "http://example.com", StatusCode: 500}
	assert.Contains(t, fe.Error(), "http://example.com")
	assert.Contains(t, fe.Error(), "500")

	ve := &ragerr.VectorIndexError{Err: errors.New("conn refused")}
	assert.Contains(t, ve.Error(), "conn refused")
}
