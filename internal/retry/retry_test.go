package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"webrag/internal/ragerr"
	"webrag/internal/retry"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	permanent := &ragerr.FetchError{URL: "http://x", StatusCode: 404}
	err := retry.Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, error(permanent))
	assert.Equal(t, 1, calls)
}

func TestDo_TransientErrorRetriedToBudget(t *testing.T) {
	calls := 0
	transient := &ragerr.EmbeddingError{Transient: true, Err: errors.New("overloaded")}
	err := retry.Do(context.Background(), fastConfig(3), func() error {
		calls++
		return transient
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_TransientThenSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return &ragerr.VectorIndexError{Transient: true, Err: errors.New("starting up")}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, fastConfig(10), func() error {
		return &ragerr.EmbeddingError{Transient: true, Err: errors.New("busy")}
	})
	assert.Error(t, err)
}

func TestDelay_Curve(t *testing.T) {
	cfg := retry.Config{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}

	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Greater(t, cfg.Delay(1), cfg.Delay(0))
	assert.Greater(t, cfg.Delay(2), cfg.Delay(1))
	assert.Equal(t, 10*time.Second, cfg.Delay(20))
}
