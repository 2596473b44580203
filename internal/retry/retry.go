// Package retry wraps cenkalti/backoff with the taxonomy from ragerr:
// transient errors are retried with exponential backoff, permanent errors
// stop immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"webrag/internal/ragerr"
)

type Config struct {
	// MaxAttempts counts the initial call plus retries.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// Delay is the pure backoff policy: the nominal delay before retry number
// attempt (0-based), without jitter. Exposed so requeue delays and tests
// share the same curve Do uses.
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialInterval
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * backoff.DefaultMultiplier)
		if d >= c.MaxInterval {
			return c.MaxInterval
		}
	}
	if d > c.MaxInterval {
		return c.MaxInterval
	}
	return d
}

// Do runs op until it succeeds, fails permanently, the attempt budget is
// exhausted, or ctx is done. The last error is returned unwrapped from the
// backoff machinery.
func Do(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0

	classified := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ragerr.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(classified,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1)), ctx))
}
