package retry

import (
	"context"
	"time"

	apperrors "panelcatalog/server/errors"
)

const (
	// DefaultAttempts bounds retries at record/page granularity.
	DefaultAttempts = 3
	// DefaultInitialDelay is the first backoff delay.
	DefaultInitialDelay = 100 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 2 * time.Second
)

// Config configures the retry loop.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns the engine-wide retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   2.0,
	}
}

// Func is an operation that can be re-run safely. Everything the engine
// retries is idempotent by construction.
type Func func() error

// Do runs fn, retrying transient store errors with exponential backoff.
// Validation and invariant errors are returned immediately: retrying a
// malformed request cannot help. Cancellation is honored between attempts.
func Do(ctx context.Context, fn Func, config Config) error {
	if config.MaxAttempts <= 0 {
		config = DefaultConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) {
			return err
		}

		if attempt < config.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * config.Multiplier)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return lastErr
}
