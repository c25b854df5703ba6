// Package retry wraps avast/retry-go with the exponential backoff policy
// used at the inbound consumer edge.
package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes a function with exponential backoff retry. onRetry, when
// non-nil, observes each failed attempt before the next delay.
func Do(ctx context.Context, cfg Config, fn func() error, onRetry func(n uint, err error)) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return retry.Do(fn, opts...)
}

// Unrecoverable marks an error as not worth retrying; Do stops
// immediately and returns it.
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}
