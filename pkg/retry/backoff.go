// Package retry runs operations with exponential backoff. The upstream API
// rate-limits in bursts, so errors can opt out of retrying entirely
// (Retryable) or dictate the exact wait the server asked for (DelayHinter).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterEnabled bool
}

// DefaultConfig spreads ten attempts over roughly five minutes before an
// operation is abandoned.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    10,
		InitialDelay:  2 * time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

// Retryable lets an error declare whether another attempt can help.
// Errors that do not implement it are treated as retryable.
type Retryable interface {
	Retryable() bool
}

// DelayHinter lets an error carry a server-directed wait (a Retry-After
// header) that replaces the computed backoff for one attempt.
type DelayHinter interface {
	RetryDelay() (time.Duration, bool)
}

// WithBackoff runs fn until it succeeds, fails permanently, exhausts
// cfg.MaxRetries, or ctx ends.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation), zap.Int("attempts", attempt))
			}
			return nil
		}

		var perm Retryable
		if errors.As(err, &perm) && !perm.Retryable() {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxRetries, err)
		}

		delay := nextDelay(cfg, attempt, err)
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
}

// nextDelay computes the exponential backoff for attempt, unless the error
// dictates its own wait. The base delay never exceeds cfg.MaxDelay.
func nextDelay(cfg Config, attempt int, err error) time.Duration {
	var h DelayHinter
	if errors.As(err, &h) {
		if d, ok := h.RetryDelay(); ok {
			return min(d, cfg.MaxDelay)
		}
	}

	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	delay = math.Min(delay, float64(cfg.MaxDelay))
	if cfg.JitterEnabled {
		// Spread by ±15% so parallel operations don't align their retries.
		delay *= 0.85 + 0.3*rand.Float64()
	}
	return time.Duration(delay)
}
