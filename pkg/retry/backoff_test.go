package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type permanentErr struct{ msg string }

func (e permanentErr) Error() string   { return e.msg }
func (e permanentErr) Retryable() bool { return false }

type hintedErr struct {
	error
	delay time.Duration
}

func (e hintedErr) RetryDelay() (time.Duration, bool) { return e.delay, true }

func fastConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithBackoffFirstTry(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "noop", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffRecovers(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoffPermanentError(t *testing.T) {
	sentinel := permanentErr{msg: "not found"}
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "lookup", func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
	assert.Equal(t, sentinel, err, "permanent errors are returned unwrapped")
}

func TestWithBackoffExhaustsRetries(t *testing.T) {
	sentinel := errors.New("still down")
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zaptest.NewLogger(t), "ping", func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "ping failed after 4 attempts")
}

func TestWithBackoffHonorsDelayHint(t *testing.T) {
	// The configured delay would stall the test for an hour; only the
	// server-directed hint lets it finish.
	cfg := Config{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2.0}
	calls := 0
	start := time.Now()
	err := WithBackoff(context.Background(), cfg, zaptest.NewLogger(t), "throttled", func() error {
		calls++
		if calls < 3 {
			return hintedErr{error: errors.New("rate limited"), delay: time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestWithBackoffContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithBackoff(ctx, fastConfig(), zaptest.NewLogger(t), "cancelled", func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestWithBackoffContextEndsDuringWait(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2.0}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := WithBackoff(ctx, cfg, zaptest.NewLogger(t), "slow", func() error {
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextDelayGrowthAndCap(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Multiplier: 2.0}
	transient := errors.New("transient")

	assert.Equal(t, 10*time.Millisecond, nextDelay(cfg, 1, transient))
	assert.Equal(t, 20*time.Millisecond, nextDelay(cfg, 2, transient))
	assert.Equal(t, 40*time.Millisecond, nextDelay(cfg, 3, transient))
	assert.Equal(t, 40*time.Millisecond, nextDelay(cfg, 4, transient), "delay is capped at MaxDelay")
}

func TestNextDelayJitterBounds(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0, JitterEnabled: true}
	transient := errors.New("transient")

	for i := 0; i < 50; i++ {
		d := nextDelay(cfg, 1, transient)
		assert.GreaterOrEqual(t, d, 85*time.Millisecond)
		assert.LessOrEqual(t, d, 115*time.Millisecond)
	}
}

func TestNextDelayHintCapped(t *testing.T) {
	cfg := Config{InitialDelay: time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2.0}
	err := hintedErr{error: errors.New("rate limited"), delay: time.Hour}
	assert.Equal(t, 50*time.Millisecond, nextDelay(cfg, 1, err))
}
