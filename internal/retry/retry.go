// Package retry provides exponential backoff helpers for action calls
// and reconnect loops.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config holds backoff configuration. RetryIf decides whether an error
// is worth retrying; a nil RetryIf retries every error.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	RetryIf     func(error) bool
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Do executes fn with exponential backoff between attempts.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := delayFor(cfg, attempt)
		if cfg.Jitter {
			delay = jitter(delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// Backoff tracks the delay of an open-ended reconnect loop: each Next
// call grows the delay exponentially up to MaxDelay, Reset returns it
// to BaseDelay. MaxAttempts is ignored; the caller decides when to give
// up.
type Backoff struct {
	cfg     Config
	attempt int
}

// NewBackoff creates a reconnect backoff from cfg.
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{cfg: cfg}
}

// Next returns the delay to wait before the next attempt and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	delay := delayFor(b.cfg, b.attempt)
	b.attempt++
	if b.cfg.Jitter {
		delay = jitter(delay)
	}
	return delay
}

// Reset returns the schedule to its base delay.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of Next calls since the last Reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

func delayFor(cfg Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	// The guard against <= 0 catches float overflow at high attempt
	// counts.
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	return delay
}

func jitter(delay time.Duration) time.Duration {
	return time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
}
