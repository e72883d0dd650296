// Package retry holds the bounded re-attempt policy shared by the
// orchestrator and the page drivers.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"media_scrooper/models"
)

// Config configures backoff between attempts.
type Config struct {
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the backoff growth factor.
	Multiplier float64
}

func DefaultConfig() Config {
	return Config{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// ShouldRetry reports whether another attempt is allowed after attempt
// (1-based) failed with an error of the given kind. Only transient errors
// are retried; at most maxRetries retries follow the first attempt.
func ShouldRetry(attempt, maxRetries int, kind models.ErrorKind) bool {
	if kind != models.ErrorKindTransient {
		return false
	}
	return attempt >= 1 && attempt <= maxRetries
}

// Manager combines the retry decision with backoff.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

func (m *Manager) ShouldRetry(attempt, maxRetries int, kind models.ErrorKind) bool {
	return ShouldRetry(attempt, maxRetries, kind)
}

// Backoff returns the delay before retry number n (1-based).
func (m *Manager) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := time.Duration(float64(m.cfg.InitialDelay) * math.Pow(m.cfg.Multiplier, float64(n-1)))
	if d > m.cfg.MaxDelay || d < 0 {
		d = m.cfg.MaxDelay
	}
	return d
}

// Wait sleeps for the backoff of retry n or until ctx is done.
func (m *Manager) Wait(ctx context.Context, n int) error {
	d := m.Backoff(n)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, or
// maxRetries retries are used up.
func (m *Manager) Do(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !m.ShouldRetry(attempt, maxRetries, models.KindOf(err)) {
			return err
		}
		if err := m.Wait(ctx, attempt); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}
}
