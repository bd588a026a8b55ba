// Package retry implements exponential backoff for transient failures, used
// when talking to analysis backends.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxRetries int           // retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on any single delay
	Multiplier float64       // exponential growth factor
	Jitter     bool          // spread delays to avoid lockstep retries
}

// DefaultConfig returns general-purpose retry settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// AnalysisConfig returns settings tuned for analysis backend calls, which
// are slow and rate-limited.
func AnalysisConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
	}
}

// Do runs the operation, retrying transient failures with exponential
// backoff. Permanent errors return immediately; the last error is returned
// when retries are exhausted or the context is done.
func Do(ctx context.Context, cfg Config, name string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			if attempt > 0 {
				log.Debug().Str("op", name).Int("attempt", attempt+1).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		if !IsRetryable(lastErr) || attempt >= cfg.MaxRetries {
			return lastErr
		}

		delay := calculateDelay(cfg, attempt)
		log.Debug().Str("op", name).Int("attempt", attempt+1).
			Dur("delay", delay).Err(lastErr).
			Msg("Transient failure, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// calculateDelay computes baseDelay * multiplier^attempt, capped at
// MaxDelay, with up to 10% jitter either way.
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitterRange := delay * 0.1
		jitter := (rand.Float64() - 0.5) * 2 * jitterRange
		delay += jitter

		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// permanentError pins an error as non-retryable regardless of its text.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it without further attempts, even when
// the message would otherwise classify as transient.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether the error looks transient: network hiccups,
// rate limits, and overloaded upstreams.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	msg := strings.ToLower(err.Error())

	transient := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"timeout",
		"temporary failure",
		"service unavailable",
		"overloaded",
		"too many requests",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"no such host",
		"network unreachable",
		"broken pipe",
	}

	for _, needle := range transient {
		if strings.Contains(msg, needle) {
			return true
		}
	}

	return false
}
