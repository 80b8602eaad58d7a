package infra

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig holds configuration for connection retry logic
type RetryConfig struct {
	// MaxRetries is the number of transient failures tolerated while a
	// connection is opening before the attempt fails.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// ResumeDelay is used to reopen an established stream that dropped,
	// unless the server advertised its own retry interval.
	ResumeDelay time.Duration
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		ResumeDelay:  3 * time.Second,
	}
}

// NewBackOff returns an exponential backoff following cfg. Each connect
// attempt owns its own instance.
func (cfg RetryConfig) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	if cfg.Multiplier > 0 {
		b.Multiplier = cfg.Multiplier
	}
	b.Reset()
	return b
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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

// WithRetry runs fn until it succeeds, returns an error wrapped with
// Permanent, or cfg.MaxRetries retries have failed.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	tries := uint(1)
	if cfg.MaxRetries > 0 {
		tries += uint(cfg.MaxRetries)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(cfg.NewBackOff()), backoff.WithMaxTries(tries))
	return err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsRetryableHTTPStatus reports whether a response with statusCode may
// succeed when repeated.
func IsRetryableHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}
