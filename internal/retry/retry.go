package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"billtool/internal/domain"
)

// =============================================================================
// RetryConfig
// =============================================================================

// Config controls retry behaviour for external API calls.
type Config struct {
	MaxRetries     int           `json:"maxRetries"`     // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration `json:"initialBackoff"` // Delay before first retry
	MaxBackoff     time.Duration `json:"maxBackoff"`     // Upper bound on backoff duration
	Multiplier     float64       `json:"multiplier"`     // Backoff multiplier (e.g. 2.0 for exponential)
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// FromDomain converts the millisecond-based config file section. Zero fields
// fall back to DefaultConfig values; nil returns DefaultConfig.
func FromDomain(rc *domain.RetryConfig) Config {
	cfg := DefaultConfig()
	if rc == nil {
		return cfg
	}
	cfg.MaxRetries = rc.MaxRetries
	if rc.InitialBackoff > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoff) * time.Millisecond
	}
	if rc.MaxBackoff > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoff) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		cfg.Multiplier = float64(rc.Multiplier)
	}
	return cfg
}

// Validate checks that all Config fields are within acceptable ranges.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("retry: MaxRetries must be >= 0")
	}
	if c.InitialBackoff <= 0 {
		return errors.New("retry: InitialBackoff must be > 0")
	}
	if c.MaxBackoff <= 0 {
		return errors.New("retry: MaxBackoff must be > 0")
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	return nil
}

// =============================================================================
// Error Classification
// =============================================================================

// statusCoder is implemented by HTTP-level errors that carry a response status
// (billing.APIError). Declared here so retry does not import its callers.
type statusCoder interface {
	StatusCode() int
}

// retryableStatus reports whether an HTTP status indicates a transient failure.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsRetryable returns true when err represents a transient failure that may
// succeed on retry (5xx, 429, timeout, connection refused, EOF).
// Context errors (Canceled, DeadlineExceeded) are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are never retryable; the caller chose to cancel.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return retryableStatus(sc.StatusCode())
	}

	// net.Error timeout (wraps OS-level i/o timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return true
	}
	if strings.Contains(msg, "connection reset") {
		return true
	}
	if strings.Contains(msg, "EOF") {
		return true
	}

	return false
}

// =============================================================================
// Retrier
// =============================================================================

// Retrier runs operations with retry-on-transient-error logic.
type Retrier struct {
	config    Config
	sleepFunc func(time.Duration) // injectable for testing
}

// New returns a Retrier using cfg.
func New(cfg Config) *Retrier {
	return &Retrier{config: cfg, sleepFunc: time.Sleep}
}

// WithSleep returns a copy of r that sleeps with fn. Tests use it to skip real delays.
func (r *Retrier) WithSleep(fn func(time.Duration)) *Retrier {
	cp := *r
	cp.sleepFunc = fn
	return &cp
}

// Config returns the retry configuration.
func (r *Retrier) Config() Config { return r.config }

// Run calls fn and retries on transient errors with exponential backoff.
// Returns the first successful result, or the last error after retries are
// exhausted. Non-retryable errors are returned unchanged. A nil Retrier calls
// fn exactly once.
func Run[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return fn(ctx)
	}

	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt == r.config.MaxRetries {
			break
		}

		r.sleepFunc(backoff)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		// Increase backoff for next iteration, capped at MaxBackoff
		next := time.Duration(float64(backoff) * r.config.Multiplier)
		if next > r.config.MaxBackoff {
			next = r.config.MaxBackoff
		}
		backoff = next
	}

	if r.config.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, &ExhaustedError{Attempts: r.config.MaxRetries + 1, Err: lastErr}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
// It unwraps to the last error so errors.As still finds the upstream cause.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
