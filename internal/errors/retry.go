package errors

import (
	"context"
	"errors"
	"time"
)

// Policy bounds retry attempts with exponential backoff. The zero value is not
// usable; take DefaultPolicy and tweak it.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy suits short network calls such as oracle balance fetches.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// WithRetry runs fn until it succeeds, returns a non-retryable error, the
// attempt budget is exhausted, or ctx is cancelled.
func (p Policy) WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	backoff := p.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt >= p.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// IsRetryable reports whether err is marked retryable via AppError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}
