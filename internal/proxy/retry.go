package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"
)

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// IsRetryable reports whether err is worth one more attempt: transport
// failures (including a body cut short), per-attempt timeouts and 5xx
// responses. Client errors (4xx) and malformed JSON are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// RetryPolicy bounds how often an operation is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retry       func(error) bool
}

// DefaultRetryPolicy allows a single retry for retryable failures.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 2,
	Backoff:     200 * time.Millisecond,
	Retry:       IsRetryable,
}

// do runs attempt until it succeeds, the policy gives up, or ctx ends. Each
// attempt gets its own timeout derived from ctx; expiry of that timeout
// cancels only the attempt in flight.
func do(ctx context.Context, p RetryPolicy, timeout time.Duration, attempt func(context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Retry == nil {
		p.Retry = IsRetryable
	}

	var lastErr error
	for n := 1; n <= p.MaxAttempts; n++ {
		actx, cancel := context.WithTimeout(ctx, timeout)
		err := attempt(actx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("attempt %d: %w", n, ctx.Err())
		}
		if n == p.MaxAttempts || !p.Retry(err) {
			break
		}

		if p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}
	}
	return lastErr
}
