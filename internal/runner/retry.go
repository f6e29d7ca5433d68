package runner

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const maxRetryDelay = 5 * time.Second

// StatusCoder is implemented by errors carrying an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryPolicy configures reconnect behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial connect
	Delay       time.Duration                              // fixed delay between attempts (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// NewRetryPolicy reconnects up to retries times with exponential backoff from
// base, capped at five seconds, plus up to half the backoff of jitter.
// Cancellation and client-side HTTP statuses other than 429 are not retried.
func NewRetryPolicy(retries int, base time.Duration) RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}

			var status StatusCoder
			if errors.As(err, &status) {
				code := status.HTTPStatus()
				if code == http.StatusTooManyRequests {
					return true
				}
				return code >= 500
			}

			return true
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			if attempt > 16 {
				attempt = 16
			}
			backoff := time.Duration(1<<uint(attempt-1)) * base
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}

// retrySource wraps a Source with reconnect logic.
type retrySource struct {
	inner  Source
	policy RetryPolicy
}

// WithRetry wraps a Source so a failed stream is reopened. A stream that
// ends cleanly is not reopened.
func WithRetry(src Source, policy RetryPolicy) Source {
	if policy.MaxAttempts <= 1 {
		return src // no retries needed
	}
	return &retrySource{
		inner:  src,
		policy: policy,
	}
}

func (r *retrySource) Stream(ctx context.Context, sink Sink) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = r.inner.Stream(ctx, sink)
		if lastErr == nil {
			return nil
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

// loggingSource wraps a Source with failure logging.
type loggingSource struct {
	inner  Source
	logger *slog.Logger
}

// WithLogging wraps a Source to log stream failures. Cancellation is not
// logged.
func WithLogging(src Source, logger *slog.Logger) Source {
	if logger == nil {
		return src
	}
	return &loggingSource{
		inner:  src,
		logger: logger,
	}
}

func (l *loggingSource) Stream(ctx context.Context, sink Sink) error {
	err := l.inner.Stream(ctx, sink)
	if err != nil && ctx.Err() == nil {
		l.logger.Warn("source stream failed", "error", err)
	}
	return err
}
