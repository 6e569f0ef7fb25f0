package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// RetryPolicy bounds how often and how long a request is retried.
type RetryPolicy struct {
	Retries      int
	InitialDelay time.Duration
}

// DefaultRetryPolicy retries twice, waiting 800ms then 1.6s. Intermittent DNS
// failures are the common case it absorbs.
var DefaultRetryPolicy = RetryPolicy{Retries: 2, InitialDelay: 800 * time.Millisecond}

// Retrier runs an operation with exponential backoff.
type Retrier struct {
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetrier(policy RetryPolicy, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{policy: policy, logger: logger, sleep: sleepContext}
}

// Do calls op until it succeeds, the retry budget is spent, or the error is
// not retryable. The last error is returned as is.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := r.policy.InitialDelay
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Debug("request succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		if attempt >= r.policy.Retries || !retryable(err) {
			return err
		}

		r.logger.Debug("request failed, backing off",
			"attempt", attempt+1,
			"retry_delay_ms", delay.Milliseconds(),
			"error", err)

		if serr := r.sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
}

// retryable treats client errors other than timeouts and rate limiting as
// final. Everything else (network, DNS, 5xx) is retried.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests {
			return true
		}
		return se.Code < 400 || se.Code >= 500
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
