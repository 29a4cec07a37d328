package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"maple-party/internal/logging"
)

const (
	retryMaxTries        = 3
	retryInitialInterval = 300 * time.Millisecond
	retryMaxInterval     = 3 * time.Second
)

var errRetryableStatus = errors.New("retryable status")

type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

func newRetryPolicy(initial, maxInterval time.Duration) retryPolicy {
	if initial <= 0 {
		initial = retryInitialInterval
	}
	if maxInterval <= 0 {
		maxInterval = retryMaxInterval
	}
	return retryPolicy{initial: initial, max: maxInterval}
}

func (p retryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.Multiplier = 2
	b.MaxInterval = p.max
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// retryable reports whether an attempt may be repeated. Only GETs answered
// with 413 are.
func retryable(method string, status int) bool {
	return method == http.MethodGet && status == http.StatusRequestEntityTooLarge
}

// sendWithRetry returns the last response once attempts are exhausted; the
// caller decides how to surface it.
func (c *Client) sendWithRetry(ctx context.Context, spec requestSpec) (*Response, error) {
	var (
		last    *Response
		lastErr error
	)
	_, _ = backoff.Retry(ctx, func() (struct{}, error) {
		last, lastErr = c.send(ctx, spec)
		if lastErr != nil {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		if retryable(spec.method, last.StatusCode) {
			return struct{}{}, errRetryableStatus
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(c.retry.backOff()),
		backoff.WithMaxTries(retryMaxTries),
		backoff.WithNotify(func(_ error, next time.Duration) {
			c.logger.Debug("retrying request",
				logging.Field("method", spec.method),
				logging.Field("path", spec.path),
				logging.Field("status", last.Status),
				logging.Field("next_retry", next.String()),
			)
		}),
	)
	if lastErr != nil {
		return nil, lastErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return last, nil
}
