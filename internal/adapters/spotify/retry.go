package spotify

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultBackoffMs  = 500
)

// configureRetry installs the retry policy: transport errors (timeouts
// included), 429 and 5xx are retried up to maxRetries total attempts with
// exponential backoff, honoring Retry-After. Every catalog call is a GET,
// so retrying a chunk or page is idempotent.
func (c *Client) configureRetry(maxBackoff time.Duration) {
	c.http.
		SetRetryCount(c.maxRetries - 1).
		SetRetryWaitTime(c.baseBackoff).
		SetRetryMaxWaitTime(maxBackoff).
		AddRetryCondition(shouldRetry).
		SetRetryAfter(retryAfter).
		AddRetryHook(c.logRetry)
}

func (c *Client) logRetry(resp *resty.Response, err error) {
	attempt := 0
	if resp != nil && resp.Request != nil {
		attempt = resp.Request.Attempt
	}
	fields := []zap.Field{zap.Int("attempt", attempt), zap.Int("max_attempts", c.maxRetries)}
	if err != nil {
		c.logger.Warn("retrying after error", append(fields, zap.Error(err))...)
		return
	}
	if resp != nil {
		c.logger.Warn("retrying after status", append(fields, zap.Int("status", resp.StatusCode()))...)
	}
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		// Nothing was sent, or the caller gave up.
		if resp == nil || resp.Request == nil {
			return false
		}
		return resp.Request.Context().Err() == nil
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryAfter returns the server-requested delay. Zero falls back to the
// exponential backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil {
		return 0, nil
	}
	return parseRetryAfter(resp.RawResponse), nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}
