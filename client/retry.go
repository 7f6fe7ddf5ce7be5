package client

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// doWithRetry executes an idempotent request with exponential backoff retry.
// It retries on network errors and retryable status codes (408, 429, 500, 502, 503, 504).
// The last response is returned as is, so status mapping stays in doRequest.
// Backoff: initialBackoff -> initialBackoff*2 -> initialBackoff*4 (with jitter)
func (a *Adapter) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := a.opts.retryBackoff

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if !a.shouldRetry(ctx, attempt, backoff) {
				return nil, err
			}
			backoff = a.nextBackoff(backoff)
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < a.opts.retryMax-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if !a.shouldRetry(ctx, attempt, backoff) {
				return nil, ctx.Err()
			}
			backoff = a.nextBackoff(backoff)
			continue
		}

		return resp, nil
	}
}

// shouldRetry returns true if another attempt is allowed.
// It waits for the backoff duration respecting context cancellation.
func (a *Adapter) shouldRetry(ctx context.Context, attempt int, backoff time.Duration) bool {
	if attempt >= a.opts.retryMax-1 {
		return false
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with jitter.
// Formula: currentBackoff * 2 + random(0, currentBackoff/2)
func (a *Adapter) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if half := int64(current / 2); half > 0 {
		next += time.Duration(rand.Int63n(half))
	}
	return next
}
