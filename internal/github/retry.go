// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// secondaryRateLimitWait applies when a secondary rate limit carries no Retry-After
const secondaryRateLimitWait = time.Minute

// executeWithRetry runs operation until it succeeds, fails permanently or the retries are used up.
// Without retries the operation's error is returned unwrapped.
func (c *githubClient) executeWithRetry(ctx context.Context, operation func() error) error {
	cfg := c.retryConfig

	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = operation(); err == nil || !isRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := c.calculateBackoff(attempt)
		if limit, ok := rateLimitWait(err); ok && limit > wait {
			wait = min(limit, cfg.MaxBackoff)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if cfg.MaxRetries == 0 {
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, err)
}

// isRetryable reports whether err is a rate limit or a transient server error
func isRetryable(err error) bool {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		ghErr    *github.ErrorResponse
	)

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return true
	case errors.As(err, &ghErr) && ghErr.Response != nil:
		switch ghErr.Response.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case http.StatusForbidden:
			return strings.HasPrefix(ghErr.Message, "API rate limit exceeded")
		}
	}

	return false
}

// calculateBackoff returns the exponential backoff for attempt with ±20% jitter, capped at MaxBackoff
func (c *githubClient) calculateBackoff(attempt int) time.Duration {
	base := float64(c.retryConfig.InitialBackoff) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt))
	jittered := time.Duration(base * (0.8 + 0.4*rand.Float64()))
	return min(jittered, c.retryConfig.MaxBackoff)
}

// rateLimitWait returns how long GitHub asked the client to back off
func rateLimitWait(err error) (time.Duration, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		return wait, wait > 0
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return secondaryRateLimitWait, true
	}

	return 0, false
}
