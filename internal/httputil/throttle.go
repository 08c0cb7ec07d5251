// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: a request
// throttle that spaces upstream calls and a cookie-keeping session client.
package httputil

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MaxHintDelay caps how long a server-supplied Retry-After hint may hold
// back the next request. Tests override this to avoid real sleeps.
var MaxHintDelay = 2 * time.Minute

// Throttle spaces outbound requests with a token bucket. The first call to
// Wait returns immediately; later calls wait for the configured interval.
// A Retry-After header seen by Observe pushes the next permitted request
// further out. Throttle never retries a request itself.
//
// A nil *Throttle is valid and never waits.
type Throttle struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	notBefore time.Time
	now       func() time.Time
}

// NewThrottle returns a throttle admitting one request per interval.
// An interval <= 0 disables spacing.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Wait blocks until the next request is permitted or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	hold := t.notBefore.Sub(t.now())
	t.mu.Unlock()

	if hold > 0 {
		timer := time.NewTimer(hold)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Observe records a Retry-After hint from a 429 or 503 response.
func (t *Throttle) Observe(resp *http.Response) {
	if t == nil || resp == nil {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}
	delay, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), t.now())
	if !ok {
		return
	}
	if delay > MaxHintDelay {
		delay = MaxHintDelay
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.now().Add(delay); until.After(t.notBefore) {
		t.notBefore = until
	}
}

// Do waits on the throttle, sends req with ctx, and records any rate-limit
// hint on the response. It makes exactly one attempt.
func Do(ctx context.Context, client *http.Client, t *Throttle, req *http.Request) (*http.Response, error) {
	if err := t.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	t.Observe(resp)
	return resp, nil
}

// ParseRetryAfter interprets a Retry-After header given as delta-seconds or
// an HTTP date. It reports false when the header is absent or unusable.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}
