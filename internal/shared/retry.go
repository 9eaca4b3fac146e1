package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitError reports a remote throttling response (HTTP 429).
// RetryAfter carries the server-provided wait hint, zero if absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryPolicy paces remote calls with a minimum inter-call delay and retries
// throttled calls with the server-provided wait hint or a default backoff.
//
// Injected into every API-calling component; there are no ambient timers.
type RetryPolicy struct {
	limiter        *rate.Limiter
	MaxRetries     int
	DefaultBackoff time.Duration
	// LongWait is the hint above which Do gives up instead of sleeping,
	// so the caller can persist state and exit cleanly.
	LongWait time.Duration
	// Grace is added on top of every server wait hint.
	Grace time.Duration

	sleep func(time.Duration)
}

// NewRetryPolicy creates a RetryPolicy with the given requests-per-second
// pacing. Zero or negative values fall back to defaults.
func NewRetryPolicy(rps float64, maxRetries int, defaultBackoff time.Duration) *RetryPolicy {
	if rps <= 0 {
		rps = 5.0
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if defaultBackoff <= 0 {
		defaultBackoff = 60 * time.Second
	}
	return &RetryPolicy{
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		MaxRetries:     maxRetries,
		DefaultBackoff: defaultBackoff,
		LongWait:       60 * time.Second,
		Grace:          5 * time.Second,
		sleep:          time.Sleep,
	}
}

// Wait blocks until the pacing limiter permits the next call.
func (p *RetryPolicy) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Do runs fn, retrying rate-limited calls up to MaxRetries times.
//
// A throttling response with a wait hint above LongWait is returned
// immediately so the caller can save progress instead of stalling.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = p.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) || attempt >= p.MaxRetries {
			return err
		}

		wait := rl.RetryAfter
		if wait <= 0 {
			wait = p.DefaultBackoff
		}
		if wait > p.LongWait {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.sleep(wait + p.Grace)
	}
}

// TooLong reports whether err is a throttling error whose wait hint exceeds
// LongWait.
func (p *RetryPolicy) TooLong(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl) && rl.RetryAfter > p.LongWait
}
