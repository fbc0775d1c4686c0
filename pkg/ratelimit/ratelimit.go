package ratelimit

import (
	"context"
	"time"
)

// Limiter is an interface for rate limiting functionality.
// It defines a method for taking a rate-limited action.
type Limiter interface {
	// Take attempts to allow an action under the rate limit and returns the
	// duration taken. It blocks until the action is allowed or the context is
	// canceled.
	Take(ctx context.Context) time.Duration
}

// Take is a helper function that calls the Take method on a Limiter.
// It is used to apply rate limiting to an operation.
func Take(ctx context.Context, l Limiter) {
	l.Take(ctx)
}
