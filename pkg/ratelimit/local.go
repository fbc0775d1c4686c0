package ratelimit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Local represents a local rate limiter using the golang.org/x/time/rate package.
type Local struct {
	*rate.Limiter
}

// NewLocalLimiter creates a new local rate limiter with specified maximum and
// burstable requests per second.
func NewLocalLimiter(maximumRPS int, burstableRPS int) Limiter {
	return Local{
		Limiter: rate.NewLimiter(rate.Limit(maximumRPS), burstableRPS),
	}
}

// Take attempts to allow an action under the rate limit and returns the
// duration taken.
func (l Local) Take(ctx context.Context) time.Duration {
	start := time.Now()

	if err := l.Limiter.Wait(ctx); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Fatal()
	}

	return time.Since(start)
}
