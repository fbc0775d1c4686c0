package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

// Do runs op until it succeeds, up to maxAttempts times, waiting a fixed
// interval between failed attempts. The first error wrapped with Permanent
// stops the retries immediately. Context cancellation aborts the wait.
func Do[T any](ctx context.Context, op func() (T, error), maxAttempts int, interval time.Duration) (T, error) {
	return backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.WithContext(ctx).
				WithError(err).
				WithField("retry-in", wait.String()).
				Debug("operation failed, retrying")
		}),
	)
}

// DoVoid is Do for operations without a return value.
func DoVoid(ctx context.Context, op func() error, maxAttempts int, interval time.Duration) error {
	_, err := Do(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, maxAttempts, interval)

	return err
}

// Poll runs op at a fixed interval until it succeeds or timeout elapses.
// It is used to wait for eventually-consistent platform state, such as a
// serving endpoint becoming ready.
func Poll[T any](ctx context.Context, op func() (T, error), interval, timeout time.Duration) (T, error) {
	return backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
}

// Permanent wraps err so that Do and Poll stop retrying and return it as-is.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Sleep pauses for d unless the context is canceled first, in which case the
// context error is returned.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
