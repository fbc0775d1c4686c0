package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisKey is the shared key under which all deployer replicas account their
// platform API requests.
const redisKey string = `adpl:platform:api`

// Redis represents a rate limiter using Redis, shared across all replicas of
// the deployer talking to the same platform workspace.
type Redis struct {
	*redis_rate.Limiter
	MaxRPS int
}

// NewRedisLimiter creates a new Redis-based rate limiter.
func NewRedisLimiter(redisClient *redis.Client, maxRPS int) Limiter {
	return Redis{
		Limiter: redis_rate.NewLimiter(redisClient),
		MaxRPS:  maxRPS,
	}
}

// Take attempts to allow a request under the rate limit and blocks until allowed.
func (r Redis) Take(ctx context.Context) time.Duration {
	start := time.Now()

	for {
		res, err := r.Allow(ctx, redisKey, redis_rate.PerSecond(r.MaxRPS))
		if err != nil {
			log.WithContext(ctx).
				WithError(err).
				Fatal()
		}

		if res.Allowed > 0 {
			break
		}

		log.WithFields(
			log.Fields{
				"for": res.RetryAfter.String(),
			},
		).Debug("throttled platform API requests")

		time.Sleep(res.RetryAfter)
	}

	return time.Since(start)
}
