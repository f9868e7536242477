package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

// Store counts hits in a fixed window. Incr returns the count after this hit.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter. Store failures fail open.
type Limiter struct {
	log    *logger.Logger
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLimiter defaults a non-positive window to a minute. Buckets are whole seconds, so
// shorter windows are raised to one second.
func NewLimiter(log *logger.Logger, store Store, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if window < time.Second {
		window = time.Second
	}
	return &Limiter{
		log:    log.With("component", "RateLimiter"),
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *Limiter) Allow(ctx context.Context, scope, subject string) Decision {
	if l == nil || l.store == nil || l.limit <= 0 {
		return Decision{Allowed: true, Limit: 0}
	}
	now := l.now()
	bucket := now.Unix() / int64(l.window/time.Second)
	key := fmt.Sprintf("rl:%s:%s:%s", scope, subject, strconv.FormatInt(bucket, 10))

	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		l.log.Warn("rate limit store failed; allowing request", "scope", scope, "error", err)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: count <= int64(l.limit), Limit: l.limit, Remaining: remaining}
	if !d.Allowed {
		windowEnd := time.Unix((bucket+1)*int64(l.window/time.Second), 0)
		d.RetryAfter = windowEnd.Sub(now)
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}

type redisStore struct {
	rdb goredis.UniversalClient
}

func NewRedisStore(rdb goredis.UniversalClient) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
