package redisad

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

var ErrLockLost = errors.New("redis lock: released after expiry")

// Locker is a domain.Locker shared across API replicas. The TTL bounds how
// long a crashed holder can block a room type.
type Locker struct {
	c     *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(c *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{c: c, ttl: ttl, retry: 25 * time.Millisecond}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.c.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// release must run even if the caller's ctx is done
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(rctx, l.c, []string{key}, token).Int()
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("redis lock release failed")
			return
		}
		if n == 0 {
			log.Warn().Err(ErrLockLost).Str("key", key).Msg("redis lock expired before release")
		}
	}, nil
}
