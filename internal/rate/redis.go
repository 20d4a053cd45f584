package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PTTL == -1 covers a key left without expiry by an interrupted writer.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisStore shares windows between processes through Redis.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore creates a [RedisStore] backed by client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: client}
}

// Incr implements [WindowStore].
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	count, err := incrScript.Run(ctx, s.redis, []string{key}, ms).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return count, nil
}
