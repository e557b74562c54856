// README: Capacity ledger kept as Redis counters updated by Lua scripts.
package capacity

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"routebite/internal/apperr"
	"routebite/internal/types"
)

const keyPrefix = "routebite:capacity:"

var reserveScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n < tonumber(ARGV[1]) then
	redis.call('INCR', KEYS[1])
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisLedger keeps one counter per restaurant; both scripts run atomically on the server.
type RedisLedger struct {
	redis *redis.Client
}

func NewRedisLedger(redis *redis.Client) *RedisLedger {
	return &RedisLedger{redis: redis}
}

func (l *RedisLedger) TryReserve(ctx context.Context, id types.ID, limit int) (bool, error) {
	n, err := reserveScript.Run(ctx, l.redis, []string{key(id)}, limit).Int()
	if err != nil {
		return false, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	return n == 1, nil
}

func (l *RedisLedger) Release(ctx context.Context, id types.ID) error {
	if err := releaseScript.Run(ctx, l.redis, []string{key(id)}).Err(); err != nil {
		return apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	return nil
}

func (l *RedisLedger) Counts(ctx context.Context, ids []types.ID) (map[types.ID]int, error) {
	out := make(map[types.ID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	vals, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			out[ids[i]] = 0
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDependencyUnavailable, "capacity ledger", err)
		}
		out[ids[i]] = n
	}
	return out, nil
}

func key(id types.ID) string {
	return keyPrefix + string(id)
}
