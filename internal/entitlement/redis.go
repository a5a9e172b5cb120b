package entitlement

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// decrIfPositive spends one credit atomically. Returns the new balance, or
// -1 when the balance was already zero or missing.
const decrIfPositive = `
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v <= 0 then
  return -1
end
return redis.call("DECR", KEYS[1])
`

// RedisClient is the subset of go-redis used by RedisQuota.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisQuota keeps the credit balance in a Redis key shared by every
// refinery process.
type RedisQuota struct {
	client RedisClient
	key    string
}

// NewRedisQuota returns a quota stored under key.
func NewRedisQuota(client RedisClient, key string) *RedisQuota {
	return &RedisQuota{client: client, key: key}
}

// Fund sets the balance to n credits.
func (q *RedisQuota) Fund(ctx context.Context, n int64) error {
	if err := q.client.Set(ctx, q.key, n, 0).Err(); err != nil {
		return eris.Wrap(err, "entitlement: fund")
	}
	return nil
}

// Remaining reads the current balance. A missing key is zero.
func (q *RedisQuota) Remaining(ctx context.Context) (int64, error) {
	v, err := q.client.Get(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "entitlement: read balance")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "entitlement: parse balance %q", v)
	}
	return n, nil
}

// Authorize fails when the shared balance is empty.
func (q *RedisQuota) Authorize(ctx context.Context, rawLeadID string) error {
	n, err := q.Remaining(ctx)
	if err != nil {
		return err
	}
	if n <= 0 {
		return eris.Wrapf(ErrInsufficient, "authorize %s", rawLeadID)
	}
	return nil
}

// Settle spends one credit.
func (q *RedisQuota) Settle(ctx context.Context, rawLeadID string) error {
	n, err := q.client.Eval(ctx, decrIfPositive, []string{q.key}).Int64()
	if err != nil {
		return eris.Wrap(err, "entitlement: settle")
	}
	if n < 0 {
		return eris.Wrapf(ErrInsufficient, "settle %s", rawLeadID)
	}
	return nil
}
