// Package leadlock keeps at most one enrichment in flight per raw lead id.
package leadlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// ErrLocked means another worker is already enriching the lead.
var ErrLocked = eris.New("leadlock: lead already in flight")

// Locker acquires a per-lead lock. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, rawLeadID string) (release func(), err error)
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory returns an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

// Acquire fails fast with ErrLocked when the lead is held.
func (m *Memory) Acquire(_ context.Context, rawLeadID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[rawLeadID]; ok {
		return nil, eris.Wrapf(ErrLocked, "lead %s", rawLeadID)
	}
	m.held[rawLeadID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, rawLeadID)
			m.mu.Unlock()
		})
	}, nil
}

const keyPrefix = "refinery:lock:"

// releaseScript deletes the key only if this holder still owns it.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisClient is the subset of go-redis used by Redis.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis is a Locker shared across processes. Locks expire after ttl so a
// crashed worker cannot hold a lead forever.
type Redis struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedis returns a Redis-backed locker.
func NewRedis(client RedisClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// Acquire sets the lock key with SET NX and a random owner token.
func (r *Redis) Acquire(ctx context.Context, rawLeadID string) (func(), error) {
	key := keyPrefix + rawLeadID
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "leadlock: acquire %s", rawLeadID)
	}
	if !ok {
		return nil, eris.Wrapf(ErrLocked, "lead %s", rawLeadID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release on a fresh context; the caller's may already be done.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.client.Eval(ctx, releaseScript, []string{key}, token).Err()
		})
	}, nil
}
