package leadlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	release, err := m.Acquire(ctx, "lead-1")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "lead-1")
	assert.True(t, errors.Is(err, ErrLocked))

	other, err := m.Acquire(ctx, "lead-2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := m.Acquire(ctx, "lead-1")
	require.NoError(t, err)
	again()
}

type fakeRedis struct {
	setnx *redis.BoolCmd
	eval  *redis.Cmd

	setKey   string
	setTTL   time.Duration
	setValue interface{}
	evalKeys []string
	evalArgs []interface{}
	evals    int
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.setKey, f.setValue, f.setTTL = key, value, ttl
	return f.setnx
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.evals++
	f.evalKeys, f.evalArgs = keys, args
	return f.eval
}

func TestRedis_AcquireRelease(t *testing.T) {
	f := &fakeRedis{
		setnx: redis.NewBoolResult(true, nil),
		eval:  redis.NewCmdResult(int64(1), nil),
	}
	l := NewRedis(f, time.Minute)

	release, err := l.Acquire(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "refinery:lock:lead-1", f.setKey)
	assert.Equal(t, time.Minute, f.setTTL)

	release()
	release()
	assert.Equal(t, 1, f.evals)
	assert.Equal(t, []string{"refinery:lock:lead-1"}, f.evalKeys)
	require.Len(t, f.evalArgs, 1)
	assert.Equal(t, f.setValue, f.evalArgs[0])
}

func TestRedis_Held(t *testing.T) {
	f := &fakeRedis{setnx: redis.NewBoolResult(false, nil)}
	_, err := NewRedis(f, 0).Acquire(context.Background(), "lead-1")
	assert.True(t, errors.Is(err, ErrLocked))
	assert.Equal(t, 5*time.Minute, f.setTTL)
}

func TestRedis_Error(t *testing.T) {
	f := &fakeRedis{setnx: redis.NewBoolResult(false, errors.New("connection refused"))}
	_, err := NewRedis(f, time.Second).Acquire(context.Background(), "lead-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLocked))
	assert.Contains(t, err.Error(), "leadlock: acquire")
}
