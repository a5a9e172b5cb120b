package notion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_DefaultLimiter(t *testing.T) {
	c, ok := NewClient("secret_token").(*client)
	require.True(t, ok)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, DefaultRPS, float64(c.limiter.Limit()), 0.001)
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("secret_token", WithRateLimit(10)).(*client)
	assert.InDelta(t, 10, float64(c.limiter.Limit()), 0.001)
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("secret_token", WithRateLimit(0)).(*client)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.wait(context.Background()))
}

func TestWait_CancelledContext(t *testing.T) {
	c := NewClient("secret_token", WithRateLimit(0.001)).(*client)
	// Drain the single burst token.
	require.NoError(t, c.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
}
