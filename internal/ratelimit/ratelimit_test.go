package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitteredLimiter_DisabledIsInstant(t *testing.T) {
	limiter := NewJitteredLimiter(0, 0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestJitteredLimiter_FirstCallIsFree(t *testing.T) {
	limiter := NewJitteredLimiter(time.Second, time.Second)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestJitteredLimiter_EnforcesGap(t *testing.T) {
	limiter := NewJitteredLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, limiter.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestJitteredLimiter_ContextCancel(t *testing.T) {
	limiter := NewJitteredLimiter(time.Minute, time.Minute)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJitteredLimiter_SetDelayClampsMax(t *testing.T) {
	limiter := NewJitteredLimiter(time.Second, 3*time.Second)
	limiter.SetDelay(2*time.Second, time.Second)

	assert.Equal(t, 2*time.Second, limiter.calculateDelay())
}

func TestJitteredLimiter_JitterStaysInBounds(t *testing.T) {
	limiter := NewJitteredLimiter(10*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 100; i++ {
		delay := limiter.calculateDelay()
		assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
		assert.Less(t, delay, 20*time.Millisecond)
	}
}
