package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedWindow_AllowsUpToLimit(t *testing.T) {
	rl := NewFixedWindowLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("10.0.0.1:1234")
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter := rl.Allow("10.0.0.1:1234")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestFixedWindow_PerClientIsolation(t *testing.T) {
	rl := NewFixedWindowLimiter(1, time.Minute)

	allowed, _ := rl.Allow("10.0.0.1:1234")
	assert.True(t, allowed)

	allowed, _ = rl.Allow("10.0.0.1:1234")
	assert.False(t, allowed)

	// A different client has its own window.
	allowed, _ = rl.Allow("10.0.0.2:5678")
	assert.True(t, allowed)
}

func TestFixedWindow_WindowResets(t *testing.T) {
	rl := NewFixedWindowLimiter(1, 20*time.Millisecond)

	allowed, _ := rl.Allow("10.0.0.1:1234")
	assert.True(t, allowed)
	allowed, _ = rl.Allow("10.0.0.1:1234")
	assert.False(t, allowed)

	time.Sleep(50 * time.Millisecond)

	allowed, _ = rl.Allow("10.0.0.1:1234")
	assert.True(t, allowed, "window should reset after the time frame")
}
