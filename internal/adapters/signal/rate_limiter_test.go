package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("s1"))
	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))
	assert.True(t, rl.Allow("s2"), "limits are per connection")

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("s1"), "window slid past old attempts")

	rl.Forget("s1")
	rl.mu.Lock()
	_, ok := rl.history["s1"]
	rl.mu.Unlock()
	assert.False(t, ok)
}

func TestRoomRateLimiterDisabled(t *testing.T) {
	var nilLimiter *RoomRateLimiter
	assert.True(t, nilLimiter.Allow("s1"))
	nilLimiter.Forget("s1")

	rl := NewRoomRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("s1"))
	}
}
