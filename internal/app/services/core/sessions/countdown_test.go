package sessions

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown(t *testing.T) {
	t.Run("fires expire once after the duration", func(t *testing.T) {
		var expired int32
		done := make(chan struct{})
		countdown := NewCountdown(50*time.Millisecond, 10*time.Millisecond, nil, func() {
			atomic.AddInt32(&expired, 1)
			close(done)
		})

		require.True(t, countdown.Start())
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("countdown did not expire")
		}

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
		assert.True(t, countdown.Stopped())
		assert.Equal(t, time.Duration(0), countdown.Remaining())
	})

	t.Run("emits the initial remaining time and decreasing ticks", func(t *testing.T) {
		var mu sync.Mutex
		var ticks []time.Duration
		countdown := NewCountdown(time.Second, 20*time.Millisecond, func(remaining time.Duration) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		}, nil)

		countdown.Start()
		defer countdown.Stop()

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(ticks) >= 3
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, time.Second, ticks[0])
		for i := 1; i < len(ticks); i++ {
			assert.Less(t, ticks[i], ticks[i-1])
		}
	})

	t.Run("stop before the deadline suppresses expire", func(t *testing.T) {
		var expired int32
		countdown := NewCountdown(40*time.Millisecond, 10*time.Millisecond, nil, func() {
			atomic.AddInt32(&expired, 1)
		})

		countdown.Start()
		countdown.Stop()
		countdown.Stop()

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(0), atomic.LoadInt32(&expired))
	})

	t.Run("start is one-shot", func(t *testing.T) {
		countdown := NewCountdown(time.Second, 10*time.Millisecond, nil, nil)
		assert.True(t, countdown.Start())
		assert.False(t, countdown.Start())
		countdown.Stop()

		stopped := NewCountdown(time.Second, 10*time.Millisecond, nil, nil)
		stopped.Stop()
		assert.False(t, stopped.Start())
	})

	t.Run("zero remaining expires immediately", func(t *testing.T) {
		done := make(chan struct{})
		countdown := NewCountdown(-5*time.Second, time.Second, nil, func() { close(done) })

		countdown.Start()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("countdown with no remaining time did not expire")
		}
	})
}
