package sessions

import (
	"sync"
	"time"
)

// Countdown drives two independent timers: a ticker that refreshes the
// displayed remaining time, and a single deadline timer that fires onExpire.
// Display drift never affects when onExpire fires.
type Countdown struct {
	duration time.Duration
	tick     time.Duration
	onTick   func(remaining time.Duration)
	onExpire func()

	mu        sync.Mutex
	started   bool
	stopped   bool
	remaining time.Duration
	ticker    *time.Ticker
	deadline  *time.Timer
	done      chan struct{}
}

func NewCountdown(duration, tick time.Duration, onTick func(remaining time.Duration), onExpire func()) *Countdown {
	if duration < 0 {
		duration = 0
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{
		duration:  duration,
		tick:      tick,
		onTick:    onTick,
		onExpire:  onExpire,
		remaining: duration,
		done:      make(chan struct{}),
	}
}

// Start arms both timers and reports the initial remaining time. It returns
// false when the countdown was already started or stopped.
func (c *Countdown) Start() bool {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return false
	}
	c.started = true

	if c.duration == 0 {
		c.mu.Unlock()
		c.emitTick(0)
		go c.expire()
		return true
	}

	c.deadline = time.AfterFunc(c.duration, c.expire)
	c.ticker = time.NewTicker(c.tick)
	go c.loop(c.ticker.C)
	remaining := c.remaining
	c.mu.Unlock()

	c.emitTick(remaining)
	return true
}

// Stop cancels both timers. It is idempotent, and once it returns onExpire
// will not start.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Countdown) loop(ticks <-chan time.Time) {
	for {
		select {
		case <-c.done:
			return
		case <-ticks:
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			c.remaining -= c.tick
			if c.remaining < 0 {
				c.remaining = 0
			}
			remaining := c.remaining
			c.mu.Unlock()

			c.emitTick(remaining)
		}
	}
}

func (c *Countdown) expire() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.remaining = 0
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire()
	}
}

func (c *Countdown) stopLocked() {
	if c.stopped {
		return
	}
	c.stopped = true
	if c.deadline != nil {
		c.deadline.Stop()
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.done)
}

func (c *Countdown) emitTick(remaining time.Duration) {
	if c.onTick != nil {
		c.onTick(remaining)
	}
}
