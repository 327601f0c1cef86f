package core

import "time"

// Clock measures seconds since Start. Elapsed only moves on Update, so every
// reader within one frame sees the same value.
type Clock struct {
	now     func() time.Time
	started time.Time
	running bool
	elapsed float64
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Start() {
	c.started = c.now()
	c.running = true
	c.elapsed = 0
}

// Update samples the time source. No-op on a stopped clock.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.now().Sub(c.started).Seconds()
	}
}

// Stop freezes Elapsed at its last sampled value.
func (c *Clock) Stop() {
	c.running = false
}

func (c *Clock) Running() bool { return c.running }

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}
