package trap

import "sync"

// Clock counts timer interrupts.
type Clock struct {
	mu    sync.Mutex
	ticks uint64
}

// Tick advances the clock by one.
func (c *Clock) Tick() {
	c.mu.Lock()
	c.ticks++
	c.mu.Unlock()
}

// Ticks returns the number of ticks since boot.
func (c *Clock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}
