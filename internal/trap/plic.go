package trap

import "sync"

// InterruptController is the claim/complete handshake of a platform-level
// interrupt controller. Claim returns 0 when nothing is pending.
type InterruptController interface {
	Claim() uint32
	Complete(irq uint32)
}

// PLIC is an in-memory interrupt controller. Raised interrupts are claimed
// in order; a source cannot be raised again until it has been completed.
type PLIC struct {
	mu        sync.Mutex
	pending   []uint32
	inService map[uint32]bool
	completed uint64
}

// NewPLIC returns an idle controller.
func NewPLIC() *PLIC {
	return &PLIC{inService: make(map[uint32]bool)}
}

// Raise marks irq pending. It reports false if irq is already pending or
// in service.
func (c *PLIC) Raise(irq uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if irq == 0 || c.inService[irq] {
		return false
	}
	c.inService[irq] = true
	c.pending = append(c.pending, irq)
	return true
}

// Claim implements InterruptController.
func (c *PLIC) Claim() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return 0
	}
	irq := c.pending[0]
	c.pending = c.pending[1:]
	return irq
}

// Complete implements InterruptController.
func (c *PLIC) Complete(irq uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inService, irq)
	c.completed++
}

// Completed returns how many interrupts have been completed.
func (c *PLIC) Completed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
