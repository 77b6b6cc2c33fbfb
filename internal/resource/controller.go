package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when the resident limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("resident memory limit exceeded")

// minBurst keeps a full page transfer within one token bucket burst even
// under very low throughput limits.
const minBurst = 64 << 10

// Config holds resource limits.
type Config struct {
	// ResidentLimitBytes caps the bytes of mapped pages made resident by
	// faults across all processes. If 0, usage is only tracked.
	ResidentLimitBytes int64

	// IOLimitBytesPerSec caps backing-file throughput for fault-in reads
	// and writeback. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller accounts resident mapped memory and paces file IO.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.ResidentLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.ResidentLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		burst := max(cfg.IOLimitBytesPerSec, minBurst)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(burst))
	}

	return c
}

// AcquireMemory reserves bytes of resident memory.
// Non-blocking: a fault that cannot be served fails instead of waiting.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current resident usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured resident limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.ResidentLimitBytes
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
