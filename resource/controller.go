package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// configured memory limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// CopyLimitBytesPerSec is the maximum bulk copy-in throughput during
	// population. If 0, unlimited.
	CopyLimitBytesPerSec int64
}

// Controller tracks and limits memory reserved for graph storage.
//
// All methods are safe for concurrent use; the NUMA layout's population
// workers reserve their partition arenas through one shared Controller.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	copyLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.CopyLimitBytesPerSec > 0 {
		c.copyLimiter = rate.NewLimiter(rate.Limit(cfg.CopyLimitBytesPerSec), int(cfg.CopyLimitBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(_ context.Context, bytes int64) error {
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

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// ThrottleCopy waits until the copy limit allows the specified number of
// bytes. Requests larger than the limiter burst are split.
func (c *Controller) ThrottleCopy(ctx context.Context, bytes int) error {
	if c == nil || c.copyLimiter == nil || bytes <= 0 {
		return nil
	}

	burst := c.copyLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.copyLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryThrottleCopy attempts to acquire copy tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryThrottleCopy(bytes int) bool {
	if c == nil || c.copyLimiter == nil {
		return true
	}
	return c.copyLimiter.AllowN(time.Now(), bytes)
}
