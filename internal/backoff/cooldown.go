package backoff

import (
	"context"
	"sync"
	"time"
)

// Cooldown is a pool-wide pause gate. When the remote signals throttling,
// the first worker to report it starts the cooldown; workers that report
// the same signal while a cooldown is already active do not extend it, so
// one throttling episode causes exactly one pause rather than a retry
// storm.
type Cooldown struct {
	mu    sync.Mutex
	until time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewCooldown returns an idle cooldown gate.
func NewCooldown() *Cooldown {
	return &Cooldown{now: time.Now}
}

// Trigger starts a cooldown of duration d. Returns true if this call
// started it, false if a cooldown was already in progress (the signal is
// then absorbed into the existing pause).
func (c *Cooldown) Trigger(d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.until) {
		return false
	}
	c.until = now.Add(d)
	return true
}

// Active reports whether a cooldown is currently in progress.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.until)
}

// Wait blocks until any active cooldown has elapsed or the context is
// cancelled. Returns immediately when the gate is idle.
func (c *Cooldown) Wait(ctx context.Context) error {
	c.mu.Lock()
	remaining := c.until.Sub(c.now())
	c.mu.Unlock()

	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
