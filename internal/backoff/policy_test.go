package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/examvault/harvester/internal/client"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"auth", &client.RemoteError{Kind: client.KindAuth}, Permanent},
		{"bad request", &client.RemoteError{Kind: client.KindBadRequest}, Permanent},
		{"server", &client.RemoteError{Kind: client.KindServer, Status: 502}, Transient},
		{"timeout", &client.RemoteError{Kind: client.KindTimeout}, Transient},
		{"network", &client.RemoteError{Kind: client.KindNetwork}, Transient},
		{"rate limited", &client.RemoteError{Kind: client.KindRateLimited, Status: 429}, RateLimited},
		{"fetch-time not-found treated as transient", &client.RemoteError{Kind: client.KindNotFound}, Transient},
		{"context deadline", context.DeadlineExceeded, Transient},
		{"plain error", errors.New("boom"), Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyWrappedError(t *testing.T) {
	err := &client.RemoteError{Kind: client.KindServer, Status: 500}
	wrapped := errors.Join(errors.New("fetching cv-mcq-24-001"), err)
	assert.Equal(t, Transient, Classify(wrapped))
}

func TestNextDelayMonotonicAndCapped(t *testing.T) {
	p := DefaultPolicy()

	var prev time.Duration
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.NextDelay(Transient, attempt)
		assert.GreaterOrEqual(t, d, prev, "delay must be non-decreasing")
		assert.LessOrEqual(t, d, p.MaxDelay, "delay must be capped")
		prev = d
	}

	assert.Equal(t, p.InitialDelay, p.NextDelay(Transient, 1))
	assert.Equal(t, 2*p.InitialDelay, p.NextDelay(Transient, 2))
	assert.Equal(t, p.MaxDelay, p.NextDelay(Transient, 100))
}

func TestNextDelayRateLimitedFloor(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, p.Cooldown, p.NextDelay(RateLimited, 1),
		"rate-limited retries wait at least the cooldown")
	assert.GreaterOrEqual(t, p.NextDelay(RateLimited, 100), p.Cooldown)
}

func TestBudgets(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 1, p.Budget(Permanent))
	assert.Equal(t, p.TransientBudget, p.Budget(Transient))
	assert.Equal(t, p.RateLimitBudget, p.Budget(RateLimited))
	assert.Greater(t, p.RateLimitBudget, p.TransientBudget,
		"throttling gets the more generous budget")
}

func TestCooldownFiresOncePerSignal(t *testing.T) {
	c := NewCooldown()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.True(t, c.Trigger(time.Minute), "first signal starts the cooldown")
	assert.False(t, c.Trigger(time.Minute), "concurrent signals are absorbed")
	assert.False(t, c.Trigger(time.Minute))
	assert.True(t, c.Active())

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Active())
	assert.True(t, c.Trigger(time.Minute), "a fresh episode starts a new cooldown")
}

func TestCooldownWaitIdleReturnsImmediately(t *testing.T) {
	c := NewCooldown()
	start := time.Now()
	assert.NoError(t, c.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestCooldownWaitHonorsCancellation(t *testing.T) {
	c := NewCooldown()
	c.Trigger(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}

func TestCooldownWaitElapses(t *testing.T) {
	c := NewCooldown()
	c.Trigger(30 * time.Millisecond)
	assert.NoError(t, c.Wait(context.Background()))
	assert.False(t, c.Active())
}
