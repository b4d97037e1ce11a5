// Package backoff holds the retry policy shared by discovery and
// extraction: pure error classification and pure delay computation, plus
// the pool-wide cooldown gate used when the remote signals throttling.
package backoff

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/examvault/harvester/internal/client"
)

// Class is the retry classification of an error.
type Class int

const (
	// Permanent errors are surfaced immediately and never retried:
	// definitive not-found, auth failure, malformed request.
	Permanent Class = iota
	// Transient errors (timeout, reset, 5xx) get a small retry budget
	// with capped exponential backoff.
	Transient
	// RateLimited is a systemic throttling signal: longer cooldown,
	// larger budget, and in extraction the whole pool pauses.
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case RateLimited:
		return "rate-limited"
	default:
		return "unknown"
	}
}

// Classify maps an error to its retry class. Absence and retirement are
// not errors and never reach here.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}

	var rerr *client.RemoteError
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case client.KindRateLimited:
			return RateLimited
		case client.KindServer, client.KindTimeout, client.KindNetwork:
			return Transient
		case client.KindNotFound:
			// A fetch-time not-found for a discovery-confirmed ID is
			// ambiguous: a race, or a retirement between discovery and
			// extraction. Treat as transient; the capped budget escalates
			// it to a failure record if it persists.
			return Transient
		default:
			return Permanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}

	return Permanent
}

// Policy holds delay and budget parameters. The zero value is unusable;
// start from DefaultPolicy.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// TransientBudget is the total attempt count for transient errors.
	TransientBudget int
	// RateLimitBudget is the (more generous) attempt count once the
	// remote has signalled throttling.
	RateLimitBudget int
	// Cooldown is the pool-wide pause applied per throttling signal.
	Cooldown time.Duration
}

// DefaultPolicy returns the parameters used when configuration does not
// override them.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		TransientBudget: 4,
		RateLimitBudget: 8,
		Cooldown:        60 * time.Second,
	}
}

// Budget returns the attempt budget for a class. Permanent errors get a
// single attempt.
func (p Policy) Budget(c Class) int {
	switch c {
	case Transient:
		return p.TransientBudget
	case RateLimited:
		return p.RateLimitBudget
	default:
		return 1
	}
}

// NextDelay computes the delay before retry number attempt (1-based: the
// delay after the attempt-th failure). Delays grow exponentially and are
// capped at MaxDelay; rate-limited retries never wait less than the
// cooldown.
func (p Policy) NextDelay(c Class, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if c == RateLimited && d < p.Cooldown {
		return p.Cooldown
	}
	return d
}
