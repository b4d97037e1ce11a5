// Package client defines the remote capabilities the harvester consumes:
// a cheap existence probe and a full record fetch. Session acquisition is
// someone else's problem; implementations are handed an already-usable
// credential and surface an unauthenticated state as a permanent error.
package client

import (
	"context"
	"fmt"

	"github.com/examvault/harvester/internal/types"
)

// ProbeStatus is the outcome of an existence probe that completed without
// error. Absence is a normal answer, not a failure.
type ProbeStatus int

const (
	ProbeAbsent ProbeStatus = iota
	ProbeExists
)

func (s ProbeStatus) String() string {
	if s == ProbeExists {
		return "exists"
	}
	return "absent"
}

// Prober answers whether a candidate currently exists on the remote.
type Prober interface {
	Probe(ctx context.Context, id types.CandidateID) (ProbeStatus, error)
}

// Fetcher retrieves the full payload for a record the prober confirmed.
type Fetcher interface {
	Fetch(ctx context.Context, id types.CandidateID) ([]byte, error)
}

// ErrorKind classifies a remote error for the retry policy.
type ErrorKind int

const (
	// KindAuth: the session is missing, expired, or rejected. Permanent;
	// the core surfaces it but never tries to re-authenticate.
	KindAuth ErrorKind = iota
	// KindBadRequest: the remote rejected the request shape itself.
	KindBadRequest
	// KindNotFound: a fetch for an identifier the remote no longer serves.
	KindNotFound
	// KindRateLimited: explicit throttling signal (systemic, not per-candidate).
	KindRateLimited
	// KindServer: remote 5xx.
	KindServer
	// KindTimeout: the per-call deadline elapsed.
	KindTimeout
	// KindNetwork: connection reset, refused, DNS failure and friends.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad-request"
	case KindNotFound:
		return "not-found"
	case KindRateLimited:
		return "rate-limited"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// RemoteError is a classified failure from the remote service.
type RemoteError struct {
	Kind   ErrorKind
	Status int // HTTP status when applicable, else 0
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s (HTTP %d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("remote %s: %s", e.Kind, e.Msg)
}
