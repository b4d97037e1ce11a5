// Package discovery determines, per category, which candidate identifiers
// currently exist on the remote. There is no authoritative listing
// endpoint, so the engine probes the enumerated candidate space with a
// bounded pool, persisting progress incrementally so an interrupted run
// resumes where it left off.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/examvault/harvester/internal/backoff"
	"github.com/examvault/harvester/internal/checkpoint"
	"github.com/examvault/harvester/internal/client"
	"github.com/examvault/harvester/internal/idspace"
	"github.com/examvault/harvester/internal/types"
)

// Config tunes one discovery run.
type Config struct {
	// Concurrency bounds the probe pool. Probes are cheap and short, so
	// the default is relatively high.
	Concurrency int
	// ProbeRate caps probes per second across the pool; 0 means no cap.
	ProbeRate float64
	// SaveEvery persists the checkpoint after this many new definitive
	// answers, so an interrupted run keeps most of its progress.
	SaveEvery int
	// Refresh discards the prior confirmed/tested sets and rebuilds them.
	// Retired identifiers and failure records survive a refresh.
	Refresh bool
	// Shuffle probes the space in a seeded pseudo-random order instead of
	// sequentially, to avoid correlated-pattern throttling.
	Shuffle     bool
	ShuffleSeed int64

	Policy backoff.Policy
}

// DefaultConfig returns the tuning used when flags do not override it.
func DefaultConfig() Config {
	return Config{
		Concurrency: 32,
		ProbeRate:   50,
		SaveEvery:   25,
		Shuffle:     true,
		Policy:      backoff.DefaultPolicy(),
	}
}

// Engine probes one category at a time against a Prober capability.
type Engine struct {
	store  *checkpoint.Store
	prober client.Prober
	space  idspace.Space
	cfg    Config

	cooldown *backoff.Cooldown
}

// NewEngine builds a discovery engine. The prober is an externally
// supplied, already-authenticated capability.
func NewEngine(store *checkpoint.Store, prober client.Prober, space idspace.Space, cfg Config) (*Engine, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.SaveEvery < 1 {
		cfg.SaveEvery = DefaultConfig().SaveEvery
	}
	if cfg.Policy.TransientBudget == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	return &Engine{
		store:    store,
		prober:   prober,
		space:    space,
		cfg:      cfg,
		cooldown: backoff.NewCooldown(),
	}, nil
}

// Result summarizes one discovery run over one category.
type Result struct {
	Category    types.CategoryCode
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time

	Probed       int // definitive answers this run
	NewConfirmed int
	Absent       int
	Errors       int // candidates whose probe budget ran out

	// Final cumulative state after the run.
	TotalConfirmed   int
	CandidatesTested int
	HitRate          float64
}

// Summary returns a human-readable run summary.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Discovery %s (%s) finished in %v\n"+
			"  Probed this run:  %d (new: %d, absent: %d, errors: %d)\n"+
			"  Confirmed total:  %d of %d tested (hit rate %.1f%%)",
		r.Category, types.CategoryName(r.Category),
		r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond),
		r.Probed, r.NewConfirmed, r.Absent, r.Errors,
		r.TotalConfirmed, r.CandidatesTested, r.HitRate*100,
	)
}

// probeOutcome is what a worker reports back to the coordinator. Only the
// coordinator mutates the checkpoint record; workers never touch it.
type probeOutcome struct {
	id     types.CandidateID
	status client.ProbeStatus
	err    error
}

// Run discovers the confirmed-existing set for one category. The run is
// resumable: candidates with a prior definitive answer are not re-probed
// unless Refresh is set.
func (e *Engine) Run(ctx context.Context, category types.CategoryCode) (*Result, error) {
	if !types.ValidCategory(category) {
		return nil, fmt.Errorf("discovery: unknown category %q", category)
	}

	result := &Result{
		Category:  category,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	rec, err := e.loadState(category)
	if err != nil {
		return nil, err
	}

	pending := e.pendingCandidates(category, rec)
	fmt.Printf("Discovery %s: %d candidates pending (%d already tested)\n",
		category, len(pending), len(rec.Tested))

	// An unchanged run probes nothing and rewrites nothing; the
	// checkpoint stays byte-identical.
	if len(pending) > 0 {
		if err := e.probeAll(ctx, pending, rec, result); err != nil {
			// Persist whatever progress we made before surfacing.
			_ = e.saveState(category, rec, result.RunID)
			return nil, err
		}
		if err := e.saveState(category, rec, result.RunID); err != nil {
			return nil, err
		}
	}

	result.CompletedAt = time.Now()
	result.TotalConfirmed = len(rec.Confirmed)
	result.CandidatesTested = rec.Stats.CandidatesTested
	result.HitRate = rec.Stats.HitRate()
	return result, nil
}

func (e *Engine) loadState(category types.CategoryCode) (*checkpoint.DiscoveryRecord, error) {
	rec, err := e.store.Load(category)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return checkpoint.NewDiscoveryRecord(string(category)), nil
	}
	if e.cfg.Refresh {
		fmt.Printf("Discovery %s: refresh requested, discarding %d confirmed / %d tested\n",
			category, len(rec.Confirmed), len(rec.Tested))
		fresh := checkpoint.NewDiscoveryRecord(string(category))
		// Retirement is a remote-side fact and failures still need their
		// manual retry path; both survive a refresh.
		fresh.Retired = rec.Retired
		fresh.Failures = rec.Failures
		return fresh, nil
	}
	return rec, nil
}

func (e *Engine) pendingCandidates(category types.CategoryCode, rec *checkpoint.DiscoveryRecord) []types.CandidateID {
	var all []types.CandidateID
	if e.cfg.Shuffle {
		all = e.space.Shuffled(category, e.cfg.ShuffleSeed)
	} else {
		all = e.space.Enumerate(category)
	}

	tested := rec.TestedSet()
	pending := all[:0]
	for _, id := range all {
		if !tested[id.String()] {
			pending = append(pending, id)
		}
	}
	return pending
}

func (e *Engine) probeAll(ctx context.Context, pending []types.CandidateID, rec *checkpoint.DiscoveryRecord, result *Result) error {
	sem := semaphore.NewWeighted(int64(e.cfg.Concurrency))
	var limiter *rate.Limiter
	if e.cfg.ProbeRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.ProbeRate), e.cfg.Concurrency)
	}

	outcomes := make(chan probeOutcome)
	spawnErr := make(chan error, 1)

	go func() {
		defer close(outcomes)
		for _, id := range pending {
			if err := sem.Acquire(ctx, 1); err != nil {
				spawnErr <- err
				break
			}
			id := id
			go func() {
				defer sem.Release(1)
				outcomes <- e.probeOne(ctx, id, limiter)
			}()
		}
		// Drain the pool so every in-flight worker has reported.
		if err := sem.Acquire(context.Background(), int64(e.cfg.Concurrency)); err == nil {
			sem.Release(int64(e.cfg.Concurrency))
		}
	}()

	// The coordinator below is the single writer of the checkpoint
	// record. It keeps draining outcomes even after a save error so no
	// worker blocks on the channel forever.
	var saveErr error
	sinceSave := 0
	for out := range outcomes {
		if out.err != nil {
			result.Errors++
			fmt.Fprintf(os.Stderr, "Warning: probe %s gave up: %v\n", out.id, out.err)
			continue
		}

		result.Probed++
		rec.AddTested(out.id.String())
		if out.status == client.ProbeExists {
			if rec.AddConfirmed(out.id.String()) {
				result.NewConfirmed++
			}
			rec.Stats.ObserveKind(string(out.id.Kind))
		} else {
			result.Absent++
		}
		rec.Stats.CandidatesTested = len(rec.Tested)
		rec.Stats.HitCount = len(rec.Confirmed)

		sinceSave++
		if saveErr == nil && sinceSave >= e.cfg.SaveEvery {
			sinceSave = 0
			saveErr = e.saveState(result.Category, rec, result.RunID)
		}
	}

	if saveErr != nil {
		return saveErr
	}
	select {
	case err := <-spawnErr:
		return fmt.Errorf("discovery: interrupted: %w", err)
	default:
	}
	return ctx.Err()
}

// probeOne probes a single candidate with retries per the shared policy.
// A rate-limit signal pauses the whole pool through the cooldown gate,
// not just this worker.
func (e *Engine) probeOne(ctx context.Context, id types.CandidateID, limiter *rate.Limiter) probeOutcome {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := e.cooldown.Wait(ctx); err != nil {
			return probeOutcome{id: id, err: err}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return probeOutcome{id: id, err: err}
			}
		}

		status, err := e.prober.Probe(ctx, id)
		if err == nil {
			return probeOutcome{id: id, status: status}
		}
		lastErr = err

		class := backoff.Classify(err)
		if class == backoff.Permanent || attempt >= e.cfg.Policy.Budget(class) {
			return probeOutcome{id: id, err: fmt.Errorf("%s after %d attempts: %w", class, attempt, lastErr)}
		}

		delay := e.cfg.Policy.NextDelay(class, attempt)
		if class == backoff.RateLimited {
			if e.cooldown.Trigger(delay) {
				fmt.Printf("Discovery: remote throttling detected, pausing probe pool for %v\n", delay)
			}
			if err := e.cooldown.Wait(ctx); err != nil {
				return probeOutcome{id: id, err: err}
			}
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return probeOutcome{id: id, err: ctx.Err()}
		}
	}
}

func (e *Engine) saveState(category types.CategoryCode, rec *checkpoint.DiscoveryRecord, runID string) error {
	rec.Stats.LastRun = time.Now().UTC()
	rec.Stats.LastRunID = runID
	return e.store.Save(category, rec)
}
