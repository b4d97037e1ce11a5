// Package extract materializes one normalized record per confirmed,
// not-yet-extracted, non-retired identifier. Fetches run on a bounded
// worker pool; checkpoint mutations are funnelled through a single
// coordinating goroutine per category.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/examvault/harvester/internal/backoff"
	"github.com/examvault/harvester/internal/checkpoint"
	"github.com/examvault/harvester/internal/client"
	"github.com/examvault/harvester/internal/index"
	"github.com/examvault/harvester/internal/record"
	"github.com/examvault/harvester/internal/types"
)

// Config tunes one extraction run.
type Config struct {
	// Workers bounds the fetch pool. Fetches are heavier than probes, so
	// the default is derived from available parallelism and capped at 12.
	Workers int
	// RefreshExisting re-fetches identifiers that already have artifacts.
	RefreshExisting bool
	// ProgressEvery prints a progress line after this many completions.
	ProgressEvery int

	Policy backoff.Policy
}

// DefaultConfig returns the tuning used when flags do not override it.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0)
	if workers > 12 {
		workers = 12
	}
	return Config{
		Workers:       workers,
		ProgressEvery: 25,
		Policy:        backoff.DefaultPolicy(),
	}
}

// Engine drives extraction for one category at a time.
type Engine struct {
	store      *checkpoint.Store
	fetcher    client.Fetcher
	recordsDir string
	idx        *index.Index // optional cache; may be nil
	cfg        Config

	cooldown *backoff.Cooldown
}

// NewEngine builds an extraction engine. idx may be nil; when present it
// is kept in step with every artifact written.
func NewEngine(store *checkpoint.Store, fetcher client.Fetcher, recordsDir string, idx *index.Index, cfg Config) (*Engine, error) {
	if err := os.MkdirAll(recordsDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract: creating output directory %s: %w", recordsDir, err)
	}
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = def.ProgressEvery
	}
	if cfg.Policy.TransientBudget == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	return &Engine{
		store:      store,
		fetcher:    fetcher,
		recordsDir: recordsDir,
		idx:        idx,
		cfg:        cfg,
		cooldown:   backoff.NewCooldown(),
	}, nil
}

// Result summarizes one extraction run over one category.
type Result struct {
	Category    types.CategoryCode
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time

	Pending   int
	Extracted int
	Retired   int
	Failed    int
	Skipped   int // already extracted, no network touched
}

// Summary returns a human-readable run summary, produced even when the
// run only partially succeeded.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Extraction %s (%s) finished in %v\n"+
			"  Pending:   %d\n"+
			"  Extracted: %d, retired: %d, failed: %d, skipped: %d",
		r.Category, types.CategoryName(r.Category),
		r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond),
		r.Pending, r.Extracted, r.Retired, r.Failed, r.Skipped,
	)
}

// Pending computes the work list for a category without any network:
// discovered minus retired minus already-extracted (artifact presence).
// With RefreshExisting set, artifacts are ignored and every non-retired
// discovered identifier is returned.
func (e *Engine) Pending(category types.CategoryCode) ([]types.CandidateID, int, error) {
	rec, err := e.store.Load(category)
	if err != nil {
		return nil, 0, err
	}
	if rec == nil {
		return nil, 0, fmt.Errorf("extract: no discovery checkpoint for %s; run discover first", category)
	}

	retired := rec.RetiredSet()
	var pending []types.CandidateID
	skipped := 0
	for _, raw := range rec.Confirmed {
		id, err := types.ParseCandidateID(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: checkpoint for %s holds malformed id %q; skipping\n", category, raw)
			continue
		}
		if retired[raw] {
			continue
		}
		if !e.cfg.RefreshExisting && record.Exists(e.recordsDir, id) {
			skipped++
			continue
		}
		pending = append(pending, id)
	}
	return pending, skipped, nil
}

// Run extracts every pending identifier for a category. Per-candidate
// failures are recorded and do not abort the run.
func (e *Engine) Run(ctx context.Context, category types.CategoryCode) (*Result, error) {
	pending, skipped, err := e.Pending(category)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, category, pending, skipped)
}

// RunIDs extracts a caller-chosen subset (the retry-missing path).
// Retired identifiers are still excluded; already-present artifacts are
// still skipped unless RefreshExisting is set.
func (e *Engine) RunIDs(ctx context.Context, category types.CategoryCode, ids []types.CandidateID) (*Result, error) {
	rec, err := e.store.Load(category)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("extract: no discovery checkpoint for %s", category)
	}

	retired := rec.RetiredSet()
	seen := make(map[string]bool, len(ids))
	var pending []types.CandidateID
	skipped := 0
	for _, id := range ids {
		key := id.String()
		if seen[key] || retired[key] {
			continue
		}
		seen[key] = true
		if !e.cfg.RefreshExisting && record.Exists(e.recordsDir, id) {
			skipped++
			continue
		}
		pending = append(pending, id)
	}
	return e.run(ctx, category, pending, skipped)
}

// fetchEvent is what a worker reports back to the coordinator.
type fetchEvent struct {
	id       types.CandidateID
	written  bool
	retired  bool
	attempts int
	class    backoff.Class
	err      error
}

func (e *Engine) run(ctx context.Context, category types.CategoryCode, pending []types.CandidateID, skipped int) (*Result, error) {
	result := &Result{
		Category:  category,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Pending:   len(pending),
		Skipped:   skipped,
	}

	fmt.Printf("Extraction %s: %d pending, %d already on disk\n", category, len(pending), skipped)

	if len(pending) > 0 {
		if err := e.fetchAll(ctx, category, pending, result); err != nil {
			return nil, err
		}
	}

	result.CompletedAt = time.Now()
	return result, nil
}

func (e *Engine) fetchAll(ctx context.Context, category types.CategoryCode, pending []types.CandidateID, result *Result) error {
	jobs := make(chan types.CandidateID)
	events := make(chan fetchEvent)

	workers, wctx := errgroup.WithContext(ctx)
	workers.SetLimit(e.cfg.Workers + 1)

	workers.Go(func() error {
		defer close(jobs)
		for _, id := range pending {
			select {
			case jobs <- id:
			case <-wctx.Done():
				return wctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < e.cfg.Workers; i++ {
		workers.Go(func() error {
			for id := range jobs {
				ev := e.fetchOne(wctx, id)
				select {
				case events <- ev:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}

	var workerErr error
	go func() {
		workerErr = workers.Wait()
		close(events)
	}()

	// Coordinator: single writer of the checkpoint for this category.
	done := 0
	for ev := range events {
		done++
		if err := e.applyEvent(ctx, category, ev, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: recording outcome for %s: %v\n", ev.id, err)
		}
		if done%e.cfg.ProgressEvery == 0 {
			fmt.Printf("Extraction %s: %d/%d done (extracted %d, retired %d, failed %d)\n",
				category, done, len(pending), result.Extracted, result.Retired, result.Failed)
		}
	}

	if workerErr != nil {
		return fmt.Errorf("extract: interrupted: %w", workerErr)
	}
	return ctx.Err()
}

// applyEvent folds one worker outcome into durable state. Always called
// from the coordinator goroutine only.
func (e *Engine) applyEvent(ctx context.Context, category types.CategoryCode, ev fetchEvent, result *Result) error {
	switch {
	case ev.retired:
		result.Retired++
		return e.store.MarkRetired(category, ev.id)

	case ev.written:
		result.Extracted++
		if e.idx != nil {
			path := record.Path(e.recordsDir, ev.id)
			if err := e.idx.Add(ctx, ev.id, path, time.Now()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: index update for %s: %v\n", ev.id, err)
			}
		}
		return e.store.ClearFailure(category, ev.id)

	default:
		result.Failed++
		fmt.Fprintf(os.Stderr, "Warning: fetch %s failed (%s, %d attempts): %v\n",
			ev.id, ev.class, ev.attempts, ev.err)
		return e.store.RecordFailure(category, ev.id, ev.class.String(), ev.attempts, ev.err.Error())
	}
}

// fetchOne fetches, normalizes and writes a single record, retrying per
// the shared policy. A rate-limit signal pauses the entire pool through
// the cooldown gate, once per signal.
func (e *Engine) fetchOne(ctx context.Context, id types.CandidateID) fetchEvent {
	var lastErr error
	var lastClass backoff.Class

	for attempt := 1; ; attempt++ {
		if err := e.cooldown.Wait(ctx); err != nil {
			return fetchEvent{id: id, attempts: attempt - 1, class: backoff.Transient, err: err}
		}

		payload, err := e.fetcher.Fetch(ctx, id)
		if err == nil {
			rec, derr := record.FromPayload(id, payload)
			if errors.Is(derr, record.ErrRetired) {
				return fetchEvent{id: id, retired: true, attempts: attempt}
			}
			if derr != nil {
				// An undecodable payload will not improve on retry.
				return fetchEvent{id: id, attempts: attempt, class: backoff.Permanent, err: derr}
			}
			if werr := record.Write(e.recordsDir, rec); werr != nil {
				return fetchEvent{id: id, attempts: attempt, class: backoff.Permanent, err: werr}
			}
			return fetchEvent{id: id, written: true, attempts: attempt}
		}

		lastErr = err
		lastClass = backoff.Classify(err)
		if lastClass == backoff.Permanent || attempt >= e.cfg.Policy.Budget(lastClass) {
			return fetchEvent{id: id, attempts: attempt, class: lastClass, err: lastErr}
		}

		delay := e.cfg.Policy.NextDelay(lastClass, attempt)
		if lastClass == backoff.RateLimited {
			if e.cooldown.Trigger(delay) {
				fmt.Printf("Extraction: remote throttling detected, pausing fetch pool for %v\n", delay)
			}
			continue // the next loop iteration waits on the gate
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fetchEvent{id: id, attempts: attempt, class: lastClass, err: ctx.Err()}
		}
	}
}
