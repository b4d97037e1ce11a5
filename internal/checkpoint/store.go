// Package checkpoint persists per-category discovery state so that
// discovery and extraction runs are interruptible and resumable. Saves are
// atomic (write-temp-then-rename): a crash mid-save leaves either the
// previous valid file or the fully new one, never a blend.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/examvault/harvester/internal/fsutil"
	"github.com/examvault/harvester/internal/types"
)

// Store holds checkpoint files under a single directory, one JSON document
// per category plus a shared discovery-stats summary. Single-writer
// discipline per category is the caller's job: one coordinating owner per
// category, with worker results funnelled through it.
type Store struct {
	dir string
}

const statsFileName = "discovery-stats.json"

// NewStore creates the checkpoint directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: creating directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store persists into.
func (s *Store) Dir() string { return s.dir }

func (s *Store) categoryPath(category types.CategoryCode) string {
	return filepath.Join(s.dir, string(category)+".json")
}

// Load reads the checkpoint for a category. A missing file returns
// (nil, nil). A corrupted file is treated as absent too, with a warning:
// losing a checkpoint costs a re-discovery, which beats refusing to run.
func (s *Store) Load(category types.CategoryCode) (*DiscoveryRecord, error) {
	data, err := os.ReadFile(s.categoryPath(category))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: reading %s: %w", category, err)
	}

	var rec DiscoveryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: checkpoint for %s is unreadable (%v); treating as absent, a full re-discovery will run\n", category, err)
		return nil, nil
	}
	if rec.Category != string(category) {
		fmt.Fprintf(os.Stderr, "Warning: checkpoint for %s names category %q; treating as absent\n", category, rec.Category)
		return nil, nil
	}

	sort.Strings(rec.Confirmed)
	sort.Strings(rec.Tested)
	sort.Strings(rec.Retired)
	return &rec, nil
}

// Save atomically writes the checkpoint for a category and refreshes the
// shared stats summary.
func (s *Store) Save(category types.CategoryCode, rec *DiscoveryRecord) error {
	rec.Category = string(category)
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encoding %s: %w", category, err)
	}
	if err := fsutil.WriteFileAtomic(s.categoryPath(category), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: saving %s: %w", category, err)
	}

	if err := s.writeStatsSummary(); err != nil {
		// The per-category file is already durable; a stale summary is
		// rebuilt on the next save.
		fmt.Fprintf(os.Stderr, "Warning: updating %s: %v\n", statsFileName, err)
	}
	return nil
}

// MarkRetired records that the remote declared an identifier withdrawn.
// Retirement is discovered at fetch time, so a checkpoint normally exists;
// if not, a skeleton record is created.
func (s *Store) MarkRetired(category types.CategoryCode, id types.CandidateID) error {
	rec, err := s.Load(category)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = NewDiscoveryRecord(string(category))
	}
	if !rec.AddRetired(id.String()) {
		return nil
	}
	rec.ClearFailure(id.String())
	return s.Save(category, rec)
}

// RecordFailure persists a failure record for manual retry later.
func (s *Store) RecordFailure(category types.CategoryCode, id types.CandidateID, class string, attempts int, lastErr string) error {
	rec, err := s.Load(category)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = NewDiscoveryRecord(string(category))
	}
	rec.SetFailure(FailureRecord{
		ID:         id.String(),
		Class:      class,
		Attempts:   attempts,
		LastError:  lastErr,
		RecordedAt: time.Now().UTC(),
	})
	return s.Save(category, rec)
}

// ClearFailure removes the failure record for an identifier after a
// successful fetch. No-op if none exists.
func (s *Store) ClearFailure(category types.CategoryCode, id types.CandidateID) error {
	rec, err := s.Load(category)
	if err != nil || rec == nil {
		return err
	}
	if !rec.ClearFailure(id.String()) {
		return nil
	}
	return s.Save(category, rec)
}

// Categories lists every category that has a checkpoint file, sorted.
func (s *Store) Categories() ([]types.CategoryCode, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: listing %s: %w", s.dir, err)
	}

	var cats []types.CategoryCode
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == statsFileName {
			continue
		}
		cat := types.CategoryCode(strings.TrimSuffix(name, ".json"))
		if types.ValidCategory(cat) {
			cats = append(cats, cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats, nil
}

// CategorySummary is one row of the shared discovery metadata file.
type CategorySummary struct {
	DiscoveredCount  int       `json:"discovered_count"`
	CandidatesTested int       `json:"candidates_tested"`
	HitRate          float64   `json:"hit_rate"`
	KindsFound       []string  `json:"kinds_found"`
	Timestamp        time.Time `json:"timestamp"`
}

// Summary aggregates the per-category checkpoints into the shared
// discovery metadata shape.
func (s *Store) Summary() (map[string]CategorySummary, error) {
	cats, err := s.Categories()
	if err != nil {
		return nil, err
	}

	out := make(map[string]CategorySummary, len(cats))
	for _, cat := range cats {
		rec, err := s.Load(cat)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out[string(cat)] = CategorySummary{
			DiscoveredCount:  len(rec.Confirmed),
			CandidatesTested: rec.Stats.CandidatesTested,
			HitRate:          rec.Stats.HitRate(),
			KindsFound:       rec.Stats.KindsFound,
			Timestamp:        rec.Stats.LastRun,
		}
	}
	return out, nil
}

func (s *Store) writeStatsSummary() error {
	summary, err := s.Summary()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(s.dir, statsFileName), data, 0o644)
}
