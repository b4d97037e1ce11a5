// Package validate reconciles on-disk extraction output against the
// discovery ground truth. It is strictly read-only over its inputs: the
// only thing it ever writes is its own report, fully overwritten each run,
// so it is safe to run at any time, including alongside an in-progress
// extraction (the result is then a best-effort snapshot).
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/examvault/harvester/internal/checkpoint"
	"github.com/examvault/harvester/internal/fsutil"
	"github.com/examvault/harvester/internal/record"
	"github.com/examvault/harvester/internal/types"
)

// IssueKind tags one validation finding.
type IssueKind string

const (
	// MissingOutput: a confirmed, non-retired identifier has no artifact.
	MissingOutput IssueKind = "missing_output"
	// ParseError: an artifact exists but is not valid JSON.
	ParseError IssueKind = "parse_error"
	// SchemaInvalid: an artifact parses but violates the record schema.
	SchemaInvalid IssueKind = "schema_invalid"
	// CountMismatch: extracted and discovered counts disagree for a
	// category.
	CountMismatch IssueKind = "count_mismatch"
)

// Issue is one reported discrepancy. Purely informational; validation
// never becomes authoritative state.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Category string    `json:"category,omitempty"`
	ID       string    `json:"id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	// Warning marks findings that signal staleness rather than damage
	// (over-extraction pointing at out-of-date discovery state).
	Warning bool `json:"warning,omitempty"`

	Extracted  int `json:"extracted,omitempty"`
	Discovered int `json:"discovered,omitempty"`
}

// Coverage classifies one category's extraction completeness.
type Coverage string

const (
	CoverageFull    Coverage = "full"
	CoveragePartial Coverage = "partial"
	// CoverageOver: more artifacts than discovered identifiers. A
	// warning, not an error: it means discovery state is stale.
	CoverageOver Coverage = "over"
)

// CategoryReport is the per-category breakdown.
type CategoryReport struct {
	Category   string   `json:"category"`
	Discovered int      `json:"discovered"`
	Extracted  int      `json:"extracted"`
	Retired    int      `json:"retired"`
	Coverage   Coverage `json:"coverage"`
	// CoveragePct is extracted over discovered-minus-retired; retired
	// identifiers never count as missing.
	CoveragePct float64 `json:"coverage_pct"`
	Issues      int     `json:"issues"`
}

// Report is the aggregated validation output.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Categories []CategoryReport `json:"categories"`
	Issues     []Issue          `json:"issues,omitempty"`

	TotalDiscovered int `json:"total_discovered"`
	TotalExtracted  int `json:"total_extracted"`
	TotalRetired    int `json:"total_retired"`
	TotalIssues     int `json:"total_issues"`
}

// Validator checks the corpus. It owns nothing persistent beyond the
// report it overwrites.
type Validator struct {
	store      *checkpoint.Store
	recordsDir string
}

// New builds a validator over a checkpoint store and an artifact tree.
func New(store *checkpoint.Store, recordsDir string) *Validator {
	return &Validator{store: store, recordsDir: recordsDir}
}

// Run validates every category that has a discovery checkpoint.
func (v *Validator) Run() (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}

	cats, err := v.store.Categories()
	if err != nil {
		return nil, err
	}

	for _, cat := range cats {
		catReport, issues, err := v.validateCategory(cat)
		if err != nil {
			return nil, err
		}
		if catReport == nil {
			continue
		}
		report.Categories = append(report.Categories, *catReport)
		report.Issues = append(report.Issues, issues...)
		report.TotalDiscovered += catReport.Discovered
		report.TotalExtracted += catReport.Extracted
		report.TotalRetired += catReport.Retired
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		a, b := report.Issues[i], report.Issues[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	report.TotalIssues = len(report.Issues)
	return report, nil
}

func (v *Validator) validateCategory(cat types.CategoryCode) (*CategoryReport, []Issue, error) {
	rec, err := v.store.Load(cat)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		// A checkpoint that went unreadable between listing and loading;
		// the load already warned.
		return nil, nil, nil
	}

	retired := rec.RetiredSet()
	onDisk, err := record.ListCategory(v.recordsDir, cat)
	if err != nil {
		return nil, nil, err
	}
	onDiskSet := make(map[string]bool, len(onDisk))
	for _, id := range onDisk {
		onDiskSet[id.String()] = true
	}

	var issues []Issue

	// Coverage: every confirmed, non-retired identifier should have an
	// artifact.
	expected := 0
	extracted := 0
	for _, raw := range rec.Confirmed {
		if retired[raw] {
			continue
		}
		expected++
		if onDiskSet[raw] {
			extracted++
		} else {
			issues = append(issues, Issue{
				Kind:     MissingOutput,
				Category: string(cat),
				ID:       raw,
			})
		}
	}

	// Structural checks over every artifact, including ones discovery
	// does not know about.
	for _, id := range onDisk {
		path := record.Path(v.recordsDir, id)
		artifact, err := record.Read(path)
		if err != nil {
			issues = append(issues, Issue{
				Kind:     ParseError,
				Category: string(cat),
				ID:       id.String(),
				Detail:   err.Error(),
			})
			continue
		}
		if err := artifact.ValidateSchema(); err != nil {
			issues = append(issues, Issue{
				Kind:     SchemaInvalid,
				Category: string(cat),
				ID:       id.String(),
				Detail:   err.Error(),
			})
		}
	}

	coverage := CoverageFull
	switch {
	case len(onDisk) > expected:
		coverage = CoverageOver
		issues = append(issues, Issue{
			Kind:       CountMismatch,
			Category:   string(cat),
			Detail:     "more artifacts than discovered identifiers; discovery state may be stale",
			Warning:    true,
			Extracted:  len(onDisk),
			Discovered: expected,
		})
	case extracted < expected:
		coverage = CoveragePartial
		issues = append(issues, Issue{
			Kind:       CountMismatch,
			Category:   string(cat),
			Extracted:  extracted,
			Discovered: expected,
		})
	}

	pct := 1.0
	if expected > 0 {
		pct = float64(extracted) / float64(expected)
	}

	return &CategoryReport{
		Category:    string(cat),
		Discovered:  len(rec.Confirmed),
		Extracted:   extracted,
		Retired:     len(rec.Retired),
		Coverage:    coverage,
		CoveragePct: pct,
		Issues:      len(issues),
	}, issues, nil
}

// WriteReport overwrites the report file atomically.
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("validate: encoding report: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("validate: writing report: %w", err)
	}
	return nil
}
