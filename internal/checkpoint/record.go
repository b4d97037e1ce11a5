package checkpoint

import (
	"sort"
	"time"
)

// Stats carries the running probe statistics for one category.
type Stats struct {
	CandidatesTested int       `json:"candidates_tested"`
	HitCount         int       `json:"hit_count"`
	KindsFound       []string  `json:"kinds_found"`
	LastRun          time.Time `json:"last_run"`
	LastRunID        string    `json:"last_run_id,omitempty"`
}

// HitRate returns hits/tested, or 0 before any probing.
func (s Stats) HitRate() float64 {
	if s.CandidatesTested == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(s.CandidatesTested)
}

// ObserveKind adds a kind to KindsFound if not already present, keeping
// the list sorted so saved checkpoints are byte-stable.
func (s *Stats) ObserveKind(kind string) {
	for _, k := range s.KindsFound {
		if k == kind {
			return
		}
	}
	s.KindsFound = append(s.KindsFound, kind)
	sort.Strings(s.KindsFound)
}

// FailureRecord notes a candidate whose fetch exhausted its retry budget.
// Ephemeral: cleared on the next successful fetch; drives retry-missing.
type FailureRecord struct {
	ID         string    `json:"id"`
	Class      string    `json:"class"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DiscoveryRecord is the durable per-category state: the confirmed-existing
// candidate set, the retired set, outstanding failures, and probe stats.
// Identifiers are stored in canonical string form so the file round-trips
// exactly.
type DiscoveryRecord struct {
	Category  string   `json:"category"`
	Confirmed []string `json:"confirmed"`
	// Tested holds every candidate that has received a definitive probe
	// answer (exists or absent). Non-refresh runs only probe the space
	// minus this set, so an unchanged run costs zero probes; a refresh
	// discards it along with the confirmed set.
	Tested    []string        `json:"tested,omitempty"`
	Retired   []string        `json:"retired,omitempty"`
	Failures  []FailureRecord `json:"failures,omitempty"`
	Stats     Stats           `json:"stats"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewDiscoveryRecord returns an empty record for a category.
func NewDiscoveryRecord(category string) *DiscoveryRecord {
	return &DiscoveryRecord{Category: category}
}

// ConfirmedSet returns the confirmed identifiers as a set.
func (r *DiscoveryRecord) ConfirmedSet() map[string]bool {
	set := make(map[string]bool, len(r.Confirmed))
	for _, id := range r.Confirmed {
		set[id] = true
	}
	return set
}

// RetiredSet returns the retired identifiers as a set.
func (r *DiscoveryRecord) RetiredSet() map[string]bool {
	set := make(map[string]bool, len(r.Retired))
	for _, id := range r.Retired {
		set[id] = true
	}
	return set
}

// AddConfirmed inserts an identifier into the confirmed set, keeping the
// slice sorted and duplicate-free. Returns true if it was new.
func (r *DiscoveryRecord) AddConfirmed(id string) bool {
	i := sort.SearchStrings(r.Confirmed, id)
	if i < len(r.Confirmed) && r.Confirmed[i] == id {
		return false
	}
	r.Confirmed = append(r.Confirmed, "")
	copy(r.Confirmed[i+1:], r.Confirmed[i:])
	r.Confirmed[i] = id
	return true
}

// TestedSet returns the definitively probed identifiers as a set.
func (r *DiscoveryRecord) TestedSet() map[string]bool {
	set := make(map[string]bool, len(r.Tested))
	for _, id := range r.Tested {
		set[id] = true
	}
	return set
}

// AddTested inserts an identifier into the tested set, keeping the slice
// sorted and duplicate-free. Returns true if it was new.
func (r *DiscoveryRecord) AddTested(id string) bool {
	i := sort.SearchStrings(r.Tested, id)
	if i < len(r.Tested) && r.Tested[i] == id {
		return false
	}
	r.Tested = append(r.Tested, "")
	copy(r.Tested[i+1:], r.Tested[i:])
	r.Tested[i] = id
	return true
}

// AddRetired inserts an identifier into the retired set. Once retired an
// identifier is never re-fetched and never counted as missing.
func (r *DiscoveryRecord) AddRetired(id string) bool {
	i := sort.SearchStrings(r.Retired, id)
	if i < len(r.Retired) && r.Retired[i] == id {
		return false
	}
	r.Retired = append(r.Retired, "")
	copy(r.Retired[i+1:], r.Retired[i:])
	r.Retired[i] = id
	return true
}

// SetFailure records or updates the failure entry for an identifier.
func (r *DiscoveryRecord) SetFailure(f FailureRecord) {
	for i := range r.Failures {
		if r.Failures[i].ID == f.ID {
			r.Failures[i] = f
			return
		}
	}
	r.Failures = append(r.Failures, f)
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].ID < r.Failures[j].ID })
}

// ClearFailure removes the failure entry for an identifier, if any.
// Returns true if an entry was removed.
func (r *DiscoveryRecord) ClearFailure(id string) bool {
	for i := range r.Failures {
		if r.Failures[i].ID == id {
			r.Failures = append(r.Failures[:i], r.Failures[i+1:]...)
			return true
		}
	}
	return false
}
