// Package record defines the normalized extracted-record schema, the
// tolerant decoder for the bank's source payloads, and the atomic artifact
// IO used to persist one JSON document per identifier.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/examvault/harvester/internal/fsutil"
	"github.com/examvault/harvester/internal/types"
)

// ErrRetired marks a payload whose own status declares the record
// withdrawn. This is a normal outcome, not a failure: the caller records
// the identifier as retired and moves on.
var ErrRetired = errors.New("record: payload declares itself retired")

// AssetKinds are the placeholder groups every record reserves for the
// downstream asset pipeline. The harvester never downloads binary assets;
// it only records their references with empty local paths.
var AssetKinds = []string{"audio", "images"}

// Option is one answer option of a question record.
type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// AssetSlot reserves space for one binary asset. Path stays empty until
// the downstream pipeline fills it.
type AssetSlot struct {
	Ref  string `json:"ref"`
	Path string `json:"path"`
}

// Metadata is the free-form descriptive block of a record.
type Metadata struct {
	Topic      string `json:"topic,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Revision   int    `json:"revision,omitempty"`
}

// ExtractedRecord is the normalized output document for one identifier.
// The shape is schema-stable across repeated extraction and validation
// cycles; validators and downstream consumers depend on it.
type ExtractedRecord struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Vintage  int    `json:"vintage"`
	Sequence int    `json:"sequence"`

	Stem        string   `json:"stem"`
	Options     []Option `json:"options,omitempty"`
	Explanation string   `json:"explanation,omitempty"`

	Metadata Metadata `json:"metadata"`

	// Assets maps asset kind to placeholder slots, kept non-nil (with
	// every known kind present) so the downstream pipeline always finds
	// its groups.
	Assets map[string][]AssetSlot `json:"assets"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// sourcePayload mirrors the bank's fetch response, shaped for tolerant
// decoding: text fields accept either plain strings or rich node trees,
// and everything optional defaults instead of failing the record.
type sourcePayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	Stem        Text `json:"stem"`
	Explanation Text `json:"explanation"`

	Options []struct {
		Label   string `json:"label"`
		Body    Text   `json:"body"`
		Correct bool   `json:"correct"`
	} `json:"options"`

	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Revision   int    `json:"revision"`

	Assets []struct {
		Kind string `json:"kind"`
		Ref  string `json:"ref"`
	} `json:"assets"`
}

// retiredStatuses are the payload status values the bank uses for
// withdrawn records.
var retiredStatuses = map[string]bool{
	"retired":   true,
	"withdrawn": true,
	"removed":   true,
}

// FromPayload decodes a fetched payload into the normalized record shape.
// Returns ErrRetired when the payload self-declares retirement.
func FromPayload(id types.CandidateID, raw []byte) (*ExtractedRecord, error) {
	var p sourcePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("record: decoding payload for %s: %w", id, err)
	}

	if retiredStatuses[strings.ToLower(strings.TrimSpace(p.Status))] {
		return nil, ErrRetired
	}

	rec := &ExtractedRecord{
		ID:       id.String(),
		Category: string(id.Category),
		Kind:     string(id.Kind),
		Vintage:  int(id.Vintage),
		Sequence: id.Sequence,

		Stem:        p.Stem.Normalize(),
		Explanation: p.Explanation.Normalize(),

		Metadata: Metadata{
			Topic:      p.Topic,
			Difficulty: p.Difficulty,
			Revision:   p.Revision,
		},

		Assets:      emptyAssetGroups(),
		ExtractedAt: time.Now().UTC(),
	}

	for _, opt := range p.Options {
		rec.Options = append(rec.Options, Option{
			Label:   opt.Label,
			Text:    opt.Body.Normalize(),
			Correct: opt.Correct,
		})
	}

	for _, a := range p.Assets {
		kind := strings.ToLower(strings.TrimSpace(a.Kind))
		if kind == "" || a.Ref == "" {
			continue
		}
		rec.Assets[kind] = append(rec.Assets[kind], AssetSlot{Ref: a.Ref})
	}

	return rec, nil
}

func emptyAssetGroups() map[string][]AssetSlot {
	groups := make(map[string][]AssetSlot, len(AssetKinds))
	for _, kind := range AssetKinds {
		groups[kind] = []AssetSlot{}
	}
	return groups
}

// ValidateSchema checks structural completeness: identity consistency,
// required fields, and the invariants downstream consumers rely on.
func (r *ExtractedRecord) ValidateSchema() error {
	id, err := types.ParseCandidateID(r.ID)
	if err != nil {
		return fmt.Errorf("record: bad id: %w", err)
	}
	if string(id.Category) != r.Category || string(id.Kind) != r.Kind ||
		int(id.Vintage) != r.Vintage || id.Sequence != r.Sequence {
		return fmt.Errorf("record %s: identity fields disagree with id", r.ID)
	}
	if r.Stem == "" {
		return fmt.Errorf("record %s: empty stem", r.ID)
	}
	if r.Assets == nil {
		return fmt.Errorf("record %s: missing asset groups", r.ID)
	}
	for _, kind := range AssetKinds {
		if _, ok := r.Assets[kind]; !ok {
			return fmt.Errorf("record %s: missing asset group %q", r.ID, kind)
		}
	}
	if r.ExtractedAt.IsZero() {
		return fmt.Errorf("record %s: missing extraction timestamp", r.ID)
	}
	return nil
}

// Path returns the artifact location for an identifier:
// <dir>/<category>/<id>.json.
func Path(dir string, id types.CandidateID) string {
	return filepath.Join(dir, string(id.Category), id.String()+".json")
}

// Exists reports whether the artifact for an identifier is present.
// Presence is the crash-safe ground truth for "already extracted".
func Exists(dir string, id types.CandidateID) bool {
	info, err := os.Stat(Path(dir, id))
	return err == nil && !info.IsDir()
}

// Write persists a record atomically at its canonical path.
func Write(dir string, rec *ExtractedRecord) error {
	id, err := types.ParseCandidateID(rec.ID)
	if err != nil {
		return fmt.Errorf("record: writing: %w", err)
	}

	path := Path(dir, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("record: creating %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("record: encoding %s: %w", rec.ID, err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("record: writing %s: %w", rec.ID, err)
	}
	return nil
}

// Read loads one artifact. A JSON error is returned as-is so callers can
// classify it as a parse failure rather than a schema failure.
func Read(path string) (*ExtractedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec ExtractedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCategory returns the identifiers with artifacts on disk for one
// category, sorted. Files that do not look like record artifacts are
// skipped.
func ListCategory(dir string, category types.CategoryCode) ([]types.CandidateID, error) {
	entries, err := os.ReadDir(filepath.Join(dir, string(category)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record: listing %s: %w", category, err)
	}

	var ids []types.CandidateID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := types.ParseCandidateID(strings.TrimSuffix(name, ".json"))
		if err != nil || id.Category != category {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
