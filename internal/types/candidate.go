package types

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordKind identifies the sub-type of a remote record.
type RecordKind string

const (
	KindMCQ  RecordKind = "mcq"  // multiple choice question
	KindSAQ  RecordKind = "saq"  // short answer question
	KindEMQ  RecordKind = "emq"  // extended matching question
	KindTF   RecordKind = "tf"   // true/false item
	KindOSCE RecordKind = "osce" // structured clinical station
	KindViva RecordKind = "viva" // oral examination prompt
)

// AllKinds lists every known record kind in canonical order.
var AllKinds = []RecordKind{KindMCQ, KindSAQ, KindEMQ, KindTF, KindOSCE, KindViva}

// ValidKind reports whether k is a registered record kind.
func ValidKind(k RecordKind) bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Vintage denotes the content generation a record belongs to. The valid
// range is configuration-driven, not fixed here.
type Vintage int

// CandidateID addresses one remote record. It is a pure value: two IDs
// are equal iff all four components are equal.
type CandidateID struct {
	Category CategoryCode
	Kind     RecordKind
	Vintage  Vintage
	Sequence int
}

// String returns the canonical wire form, e.g. "cv-mcq-24-001". This exact
// form is used as the remote's addressable path segment and as artifact
// filenames, so it must stay stable.
func (id CandidateID) String() string {
	return fmt.Sprintf("%s-%s-%d-%03d", id.Category, id.Kind, id.Vintage, id.Sequence)
}

// ParseCandidateID is the total inverse of String. It accepts only the
// canonical four-part form.
func ParseCandidateID(s string) (CandidateID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return CandidateID{}, fmt.Errorf("candidate id %q: want 4 dash-separated parts, got %d", s, len(parts))
	}

	cat := CategoryCode(parts[0])
	if !ValidCategory(cat) {
		return CandidateID{}, fmt.Errorf("candidate id %q: unknown category %q", s, parts[0])
	}

	kind := RecordKind(parts[1])
	if !ValidKind(kind) {
		return CandidateID{}, fmt.Errorf("candidate id %q: unknown kind %q", s, parts[1])
	}

	vintage, err := strconv.Atoi(parts[2])
	if err != nil || vintage < 0 {
		return CandidateID{}, fmt.Errorf("candidate id %q: bad vintage %q", s, parts[2])
	}

	seq, err := strconv.Atoi(parts[3])
	if err != nil || seq < 1 {
		return CandidateID{}, fmt.Errorf("candidate id %q: bad sequence %q", s, parts[3])
	}

	return CandidateID{Category: cat, Kind: kind, Vintage: Vintage(vintage), Sequence: seq}, nil
}
