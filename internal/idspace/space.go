// Package idspace enumerates the candidate identifier space. The remote
// bank exposes records by combinatorially generated IDs with no usable
// "list everything" endpoint, so discovery has to probe candidates drawn
// from this space. Everything here is pure: no I/O, no clock, no
// randomness beyond an explicit seed.
package idspace

import (
	"fmt"
	"math/rand"

	"github.com/examvault/harvester/internal/types"
)

// Space describes one configuration of the candidate space. The vintage
// range and sequence ceiling come from configuration, never constants.
type Space struct {
	Kinds      []types.RecordKind
	VintageMin types.Vintage
	VintageMax types.Vintage
	// SeqCeiling is the highest sequence number probed per
	// (category, kind, vintage) combination.
	SeqCeiling int
}

// Validate checks the space parameters without touching any category.
func (s Space) Validate() error {
	if len(s.Kinds) == 0 {
		return fmt.Errorf("idspace: no record kinds configured")
	}
	for _, k := range s.Kinds {
		if !types.ValidKind(k) {
			return fmt.Errorf("idspace: unknown record kind %q", k)
		}
	}
	if s.VintageMin < 0 || s.VintageMax < s.VintageMin {
		return fmt.Errorf("idspace: bad vintage range [%d, %d]", s.VintageMin, s.VintageMax)
	}
	if s.SeqCeiling < 1 {
		return fmt.Errorf("idspace: sequence ceiling must be >= 1, got %d", s.SeqCeiling)
	}
	return nil
}

// Size returns the number of candidates per category.
func (s Space) Size() int {
	vintages := int(s.VintageMax-s.VintageMin) + 1
	return len(s.Kinds) * vintages * s.SeqCeiling
}

// Enumerate returns every candidate for one category in deterministic
// order: kind-major, then vintage, then sequence. The order is part of the
// contract; restartable consumers rely on it being stable.
func (s Space) Enumerate(category types.CategoryCode) []types.CandidateID {
	ids := make([]types.CandidateID, 0, s.Size())
	for _, kind := range s.Kinds {
		for v := s.VintageMin; v <= s.VintageMax; v++ {
			for seq := 1; seq <= s.SeqCeiling; seq++ {
				ids = append(ids, types.CandidateID{
					Category: category,
					Kind:     kind,
					Vintage:  v,
					Sequence: seq,
				})
			}
		}
	}
	return ids
}

// Shuffled returns the full enumeration in a seeded pseudo-random order.
// Probing in sequence-order trips the remote's correlated-pattern
// throttling; a shuffled order spreads probes across the space. The same
// seed always yields the same permutation.
func (s Space) Shuffled(category types.CategoryCode, seed int64) []types.CandidateID {
	ids := s.Enumerate(category)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}
