package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateIDString(t *testing.T) {
	id := CandidateID{Category: "cv", Kind: KindMCQ, Vintage: 24, Sequence: 1}
	assert.Equal(t, "cv-mcq-24-001", id.String())

	id.Sequence = 1234
	assert.Equal(t, "cv-mcq-24-1234", id.String(), "sequences past 999 are not truncated")
}

func TestParseCandidateIDRoundTrip(t *testing.T) {
	ids := []CandidateID{
		{Category: "cv", Kind: KindMCQ, Vintage: 24, Sequence: 1},
		{Category: "obgy", Kind: KindOSCE, Vintage: 19, Sequence: 450},
		{Category: "phar", Kind: KindTF, Vintage: 3, Sequence: 999},
	}
	for _, want := range ids {
		got, err := ParseCandidateID(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseCandidateIDRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too few parts", "cv-mcq-24"},
		{"too many parts", "cv-mcq-24-001-extra"},
		{"unknown category", "zz-mcq-24-001"},
		{"unknown kind", "cv-essay-24-001"},
		{"non-numeric vintage", "cv-mcq-xx-001"},
		{"zero sequence", "cv-mcq-24-000"},
		{"negative vintage", "cv-mcq--4-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCandidateID(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestCategoryRegistry(t *testing.T) {
	cats := AllCategories()
	assert.Len(t, cats, 16)
	assert.True(t, ValidCategory("cv"))
	assert.False(t, ValidCategory("bogus"))
	assert.Equal(t, "Cardiovascular", CategoryName("cv"))
	assert.Equal(t, "bogus", CategoryName("bogus"))

	// Sorted, no duplicates.
	for i := 1; i < len(cats); i++ {
		assert.Less(t, string(cats[i-1]), string(cats[i]))
	}
}
