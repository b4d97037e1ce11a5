package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examvault/harvester/internal/types"
)

var testID = types.CandidateID{Category: "cv", Kind: types.KindMCQ, Vintage: 24, Sequence: 1}

const activePayload = `{
	"id": "cv-mcq-24-001",
	"status": "active",
	"stem": "Which drug class reduces mortality in heart failure?",
	"options": [
		{"label": "A", "body": "Loop diuretics", "correct": false},
		{"label": "B", "body": {"type": "p", "text": "ACE inhibitors"}, "correct": true}
	],
	"explanation": {"type": "p", "children": [{"text": "ACE inhibition improves survival."}]},
	"topic": "Heart failure",
	"difficulty": "medium",
	"revision": 3,
	"assets": [
		{"kind": "images", "ref": "img-8812"},
		{"kind": "audio", "ref": "aud-101"}
	]
}`

func TestFromPayloadNormalizes(t *testing.T) {
	rec, err := FromPayload(testID, []byte(activePayload))
	require.NoError(t, err)

	assert.Equal(t, "cv-mcq-24-001", rec.ID)
	assert.Equal(t, "cv", rec.Category)
	assert.Equal(t, "mcq", rec.Kind)
	assert.Equal(t, 24, rec.Vintage)
	assert.Equal(t, 1, rec.Sequence)

	assert.Equal(t, "Which drug class reduces mortality in heart failure?", rec.Stem)
	require.Len(t, rec.Options, 2)
	assert.Equal(t, "Loop diuretics", rec.Options[0].Text)
	assert.Equal(t, "ACE inhibitors", rec.Options[1].Text, "rich-node option body normalizes like a plain one")
	assert.True(t, rec.Options[1].Correct)
	assert.Equal(t, "ACE inhibition improves survival.", rec.Explanation)

	assert.Equal(t, "Heart failure", rec.Metadata.Topic)
	assert.Equal(t, 3, rec.Metadata.Revision)

	// Asset slots are reserved but never filled here.
	require.Len(t, rec.Assets["images"], 1)
	assert.Equal(t, "img-8812", rec.Assets["images"][0].Ref)
	assert.Empty(t, rec.Assets["images"][0].Path)
	require.Len(t, rec.Assets["audio"], 1)

	assert.False(t, rec.ExtractedAt.IsZero())
	assert.NoError(t, rec.ValidateSchema())
}

func TestFromPayloadRetired(t *testing.T) {
	for _, status := range []string{"retired", "Withdrawn", " removed "} {
		_, err := FromPayload(testID, []byte(`{"id":"cv-mcq-24-001","status":"`+status+`","stem":"x"}`))
		assert.ErrorIs(t, err, ErrRetired, "status %q", status)
	}
}

func TestFromPayloadTolerantDefaults(t *testing.T) {
	// Minimal payload: nullable fields default instead of failing.
	rec, err := FromPayload(testID, []byte(`{"id":"cv-mcq-24-001","stem":"Bare stem.","options":null,"explanation":null}`))
	require.NoError(t, err)
	assert.Equal(t, "Bare stem.", rec.Stem)
	assert.Empty(t, rec.Options)
	assert.Empty(t, rec.Explanation)
	assert.NotNil(t, rec.Assets["images"])
	assert.NotNil(t, rec.Assets["audio"])
}

func TestFromPayloadBadJSON(t *testing.T) {
	_, err := FromPayload(testID, []byte("<html>login page</html>"))
	assert.Error(t, err)
}

func TestValidateSchemaCatchesDrift(t *testing.T) {
	rec, err := FromPayload(testID, []byte(activePayload))
	require.NoError(t, err)

	broken := *rec
	broken.Category = "resp"
	assert.Error(t, broken.ValidateSchema(), "identity fields must agree with the id")

	broken = *rec
	broken.Stem = ""
	assert.Error(t, broken.ValidateSchema())

	broken = *rec
	broken.Assets = nil
	assert.Error(t, broken.ValidateSchema())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec, err := FromPayload(testID, []byte(activePayload))
	require.NoError(t, err)

	assert.False(t, Exists(dir, testID))
	require.NoError(t, Write(dir, rec))
	assert.True(t, Exists(dir, testID))

	got, err := Read(Path(dir, testID))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Stem, got.Stem)
	assert.Equal(t, rec.Options, got.Options)
	assert.Equal(t, rec.Assets, got.Assets)
	assert.NoError(t, got.ValidateSchema())
}

func TestWriteLeavesNoTempDebrisVisible(t *testing.T) {
	dir := t.TempDir()
	rec, err := FromPayload(testID, []byte(activePayload))
	require.NoError(t, err)
	require.NoError(t, Write(dir, rec))

	ids, err := ListCategory(dir, "cv")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, testID, ids[0])
}

func TestListCategorySkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	catDir := filepath.Join(dir, "cv")
	require.NoError(t, os.MkdirAll(catDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "badname.json"), []byte("{}"), 0o644))

	ids, err := ListCategory(dir, "cv")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Missing category directory is not an error.
	ids, err = ListCategory(dir, "resp")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
