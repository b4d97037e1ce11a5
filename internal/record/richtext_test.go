package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeText(t *testing.T, raw string) Text {
	t.Helper()
	var txt Text
	require.NoError(t, json.Unmarshal([]byte(raw), &txt))
	return txt
}

func TestTextPlainString(t *testing.T) {
	txt := decodeText(t, `"A beta blocker reduces heart rate."`)
	assert.Equal(t, "A beta blocker reduces heart rate.", txt.Normalize())
}

func TestTextNullAndAbsentDefault(t *testing.T) {
	txt := decodeText(t, `null`)
	assert.True(t, txt.IsEmpty())

	var holder struct {
		Stem Text `json:"stem"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &holder))
	assert.True(t, holder.Stem.IsEmpty())
}

func TestTextRichTreeMatchesPlain(t *testing.T) {
	plain := decodeText(t, `"A beta blocker reduces heart rate."`)
	rich := decodeText(t, `{
		"type": "p",
		"children": [
			{"type": "span", "text": "A beta blocker "},
			{"type": "em", "children": [{"type": "span", "text": "reduces"}]},
			{"type": "span", "text": " heart rate."}
		]
	}`)

	assert.Equal(t, plain.Normalize(), rich.Normalize(),
		"plain and rich representations of the same field must normalize identically")
}

func TestTextNodeArray(t *testing.T) {
	txt := decodeText(t, `[
		{"type": "p", "text": "First paragraph."},
		{"type": "p", "text": "Second paragraph."}
	]`)
	assert.Equal(t, "First paragraph. Second paragraph.", txt.Normalize())
}

func TestTextStripsInlineMarkup(t *testing.T) {
	txt := decodeText(t, `"Give <b>40&nbsp;mg</b> of <i>furosemide</i> IV."`)
	assert.Equal(t, "Give 40 mg of furosemide IV.", txt.Normalize())
}

func TestTextCollapsesWhitespace(t *testing.T) {
	txt := decodeText(t, `"  two\n\tspaced   words  "`)
	assert.Equal(t, "two spaced words", txt.Normalize())
}

func TestTextUnknownNodeKeysIgnored(t *testing.T) {
	txt := decodeText(t, `{"type":"p","text":"kept","style":{"bold":true},"version":7}`)
	assert.Equal(t, "kept", txt.Normalize())
}
