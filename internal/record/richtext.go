package record

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text is a tagged variant over the two shapes the source payload uses for
// text-bearing fields: a plain string, or a small rich-text node tree
// ({"type": ..., "text": ..., "children": [...]}, possibly a bare array of
// such nodes). Both shapes normalize to the same plain text, so downstream
// consumers never see the difference. Absent and null fields decode to the
// empty Text rather than failing the record.
type Text struct {
	value string
}

// PlainText builds a Text from an already-plain string (used by tests and
// by callers synthesizing records).
func PlainText(s string) Text {
	return Text{value: normalizeFragment(s)}
}

// Normalize returns the plain-text rendering of the field.
func (t Text) Normalize() string { return t.value }

// IsEmpty reports whether the field carried no text at all.
func (t Text) IsEmpty() bool { return t.value == "" }

// richNode mirrors one node of the source's rich-text tree. Unknown keys
// are ignored.
type richNode struct {
	Type     string     `json:"type"`
	Text     string     `json:"text"`
	Children []richNode `json:"children"`
}

// UnmarshalJSON accepts null, a plain string, a single node object, or an
// array of nodes.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		t.value = ""
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.value = normalizeFragment(s)
		return nil
	case '[':
		var nodes []richNode
		if err := json.Unmarshal(data, &nodes); err != nil {
			return err
		}
		t.value = flattenNodes(nodes)
		return nil
	default:
		var node richNode
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		t.value = flattenNodes([]richNode{node})
		return nil
	}
}

// flattenNodes walks the tree depth-first, concatenating text fragments.
// Leaf text within one block joins directly; sibling blocks are separated
// by a single space so "two paragraphs" do not run together.
func flattenNodes(nodes []richNode) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		var b strings.Builder
		flattenInto(&b, n)
		if s := strings.TrimSpace(b.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return normalizeFragment(strings.Join(parts, " "))
}

func flattenInto(b *strings.Builder, n richNode) {
	if n.Text != "" {
		b.WriteString(n.Text)
	}
	for _, child := range n.Children {
		flattenInto(b, child)
	}
}

// normalizeFragment strips any inline HTML markup the source sometimes
// embeds in plain-string fields and collapses runs of whitespace.
func normalizeFragment(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
