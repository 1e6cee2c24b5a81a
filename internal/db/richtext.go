package db

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/vk/sdbv/internal/sdbvexpr"
)

// HeadingMarker starts a description string that is a heading.
const HeadingMarker = "#"

// BlockKind tells how a description block is presented.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
	Entry
)

var blockKindNames = map[BlockKind]string{
	Paragraph: "paragraph",
	Heading:   "heading",
	Entry:     "entry",
}

func (k BlockKind) String() string { return blockKindNames[k] }

// MarshalText implements encoding.TextMarshaler.
func (k BlockKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Block is one element of a rich text description.
type Block struct {
	Kind BlockKind `json:"kind" yaml:"kind"`
	// Text holds a paragraph or heading.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// Key and Values hold an entry. List is set when the source value was
	// an array, even a single element one.
	Key    string   `json:"key,omitempty" yaml:"key,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	List   bool     `json:"list,omitempty" yaml:"list,omitempty"`
}

// Description is structured rich text.
type Description []Block

// Value returns an entry's values joined for single line display.
func (b Block) Value() string { return strings.Join(b.Values, ", ") }

// parseDescription accepts a string, an object of key/value entries, or an
// array of strings and objects. Malformed parts are skipped with a warning.
func parseDescription(log *slog.Logger, at string, value any) Description {
	var out Description
	switch v := value.(type) {
	case string:
		out = appendParagraph(out, v)
	case map[string]any:
		out = appendEntries(log, at, out, v)
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				out = appendParagraph(out, it)
			case map[string]any:
				out = appendEntries(log, at, out, it)
			default:
				warnValue(log, at, "Invalid description item.", item)
			}
		}
	default:
		warnValue(log, at, "Invalid value.", value)
	}
	return out
}

func appendParagraph(out Description, s string) Description {
	if rest, ok := strings.CutPrefix(s, HeadingMarker); ok {
		return append(out, Block{Kind: Heading, Text: strings.TrimSpace(strings.TrimLeft(rest, HeadingMarker))})
	}
	return append(out, Block{Kind: Paragraph, Text: s})
}

func appendEntries(log *slog.Logger, at string, out Description, obj map[string]any) Description {
	for _, k := range sortedKeys(obj) {
		switch v := obj[k].(type) {
		case string, float64:
			out = append(out, Block{Kind: Entry, Key: k, Values: []string{sdbvexpr.Format(v)}})
		case []any:
			values := make([]string, 0, len(v))
			for _, item := range v {
				switch item.(type) {
				case string, float64:
					values = append(values, sdbvexpr.Format(item))
				default:
					warnValue(log, at, "Invalid entry value.", item)
				}
			}
			out = append(out, Block{Kind: Entry, Key: k, Values: values, List: true})
		default:
			warnValue(log, at, "Invalid entry value.", v)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
