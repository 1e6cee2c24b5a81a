package jsonpath

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Kind tells which of the Segment fields is meaningful.
type Kind int

const (
	KindKey Kind = iota
	KindIndex
	KindFile
)

// Segment is a single step of a Path.
type Segment struct {
	Kind  Kind
	Key   string // object key, or file name for KindFile
	Index int    // array index for KindIndex
}

// Key returns an object key segment.
func Key(k string) Segment { return Segment{Kind: KindKey, Key: k} }

// Index returns an array index segment.
func Index(i int) Segment { return Segment{Kind: KindIndex, Index: i} }

// File returns a diagnostic-only file marker segment.
func File(name string) Segment { return Segment{Kind: KindFile, Key: name} }

// String renders a single segment in canonical notation.
func (s Segment) String() string {
	switch s.Kind {
	case KindIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case KindFile:
		return "(" + s.Key + ")"
	default:
		if wordRegex.MatchString(s.Key) {
			return "." + s.Key
		}
		return "." + quote(s.Key)
	}
}

// Path is an ordered sequence of segments. The empty path is the root.
type Path []Segment

var wordRegex = regexp.MustCompile(`^\w+$`)

// String serializes the Path into its canonical representation.
func (p Path) String() string {
	var sb strings.Builder
	for _, s := range p {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Equal reports whether two paths identify the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Append returns a new path with segs added. The receiver is never modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Concat returns a new path made of p followed by other.
func (p Path) Concat(other Path) Path {
	return p.Append(other...)
}

// Keys builds a path from plain object keys.
func Keys(keys ...string) Path {
	p := make(Path, len(keys))
	for i, k := range keys {
		p[i] = Key(k)
	}
	return p
}

// quote renders s as a JSON string literal without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
