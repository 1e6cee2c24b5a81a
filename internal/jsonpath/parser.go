package jsonpath

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// segmentRegex matches one segment: a word key, a quoted key or an index.
// The leading dot is optional for the very first key.
var segmentRegex = regexp.MustCompile(`^(?:\.?(\w+)|\.?("(?:[^"\\]|\\.)*")|\[(\d+)\])`)

// Parse creates a Path by parsing its canonical string representation.
// The empty string is the root path.
func Parse(raw string) (Path, error) {
	var p Path
	rest := raw
	first := true
	for rest != "" {
		m := segmentRegex.FindStringSubmatchIndex(rest)
		if m == nil {
			return nil, fmt.Errorf("invalid path %q: unexpected input at %q", raw, rest)
		}
		// A key without a leading dot is only allowed at the start.
		if !first && rest[0] != '.' && rest[0] != '[' {
			return nil, fmt.Errorf("invalid path %q: missing separator before %q", raw, rest)
		}
		switch {
		case m[2] >= 0:
			p = append(p, Key(rest[m[2]:m[3]]))
		case m[4] >= 0:
			var key string
			if err := json.Unmarshal([]byte(rest[m[4]:m[5]]), &key); err != nil {
				return nil, fmt.Errorf("invalid path %q: bad quoted key: %w", raw, err)
			}
			p = append(p, Key(key))
		case m[6] >= 0:
			idx, err := strconv.Atoi(rest[m[6]:m[7]])
			if err != nil {
				return nil, fmt.Errorf("invalid path %q: bad index: %w", raw, err)
			}
			p = append(p, Index(idx))
		}
		rest = rest[m[1]:]
		first = false
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}
