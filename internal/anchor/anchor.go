// Package anchor encodes a cell display name as a URL fragment so a link
// can point at one cell.
package anchor

import (
	"fmt"
	"net/url"
	"strings"
)

// Encode returns the fragment for name, without the leading '#'.
func Encode(name string) string {
	return url.PathEscape(name)
}

// Decode is the inverse of Encode. A leading '#' is ignored.
func Decode(fragment string) (string, error) {
	s, err := url.PathUnescape(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return "", fmt.Errorf("invalid cell anchor %q: %w", fragment, err)
	}
	return s, nil
}

// FromURL extracts the cell name from a full link.
func FromURL(raw string) (string, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid link: %w", err)
	}
	if u.Fragment == "" {
		return "", false, nil
	}
	return u.Fragment, true, nil
}

// WithName returns base with its fragment replaced by the encoded name.
func WithName(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	u.Fragment = name
	u.RawFragment = Encode(name)
	return u.String(), nil
}
