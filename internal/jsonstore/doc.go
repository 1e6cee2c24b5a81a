// Package jsonstore provides lazy, path-addressable access to a JSON
// document that may be composed of several files.
//
// # Loading
//
// A Store wraps one document location. Nothing is fetched until the first
// Get; concurrent callers of that first Get share a single fetch. A failed
// load is not remembered, so a later Get tries again.
//
// # Imports
//
// While a document is parsed, every object of the form
//
//	{"@import": "other.json"}
//
// is replaced by a child Store rooted at the referenced location (resolved
// relative to the importing document). A child is only fetched when a Get
// traverses through it, and its value then replaces the placeholder in place,
// so later reads never resolve it again. A recursive Get resolves every
// placeholder reachable inside the returned subtree before returning.
//
// # Values
//
// Values returned by Get are the decoded JSON tree itself: map[string]any,
// []any, string, float64, bool or nil. They are shared with the store and
// must be treated as read-only.
//
// # Disposal
//
// Dispose replaces the value at a path with a disposed marker so it can be
// garbage collected. Reading a disposed value, or anything below it, fails
// with ErrDisposed. Disposal is a one-way transition.
package jsonstore
