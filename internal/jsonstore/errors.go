package jsonstore

import (
	"errors"

	"github.com/vk/sdbv/internal/jsonpath"
)

var (
	// ErrMissingPath is returned when a non-terminal path segment walks
	// into something that is not an object or array.
	ErrMissingPath = errors.New("object does not exist")
	// ErrNotFound is returned when the last path segment names a key or
	// index that is absent.
	ErrNotFound = errors.New("value not found")
	// ErrDisposed is returned when the value, or one of its ancestors, has
	// been disposed.
	ErrDisposed = errors.New("value disposed")
	// ErrSyntax is returned when a document is not valid JSON.
	ErrSyntax = errors.New("invalid JSON")
)

// PathError describes a structural problem at a location inside a document.
type PathError struct {
	File   string
	Path   jsonpath.Path
	Err    error
	Detail string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	loc := jsonpath.Path{jsonpath.File(e.File)}.Concat(e.Path).String()
	msg := loc + ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel describing the failure kind.
func (e *PathError) Unwrap() error { return e.Err }
