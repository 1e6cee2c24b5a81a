package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidData marks a required value that is missing or malformed.
	ErrInvalidData = errors.New("invalid data")
	// ErrInvalidType marks a value of an unexpected JSON type.
	ErrInvalidType = errors.New("invalid type")
	// ErrNotInitialized is returned by synchronous Cells accessors used
	// before InitData completed.
	ErrNotInitialized = errors.New("cells data not initialized")
)

// DataError describes a structural problem at a location in the document.
type DataError struct {
	// Path is the rendered location, e.g. (db.json).grids."".colsRange.
	Path     string
	What     string
	Value    any
	Expected []string
	Details  string
	// Err is ErrInvalidData or ErrInvalidType.
	Err error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	b.WriteString(": ")
	if e.Err == ErrInvalidType {
		fmt.Fprintf(&b, "invalid type: %s.", jsonTypeName(e.Value))
	} else {
		fmt.Fprintf(&b, "invalid %s: %s.", e.What, jsonText(e.Value))
	}
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, " Expected: %s.", strings.Join(e.Expected, ", "))
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " Details: %s.", e.Details)
	}
	return b.String()
}

// Unwrap returns the error kind.
func (e *DataError) Unwrap() error { return e.Err }

func invalidData(path, what string, value any, details string, expected ...string) error {
	return &DataError{Path: path, What: what, Value: value, Expected: expected, Details: details, Err: ErrInvalidData}
}

func invalidType(path string, value any, expected ...string) error {
	return &DataError{Path: path, Value: value, Expected: expected, Err: ErrInvalidType}
}

// jsonTypeName names the JSON type of a decoded value.
func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "Null"
	case string:
		return "String"
	case float64, int:
		return "Number"
	case bool:
		return "Boolean"
	case []any:
		return "Array"
	case map[string]any:
		return "Object"
	}
	return fmt.Sprintf("%T", v)
}

// jsonText renders a value for diagnostics, truncating long output.
func jsonText(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	const limit = 80
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
