package db

import (
	"encoding/json"
	"math"

	"github.com/vk/sdbv/internal/sdbvexpr"
)

// Record is one materialized cell.
type Record struct {
	// ID is the row index inside the cells table.
	ID     int
	Fields map[string]any
	// Description holds the expanded "description" field, if any.
	Description Description
}

// Get returns a field value.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// String returns a field formatted as text, "" when absent or null.
func (r *Record) String(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	return sdbvexpr.Format(v)
}

// Int returns an integral numeric field.
func (r *Record) Int(field string) (int, bool) {
	f, ok := r.Fields[field].(float64)
	if !ok {
		return 0, false
	}
	return asInt(math.Floor(f))
}

// Name returns the short display name.
func (r *Record) Name() string { return r.String("name") }

// FullName returns the long display name, falling back to Name.
func (r *Record) FullName() string {
	if s := r.String("fullName"); s != "" {
		return s
	}
	return r.Name()
}

// TargetGrid returns the id of the grid this cell links to.
func (r *Record) TargetGrid() (string, bool) {
	s, ok := r.Fields["targetGrid"].(string)
	return s, ok
}

// MarshalJSON renders the record as one flat object with its id.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.flat())
}

// MarshalYAML renders the record like MarshalJSON.
func (r *Record) MarshalYAML() (any, error) {
	return r.flat(), nil
}

func (r *Record) flat() map[string]any {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	if r.Description != nil {
		out["description"] = r.Description
	}
	return out
}
