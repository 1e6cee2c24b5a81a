package db

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange(t *testing.T) {
	testCases := []struct {
		name  string
		r     Range
		len   int
		items []int
	}{
		{"ascending", Range{First: 2, Last: 5}, 4, []int{2, 3, 4, 5}},
		{"descending", Range{First: 3, Last: 0}, 4, []int{3, 2, 1, 0}},
		{"single", NewRange(0), 1, []int{0}},
		{"negative", Range{First: -1, Last: 1}, 3, []int{-1, 0, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.len, tc.r.Len())
			assert.Equal(t, tc.items, slices.Collect(tc.r.All()))
			for i, v := range tc.items {
				assert.Equal(t, v, tc.r.At(i))
				assert.Equal(t, i, tc.r.IndexOf(v))
				assert.Equal(t, v, tc.r.At(tc.r.IndexOf(v)))
				assert.True(t, tc.r.Contains(v))
			}
			assert.False(t, tc.r.Contains(100))
		})
	}
}

func TestDataError_Message(t *testing.T) {
	err := invalidData(`(db.json).grids."".colsRange`, "value", "x", "Not a range", "Number", "Array")
	assert.Equal(t, `(db.json).grids."".colsRange: invalid value: "x". Expected: Number, Array. Details: Not a range.`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidData)

	err = invalidType(".a", []any{}, "Object")
	assert.Equal(t, `.a: invalid type: Array. Expected: Object.`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidType)
}
