package db_test

import (
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/vk/sdbv/internal/db"
)

func countOf(s, sub string) int { return strings.Count(s, sub) }

func collect[T any](seq iter.Seq[T]) []T { return slices.Collect(seq) }

func isDataError(err error) bool {
	var de *db.DataError
	return errors.As(err, &de)
}
