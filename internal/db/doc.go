// Package db interprets a loaded JSON document as a database of named grids.
//
// A Database exposes read-once metadata (name, version, build date, build
// sources, description) and a set of grids keyed by id, "" being the default
// grid. Each Grid has column and row coordinate ranges, optional header
// labels and a columnar Cells table whose rows become Records.
//
// Every getter is memoized: concurrent callers share a single in-flight
// computation and later callers get the cached result. A failed computation
// is not cached, so a later call retries it. Optional values that are
// missing or malformed degrade to defaults and log a warning; required
// values (the grid index, coordinate ranges, the cells table and its
// fieldOrder) return an error.
package db
