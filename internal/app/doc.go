// Package app is the composition root. It owns the logger, the fetcher and
// the Database for one database location and implements the use cases the
// command line exposes (info, grids, cells, view), decoupled from any
// specific entrypoint.
package app
