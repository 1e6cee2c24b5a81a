// Package config resolves the application settings from, in order of
// precedence, command-line flags, SDBV_* environment variables, an optional
// sdbv.yaml file and built-in defaults.
//
// Keys are dotted (view.width); the matching environment variable replaces
// dots and dashes with underscores (SDBV_VIEW_WIDTH).
package config
