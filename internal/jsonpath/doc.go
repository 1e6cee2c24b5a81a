/*
Package jsonpath provides a structured, type-safe representation for
locations inside a (possibly multi-document) JSON tree.

The canonical notation is a sequence of segments, e.g. `.grids."".cells.data[4]`:

  - `.name` or `."quoted name"` – an object key,
  - `[n]` – an array index,
  - `(file.json)` – a file marker, used only in diagnostics to show which
    document a value came from.

Paths are used both for addressing values in a jsonstore.Store and for
rendering error messages.
*/
package jsonpath
