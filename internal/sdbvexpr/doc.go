// Package sdbvexpr compiles and evaluates the string templates found in
// database documents, e.g.
//
//	"{replace(fullName, '_', ' ')}"
//	"Row {y + 1} of {rowsNum}"
//
// Text outside braces is literal; `{{` and `}}` produce literal braces. Each
// `{...}` holds one expression in HCL native syntax (arithmetic, comparison,
// logic, the `cond ? a : b` conditional, indexing) with two relaxations for
// data files: single quoted string literals are accepted, and the only
// callable functions are `replace` and `get`. Attribute access, for
// expressions and splats are rejected at parse time, so nothing beyond the
// bound values is reachable from an untrusted document.
//
// A template that is exactly one expression evaluates to the expression's
// own value (number, bool, list...). Any other template evaluates to a
// string.
package sdbvexpr
