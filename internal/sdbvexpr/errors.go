package sdbvexpr

import (
	"errors"
	"fmt"
)

// ErrExpression is matched by every *ExpressionError via errors.Is.
var ErrExpression = errors.New("expression error")

// ExpressionError reports a template expression that failed to compile or
// evaluate.
type ExpressionError struct {
	Template string
	Expr     string
	Err      error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("invalid expression %q in template %q: %v", e.Expr, e.Template, e.Err)
	}
	return fmt.Sprintf("invalid expression %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying cause (usually hcl.Diagnostics).
func (e *ExpressionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExpression) true for any ExpressionError.
func (e *ExpressionError) Is(target error) bool { return target == ErrExpression }
