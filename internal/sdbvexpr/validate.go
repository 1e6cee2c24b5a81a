package sdbvexpr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// validate walks the syntax tree and rejects every construct outside of the
// restricted grammar.
func validate(expr hclsyntax.Expression, functions map[string]struct{}) error {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return nil
	case *hclsyntax.ScopeTraversalExpr:
		return validateTraversal(e.Traversal)
	case *hclsyntax.RelativeTraversalExpr:
		if err := validateTraversal(e.Traversal); err != nil {
			return err
		}
		return validate(e.Source, functions)
	case *hclsyntax.FunctionCallExpr:
		if _, ok := functions[e.Name]; !ok {
			return fmt.Errorf("call to unknown function %q", e.Name)
		}
		for _, arg := range e.Args {
			if err := validate(arg, functions); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.BinaryOpExpr:
		if err := validate(e.LHS, functions); err != nil {
			return err
		}
		return validate(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		for _, sub := range []hclsyntax.Expression{e.Condition, e.TrueResult, e.FalseResult} {
			if err := validate(sub, functions); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.UnaryOpExpr:
		return validate(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			if err := validate(part, functions); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.TemplateWrapExpr:
		return validate(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			if err := validate(item, functions); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			if err := validate(item.KeyExpr, functions); err != nil {
				return err
			}
			if err := validate(item.ValueExpr, functions); err != nil {
				return err
			}
		}
		return nil
	case *hclsyntax.ObjectConsKeyExpr:
		return validate(e.Wrapped, functions)
	case *hclsyntax.IndexExpr:
		if err := validate(e.Collection, functions); err != nil {
			return err
		}
		return validate(e.Key, functions)
	case *hclsyntax.ParenthesesExpr:
		return validate(e.Expression, functions)
	case *hclsyntax.ForExpr:
		return fmt.Errorf("for expressions are not allowed")
	case *hclsyntax.SplatExpr:
		return fmt.Errorf("splat expressions are not allowed")
	default:
		return fmt.Errorf("unsupported expression %T", expr)
	}
}

// validateTraversal allows a root name followed by index steps only.
func validateTraversal(t hcl.Traversal) error {
	for _, step := range t {
		if attr, ok := step.(hcl.TraverseAttr); ok {
			return fmt.Errorf("member access (.%s) is not allowed", attr.Name)
		}
	}
	return nil
}
