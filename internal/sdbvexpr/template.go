package sdbvexpr

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Placeholder is substituted for an expression that failed inside a string
// template.
const Placeholder = "?"

// ParseErrorHandler receives expressions that failed to compile. When a
// handler is installed the failure is replaced by a placeholder instead of
// being returned.
type ParseErrorHandler func(template, expr string, err error)

// EvalErrorHandler receives expressions that failed to evaluate.
type EvalErrorHandler func(expr string, err error)

var splitPattern = regexp.MustCompile(`(\{\{|\}\})|\{([^}]*)\}`)

// Parser compiles templates against a shared set of named constants.
type Parser struct {
	mu        sync.RWMutex
	consts    map[string]any
	functions map[string]function.Function
	allowed   map[string]struct{}
}

// NewParser returns a parser with the given constants (may be nil).
func NewParser(consts map[string]any) *Parser {
	p := &Parser{
		consts:    make(map[string]any, len(consts)),
		functions: Functions(),
		allowed:   make(map[string]struct{}),
	}
	for name := range p.functions {
		p.allowed[name] = struct{}{}
	}
	for k, v := range consts {
		p.consts[k] = v
	}
	return p
}

// SetConst defines or replaces a named constant visible to every template
// compiled by this parser.
func (p *Parser) SetConst(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consts[name] = value
}

// Const returns the named constant.
func (p *Parser) Const(name string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.consts[name]
	return v, ok
}

type part struct {
	text   string
	src    string
	expr   hclsyntax.Expression
	isExpr bool
}

// Template is a compiled template. It is immutable and safe for concurrent
// evaluation.
type Template struct {
	source string
	parser *Parser
	parts  []part
}

// Parse compiles a template. Expressions that fail to compile are reported
// to onError and become placeholders; with a nil handler the first failure
// is returned as an *ExpressionError.
func (p *Parser) Parse(template string, onError ParseErrorHandler) (*Template, error) {
	t := &Template{source: template, parser: p}

	last := 0
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			t.parts = append(t.parts, part{text: text.String()})
			text.Reset()
		}
	}
	for _, m := range splitPattern.FindAllStringSubmatchIndex(template, -1) {
		text.WriteString(template[last:m[0]])
		last = m[1]
		if m[2] >= 0 {
			text.WriteByte(template[m[2]])
			continue
		}
		src := template[m[4]:m[5]]
		if src == "" {
			continue
		}
		flush()
		expr, err := p.compile(src)
		if err != nil {
			err = &ExpressionError{Template: template, Expr: src, Err: err}
			if onError == nil {
				return nil, err
			}
			onError(template, src, err)
		}
		t.parts = append(t.parts, part{src: src, expr: expr, isExpr: true})
	}
	text.WriteString(template[last:])
	flush()
	return t, nil
}

func (p *Parser) compile(src string) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(normalizeQuotes(src)), "template", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}
	if err := validate(expr, p.allowed); err != nil {
		return nil, err
	}
	return expr, nil
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// HasExpressions reports whether the template contains any expression.
func (t *Template) HasExpressions() bool {
	for _, pt := range t.parts {
		if pt.isExpr {
			return true
		}
	}
	return false
}

// Evaluate renders the template with the given bindings. Bindings shadow
// parser constants of the same name. A template made of a single expression
// returns that expression's value, nil when evaluation fails and Placeholder
// when it did not parse; every other template returns a string with
// Placeholder for failed expressions. With a nil onError the first
// evaluation failure is returned instead.
func (t *Template) Evaluate(bindings map[string]any, onError EvalErrorHandler) (any, error) {
	if !t.HasExpressions() {
		if len(t.parts) == 0 {
			return "", nil
		}
		return t.parts[0].text, nil
	}

	ctx, err := t.evalContext(bindings)
	if err != nil {
		return nil, err
	}

	single := len(t.parts) == 1
	var out strings.Builder
	for _, pt := range t.parts {
		if !pt.isExpr {
			out.WriteString(pt.text)
			continue
		}
		if pt.expr == nil {
			if single {
				return Placeholder, nil
			}
			out.WriteString(Placeholder)
			continue
		}
		v, diags := pt.expr.Value(ctx)
		if diags.HasErrors() {
			err := &ExpressionError{Expr: pt.src, Err: diags}
			if onError == nil {
				return nil, err
			}
			onError(pt.src, err)
			if single {
				return nil, nil
			}
			out.WriteString(Placeholder)
			continue
		}
		if single {
			return FromValue(v), nil
		}
		out.WriteString(Format(FromValue(v)))
	}
	return out.String(), nil
}

// String is Evaluate that always produces text.
func (t *Template) String(bindings map[string]any, onError EvalErrorHandler) (string, error) {
	v, err := t.Evaluate(bindings, onError)
	if err != nil {
		return "", err
	}
	if v == nil && t.HasExpressions() && len(t.parts) == 1 {
		return Placeholder, nil
	}
	return Format(v), nil
}

func (t *Template) evalContext(bindings map[string]any) (*hcl.EvalContext, error) {
	t.parser.mu.RLock()
	vars := make(map[string]cty.Value, len(t.parser.consts)+len(bindings))
	for k, v := range t.parser.consts {
		cv, err := ToValue(v)
		if err != nil {
			t.parser.mu.RUnlock()
			return nil, fmt.Errorf("constant %s: %w", k, err)
		}
		vars[k] = cv
	}
	t.parser.mu.RUnlock()

	for k, v := range bindings {
		cv, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", k, err)
		}
		vars[k] = cv
	}
	return &hcl.EvalContext{Variables: vars, Functions: t.parser.functions}, nil
}

// normalizeQuotes rewrites single quoted string literals into HCL double
// quoted ones. Template sequences inside them are escaped so they stay
// literal text.
func normalizeQuotes(src string) string {
	if !strings.ContainsRune(src, '\'') {
		return src
	}
	var b strings.Builder
	inDouble := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inDouble:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == '"' {
				inDouble = false
			}
		case c == '"':
			inDouble = true
			b.WriteByte(c)
		case c == '\'':
			b.WriteByte('"')
			for i++; i < len(src) && src[i] != '\''; i++ {
				switch ch := src[i]; {
				case ch == '\\' && i+1 < len(src):
					i++
					switch esc := src[i]; esc {
					case '\'':
						b.WriteByte('\'')
					case 'n', 'r', 't', '"', '\\', 'u', 'U':
						b.WriteByte('\\')
						b.WriteByte(esc)
					default:
						b.WriteString(`\\`)
						b.WriteByte(esc)
					}
				case ch == '"':
					b.WriteString(`\"`)
				case (ch == '$' || ch == '%') && i+1 < len(src) && src[i+1] == '{':
					b.WriteByte(ch)
					b.WriteByte(ch)
				default:
					b.WriteByte(ch)
				}
			}
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
