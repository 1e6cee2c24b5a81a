package sdbvexpr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// ReplaceFunc implements replace(text, pattern1, replacement1, ...). Each
// pattern is a regular expression applied globally in order; replacements may
// refer to groups as $1, $2 and to the whole match as $&.
var ReplaceFunc = function.New(&function.Spec{
	Description: "Applies regular expression replacements in order.",
	Params: []function.Parameter{
		{Name: "text", Type: cty.DynamicPseudoType, AllowNull: true},
	},
	VarParam: &function.Parameter{Name: "pairs", Type: cty.DynamicPseudoType, AllowNull: true},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		text, err := asString(args[0])
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		if len(args)%2 == 0 {
			return cty.NilVal, fmt.Errorf("replace expects pattern/replacement pairs, got %d extra arguments", len(args)-1)
		}
		for i := 1; i+1 < len(args); i += 2 {
			pattern, err := asString(args[i])
			if err != nil {
				return cty.NilVal, function.NewArgError(i, err)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return cty.NilVal, function.NewArgError(i, err)
			}
			repl, err := asString(args[i+1])
			if err != nil {
				return cty.NilVal, function.NewArgError(i+1, err)
			}
			text = re.ReplaceAllString(text, expandTemplate(repl))
		}
		return cty.StringVal(text), nil
	},
})

// GetFunc implements get(object, key[, default]). The default (or null) is
// returned when the key is absent.
var GetFunc = function.New(&function.Spec{
	Description: "Looks up a key in an object with an optional default.",
	Params: []function.Parameter{
		{Name: "object", Type: cty.DynamicPseudoType, AllowNull: true},
		{Name: "key", Type: cty.DynamicPseudoType},
	},
	VarParam: &function.Parameter{Name: "default", Type: cty.DynamicPseudoType, AllowNull: true},
	Type:     function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		fallback := cty.NullVal(cty.DynamicPseudoType)
		if len(args) > 2 {
			fallback = args[2]
		}
		obj := args[0]
		key, err := asString(args[1])
		if err != nil {
			return cty.NilVal, function.NewArgError(1, err)
		}
		if obj.IsNull() || !obj.IsKnown() {
			return fallback, nil
		}
		ty := obj.Type()
		switch {
		case ty.IsObjectType():
			if ty.HasAttribute(key) {
				return obj.GetAttr(key), nil
			}
		case ty.IsMapType():
			if obj.HasIndex(cty.StringVal(key)).True() {
				return obj.Index(cty.StringVal(key)), nil
			}
		}
		return fallback, nil
	},
})

// Functions returns the function table exposed to templates.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"replace": ReplaceFunc,
		"get":     GetFunc,
	}
}

func asString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("value is null")
	}
	if !v.IsKnown() {
		return "", fmt.Errorf("value is unknown")
	}
	ty := v.Type()
	if ty == cty.String || ty == cty.Number || ty == cty.Bool {
		return Format(FromValue(v)), nil
	}
	return "", fmt.Errorf("expected a string, got %s", ty.FriendlyName())
}

// expandTemplate rewrites $n and $& group references into the ${n} form
// used by regexp.Expand, so "$1_" keeps the underscore literal.
func expandTemplate(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '$' || i+1 >= len(repl) {
			b.WriteByte(c)
			continue
		}
		next := repl[i+1]
		switch {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '&':
			b.WriteString("${0}")
			i++
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(repl) && j < i+3 && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			b.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		default:
			b.WriteString("$$")
		}
	}
	return b.String()
}
