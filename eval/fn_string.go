package eval

import (
	"strconv"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
	"github.com/rivo/uniseg"
)

func registerStrings(r *Registry) {
	for _, b := range []Builtin{
		{Name: "CONCAT", MinArgs: 1, MaxArgs: -1, Callback: concatFunc, Help: "CONCAT(a, b, ...) strings, or arrays"},
		{Name: "CONTAINS", MinArgs: 2, MaxArgs: 2, Callback: containsFunc, Help: "CONTAINS(text or array, search) case insensitive"},
		{Name: "UPPER", MinArgs: 1, MaxArgs: 1, Callback: oneString(strings.ToUpper), Help: "UPPER(text)"},
		{Name: "LOWER", MinArgs: 1, MaxArgs: 1, Callback: oneString(strings.ToLower), Help: "LOWER(text)"},
		{Name: "TRIM", MinArgs: 1, MaxArgs: 1, Callback: oneString(strings.TrimSpace), Help: "TRIM(text)"},
		{Name: "LENGTH", MinArgs: 1, MaxArgs: 1, Callback: lengthFunc, Help: "LENGTH(text, array or dictionary)"},
		{Name: "TONUMBER", MinArgs: 1, MaxArgs: 1, Callback: toNumberFunc, Help: "TONUMBER(value)"},
		{Name: "TOSTRING", MinArgs: 1, MaxArgs: 1, Callback: toStringFunc, Help: "TOSTRING(value)"},
		{Name: "JOIN", MinArgs: 1, MaxArgs: 2, Callback: joinFunc, Help: `JOIN(array, separator=", ")`},
		{Name: "EQUALS", MinArgs: 2, MaxArgs: 2, Callback: equalsFunc, Help: "EQUALS(a, b) compares primitives as strings"},
		{Name: "SPLIT", MinArgs: 2, MaxArgs: 2, Callback: splitFunc, Help: "SPLIT(text, separator)"},
		{Name: "REPLACE", MinArgs: 3, MaxArgs: 3, Callback: replaceFunc, Help: "REPLACE(text, old, new)"},
		{Name: "STARTSWITH", MinArgs: 2, MaxArgs: 2, Callback: twoStrings(strings.HasPrefix), Help: "STARTSWITH(text, prefix)"},
		{Name: "ENDSWITH", MinArgs: 2, MaxArgs: 2, Callback: twoStrings(strings.HasSuffix), Help: "ENDSWITH(text, suffix)"},
	} {
		b.Category = "string"
		r.MustCreate(b)
	}
}

// All arrays: concatenated, or joined without separator when a single array
// of strings. Otherwise the display strings of every argument, arrays
// joined with ", ".
func concatFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	allArrays := true
	total := 0
	for _, v := range values {
		a, ok := v.(object.Array)
		if !ok {
			allArrays = false
			break
		}
		total += len(a.Elements)
	}
	if allArrays {
		if len(values) == 1 && allStrings(values[0].(object.Array).Elements) {
			return object.String{Value: joinValues(values[0].(object.Array).Elements, "")}, nil
		}
		res, err := object.MakeValueSlice(name, total)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			res = append(res, v.(object.Array).Elements...)
		}
		return object.NewArray(res...), nil
	}
	out := strings.Builder{}
	for _, v := range values {
		if a, ok := v.(object.Array); ok {
			out.WriteString(joinValues(a.Elements, ", "))
			continue
		}
		out.WriteString(object.ToString(v))
	}
	return object.String{Value: out.String()}, nil
}

func allStrings(values []object.Value) bool {
	for _, v := range values {
		if v.Type() != object.STRING {
			return false
		}
	}
	return true
}

func joinValues(values []object.Value, sep string) string {
	out := strings.Builder{}
	object.WriteValues(&out, values, object.ToString, "", sep, "")
	return out.String()
}

func containsFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	switch haystack := values[0].(type) {
	case object.String:
		needle, err := argString(name, 2, values[1])
		if err != nil {
			return nil, err
		}
		return object.NativeBoolToBooleanObject(containsFold(haystack.Value, needle)), nil
	case object.Array:
		for _, e := range haystack.Elements {
			if looseMatch(e, values[1]) {
				return object.TRUE, nil
			}
		}
		return object.FALSE, nil
	default:
		return nil, object.NewTypeMismatch(name, 1, "string or array", haystack)
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// looseMatch is element equality for array searches: strings ignore case.
func looseMatch(e, v object.Value) bool {
	es, ok1 := e.(object.String)
	vs, ok2 := v.(object.String)
	if ok1 && ok2 {
		return strings.EqualFold(es.Value, vs.Value)
	}
	return object.Equals(e, v)
}

// Strings count user perceived characters, not bytes nor runes.
func lengthFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	var n int
	switch v := v.(type) {
	case object.String:
		n = uniseg.GraphemeClusterCount(v.Value)
	case object.Array:
		n = len(v.Elements)
	case object.Dictionary:
		n = len(v)
	default:
		return nil, object.NewTypeMismatch(name, 1, "string, array or dictionary", v)
	}
	return object.Number{Value: float64(n)}, nil
}

func toNumberFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case object.Number:
		return v, nil
	case object.String:
		f, err := ParseNumber(v.Value)
		if err != nil {
			return nil, object.NewInvalidArguments(name, "cannot convert %q to a number", v.Value)
		}
		return object.Number{Value: f}, nil
	case object.Boolean:
		if v.Value {
			return object.Number{Value: 1}, nil
		}
		return object.Number{Value: 0}, nil
	case object.Date:
		return object.Number{Value: float64(v.Value.UnixMilli())}, nil
	default:
		return nil, object.NewTypeMismatch(name, 1, "string, number, boolean or date", v)
	}
}

// ParseNumber parses the surrounding whitespace trimmed decimal s. Go only
// syntaxes (hex, underscores) and the NaN and Inf spellings are refused.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for i := range len(s) {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' && c != 'e' && c != 'E' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseFloat(s, 64)
}

func toStringFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	return object.String{Value: object.ToString(v)}, nil
}

func joinFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	elements, err := argArray(name, 1, values[0])
	if err != nil {
		return nil, err
	}
	sep := ", "
	if len(values) > 1 {
		if sep, err = argString(name, 2, values[1]); err != nil {
			return nil, err
		}
	}
	return object.String{Value: joinValues(elements, sep)}, nil
}

func equalsFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	return object.NativeBoolToBooleanObject(LooseEquals(values[0], values[1])), nil
}

// LooseEquals is EQUALS(): null only equals null (and undefined undefined),
// dates compare as instants, other primitives by display string (so 1 equals
// "1" and true equals "true") and composites are never equal.
func LooseEquals(a, b object.Value) bool {
	if isAbsent(a) || isAbsent(b) {
		return a.Type() == b.Type()
	}
	if !isPrimitive(a) || !isPrimitive(b) {
		return false
	}
	if da, ok := a.(object.Date); ok {
		if db, ok := b.(object.Date); ok {
			return da.Value.Equal(db.Value)
		}
	}
	return object.ToString(a) == object.ToString(b)
}

func isPrimitive(v object.Value) bool {
	switch v.Type() { //nolint:exhaustive // the rest isn't.
	case object.NUMBER, object.STRING, object.BOOLEAN, object.DATE:
		return true
	}
	return false
}

func splitFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	s, err := ev.evalStrings(ctx, name, args)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s[0], s[1])
	res, err := object.MakeValueSlice(name, len(parts))
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		res = append(res, object.String{Value: p})
	}
	return object.NewArray(res...), nil
}

func replaceFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	s, err := ev.evalStrings(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return object.String{Value: strings.ReplaceAll(s[0], s[1], s[2])}, nil
}

func twoStrings(f func(s, other string) bool) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		s, err := ev.evalStrings(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return object.NativeBoolToBooleanObject(f(s[0], s[1])), nil
	}
}

func (ev *Evaluator) evalStrings(ctx Context, fn string, args []ast.Node) ([]string, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(values))
	for i, v := range values {
		if res[i], err = argString(fn, i+1, v); err != nil {
			return nil, err
		}
	}
	return res, nil
}
