package eval

import (
	"cmp"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
)

// Functions the parser turns operators into.
func registerOperators(r *Registry) {
	for _, b := range []Builtin{
		{Name: "ADD", MinArgs: 2, MaxArgs: 2, Callback: addFunc, Help: "a + b, numbers or string concatenation"},
		{Name: "SUBTRACT", MinArgs: 2, MaxArgs: 2, Callback: arithmetic("-", func(a, b float64) float64 { return a - b }), Help: "a - b"},
		{Name: "MULTIPLY", MinArgs: 2, MaxArgs: 2, Callback: arithmetic("*", func(a, b float64) float64 { return a * b }), Help: "a * b"},
		{Name: "DIVIDE", MinArgs: 2, MaxArgs: 2, Callback: divideFunc, Help: "a / b"},
		{Name: "NEGATE", MinArgs: 1, MaxArgs: 1, Callback: oneNumber(func(a float64) float64 { return -a }), Help: "-a"},
		{Name: "EQ", MinArgs: 2, MaxArgs: 2, Callback: equality(true), Help: "a == b, no coercion"},
		{Name: "NEQ", MinArgs: 2, MaxArgs: 2, Callback: equality(false), Help: "a != b, no coercion"},
		{Name: "LT", MinArgs: 2, MaxArgs: 2, Callback: ordering(func(c int) bool { return c < 0 }), Help: "a < b"},
		{Name: "LTE", MinArgs: 2, MaxArgs: 2, Callback: ordering(func(c int) bool { return c <= 0 }), Help: "a <= b"},
		{Name: "GT", MinArgs: 2, MaxArgs: 2, Callback: ordering(func(c int) bool { return c > 0 }), Help: "a > b"},
		{Name: "GTE", MinArgs: 2, MaxArgs: 2, Callback: ordering(func(c int) bool { return c >= 0 }), Help: "a >= b"},
	} {
		b.Category = "operator"
		r.MustCreate(b)
	}
}

func addFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	left, right := values[0], values[1]
	if left.Type() == object.STRING || right.Type() == object.STRING {
		return object.String{Value: object.ToString(left) + object.ToString(right)}, nil
	}
	a, err := argNumber(name, 1, left)
	if err != nil {
		return nil, err
	}
	b, err := argNumber(name, 2, right)
	if err != nil {
		return nil, err
	}
	return finiteOp(name, a+b, a, "+", b)
}

func arithmetic(symbol string, op func(a, b float64) float64) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		n, err := ev.evalNumbers(ctx, name, args)
		if err != nil {
			return nil, err
		}
		return finiteOp(name, op(n[0], n[1]), n[0], symbol, n[1])
	}
}

func divideFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	n, err := ev.evalNumbers(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if n[1] == 0 {
		return nil, object.NewDivisionByZero(name)
	}
	return finiteOp(name, n[0]/n[1], n[0], "/", n[1])
}

func equality(equal bool) Function {
	return func(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
		values, err := ev.evalArgs(ctx, args)
		if err != nil {
			return nil, err
		}
		return object.NativeBoolToBooleanObject(object.Equals(values[0], values[1]) == equal), nil
	}
}

func ordering(test func(int) bool) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		values, err := ev.evalArgs(ctx, args)
		if err != nil {
			return nil, err
		}
		c, err := Compare(name, values[0], values[1])
		if err != nil {
			return nil, err
		}
		return object.NativeBoolToBooleanObject(test(c)), nil
	}
}

// Compare orders two numbers, two strings or two dates. Anything else is a
// type mismatch on the first argument that isn't ordered or doesn't match.
func Compare(fn string, a, b object.Value) (int, error) {
	switch a := a.(type) {
	case object.Number:
		if b, ok := b.(object.Number); ok {
			return cmp.Compare(a.Value, b.Value), nil
		}
	case object.String:
		if b, ok := b.(object.String); ok {
			return strings.Compare(a.Value, b.Value), nil
		}
	case object.Date:
		if b, ok := b.(object.Date); ok {
			return a.Value.Compare(b.Value), nil
		}
	default:
		return 0, object.NewTypeMismatch(fn, 1, "number, string or date", a)
	}
	return 0, object.NewTypeMismatch(fn, 2, a.Type().String(), b)
}
