package eval

import (
	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
)

func registerLogical(r *Registry) {
	for _, b := range []Builtin{
		{Name: "IF", MinArgs: 3, MaxArgs: 3, Callback: ifFunc, Help: "IF(condition, then, else)"},
		{Name: "AND", MinArgs: 1, MaxArgs: -1, Callback: andFunc, Help: "AND(a, b, ...) stops at the first false"},
		{Name: "OR", MinArgs: 1, MaxArgs: -1, Callback: orFunc, Help: "OR(a, b, ...) stops at the first true"},
		{Name: "NOT", MinArgs: 1, MaxArgs: 1, Callback: notFunc, Help: "NOT(boolean)"},
		{Name: "EMPTY", MinArgs: 1, MaxArgs: 1, Callback: emptyFunc, Help: "EMPTY(value)"},
		{Name: "IFERROR", MinArgs: 2, MaxArgs: 2, Callback: ifErrorFunc, Help: "IFERROR(value, fallback)"},
	} {
		b.Category = "logical"
		r.MustCreate(b)
	}
}

// Only the branch taken is evaluated.
func ifFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	cond, err := argBool(name, 1, v)
	if err != nil {
		return nil, err
	}
	if cond {
		return ev.Eval(args[1], ctx)
	}
	return ev.Eval(args[2], ctx)
}

func andFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	return shortCircuit(ev, ctx, name, args, false)
}

func orFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	return shortCircuit(ev, ctx, name, args, true)
}

// shortCircuit returns stopOn as soon as an argument evaluates to it.
func shortCircuit(ev *Evaluator, ctx Context, name string, args []ast.Node, stopOn bool) (object.Value, error) {
	for i, a := range args {
		v, err := ev.Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		b, err := argBool(name, i+1, v)
		if err != nil {
			return nil, err
		}
		if b == stopOn {
			return object.NativeBoolToBooleanObject(stopOn), nil
		}
	}
	return object.NativeBoolToBooleanObject(!stopOn), nil
}

func notFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	b, err := argBool(name, 1, v)
	if err != nil {
		return nil, err
	}
	return object.NativeBoolToBooleanObject(!b), nil
}

func emptyFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	return object.NativeBoolToBooleanObject(IsEmpty(v)), nil
}

// IsEmpty is the per type emptiness of EMPTY().
func IsEmpty(v object.Value) bool {
	switch v := v.(type) {
	case object.String:
		return v.Value == ""
	case object.Number:
		return v.Value == 0
	case object.Boolean:
		return !v.Value
	case object.Array:
		return len(v.Elements) == 0
	case object.Dictionary:
		return len(v) == 0
	case object.Null, object.Undefined, object.Error:
		return true
	default: // Date, Lambda
		return false
	}
}

// Failures and error values both fall back.
func ifErrorFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err == nil && v.Type() != object.ERROR {
		return v, nil
	}
	return ev.Eval(args[1], ctx)
}
