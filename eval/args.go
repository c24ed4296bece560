package eval

import (
	"math"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
	"fortio.org/safecast"
)

// evalArgs evaluates all the arguments, left to right, first failure wins.
func (ev *Evaluator) evalArgs(ctx Context, args []ast.Node) ([]object.Value, error) {
	res := make([]object.Value, 0, len(args))
	for _, a := range args {
		v, err := ev.Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

// Type assertions on evaluated arguments, pos is 1-based for error reporting.

func argNumber(fn string, pos int, v object.Value) (float64, error) {
	n, ok := v.(object.Number)
	if !ok {
		return 0, object.NewTypeMismatch(fn, pos, "number", v)
	}
	return n.Value, nil
}

func argString(fn string, pos int, v object.Value) (string, error) {
	s, ok := v.(object.String)
	if !ok {
		return "", object.NewTypeMismatch(fn, pos, "string", v)
	}
	return s.Value, nil
}

func argBool(fn string, pos int, v object.Value) (bool, error) {
	b, ok := v.(object.Boolean)
	if !ok {
		return false, object.NewTypeMismatch(fn, pos, "boolean", v)
	}
	return b.Value, nil
}

func argArray(fn string, pos int, v object.Value) ([]object.Value, error) {
	a, ok := v.(object.Array)
	if !ok {
		return nil, object.NewTypeMismatch(fn, pos, "array", v)
	}
	return a.Elements, nil
}

func argDictionary(fn string, pos int, v object.Value) (object.Dictionary, error) {
	d, ok := v.(object.Dictionary)
	if !ok {
		return nil, object.NewTypeMismatch(fn, pos, "dictionary", v)
	}
	return d, nil
}

// argLambda also checks the lambda declares between minParams and maxParams parameters.
func argLambda(fn string, pos int, v object.Value, minParams, maxParams int) (object.Lambda, error) {
	l, ok := v.(object.Lambda)
	if !ok {
		return l, object.NewTypeMismatch(fn, pos, "lambda", v)
	}
	if n := len(l.Parameters); n < minParams || n > maxParams {
		return l, object.NewInvalidArguments(fn, "lambda at argument %d must have %d to %d parameters, got %d",
			pos, minParams, maxParams, n)
	}
	return l, nil
}

// argInt is argNumber for arguments that must be integers.
func argInt(fn string, pos int, v object.Value) (int, error) {
	f, err := argNumber(fn, pos, v)
	if err != nil {
		return 0, err
	}
	return toInt(fn, pos, f)
}

func toInt(fn string, pos int, f float64) (int, error) {
	i, err := safecast.Convert[int](f)
	if err != nil {
		return 0, object.NewInvalidArguments(fn, "argument %d must be an integer, got %s", pos, object.FormatNumber(f))
	}
	return i, nil
}

// evalNumbers evaluates all args as numbers (operators).
func (ev *Evaluator) evalNumbers(ctx Context, fn string, args []ast.Node) ([]float64, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(values))
	for i, v := range values {
		if res[i], err = argNumber(fn, i+1, v); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// applyLambda evaluates the body of l in a child of ctx binding each declared
// parameter to the matching value (element, index or accumulator, element, index).
// Parameters beyond the supplied values are bound to undefined.
func (ev *Evaluator) applyLambda(ctx Context, l object.Lambda, values ...object.Value) (object.Value, error) {
	for i, p := range l.Parameters {
		v := object.Value(object.UNDEFINED)
		if i < len(values) {
			v = values[i]
		}
		ctx = ctx.With(p, v)
	}
	return ev.Eval(l.Body, ctx)
}

// Apply calls lambda l with values from a host function.
func (ev *Evaluator) Apply(ctx Context, l object.Lambda, values ...object.Value) (object.Value, error) {
	return ev.applyLambda(ctx, l, values...)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// finiteOp returns res, the result of a op b, or an invalid arguments error
// when it overflowed or is not a number. No operation returns infinities or NaN.
func finiteOp(fn string, res, a float64, op string, b float64) (object.Value, error) {
	if !isFinite(res) {
		return nil, object.NewInvalidArguments(fn, "%s %s %s is not a finite number",
			object.FormatNumber(a), op, object.FormatNumber(b))
	}
	return object.Number{Value: res}, nil
}

// oneString is the implementation of the string -> string functions.
func oneString(f func(string) string) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		v, err := ev.Eval(args[0], ctx)
		if err != nil {
			return nil, err
		}
		s, err := argString(name, 1, v)
		if err != nil {
			return nil, err
		}
		return object.String{Value: f(s)}, nil
	}
}

// oneNumber is the implementation of the number -> number functions.
func oneNumber(f func(float64) float64) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		v, err := ev.Eval(args[0], ctx)
		if err != nil {
			return nil, err
		}
		n, err := argNumber(name, 1, v)
		if err != nil {
			return nil, err
		}
		return object.Number{Value: f(n)}, nil
	}
}
