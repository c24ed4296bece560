package eval

import (
	"math"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
)

func registerMath(r *Registry) {
	for _, b := range []Builtin{
		{Name: "SUM", MinArgs: 1, MaxArgs: -1, Callback: aggregate(sum), Help: "SUM(numbers or arrays, ...) skips nulls"},
		{Name: "MAX", MinArgs: 1, MaxArgs: -1, Callback: aggregate(maxOf), Help: "MAX(numbers or arrays, ...)"},
		{Name: "MIN", MinArgs: 1, MaxArgs: -1, Callback: aggregate(minOf), Help: "MIN(numbers or arrays, ...)"},
		{Name: "AVG", MinArgs: 1, MaxArgs: -1, Callback: aggregate(avg), Help: "AVG(numbers or arrays, ...)"},
		{Name: "COUNT", MinArgs: 1, MaxArgs: -1, Callback: countFunc, Help: "COUNT(values or arrays, ...)"},
		{Name: "POW", MinArgs: 2, MaxArgs: 2, Callback: powFunc, Help: "POW(base, exponent), also base ^ exponent"},
		{Name: "SQRT", MinArgs: 1, MaxArgs: 1, Callback: sqrtFunc, Help: "SQRT(n)"},
		{Name: "ROUND", MinArgs: 1, MaxArgs: 2, Callback: roundFunc, Help: "ROUND(n, digits=0) half away from zero"},
		{Name: "CEIL", MinArgs: 1, MaxArgs: 1, Callback: oneNumber(math.Ceil), Help: "CEIL(n)"},
		{Name: "FLOOR", MinArgs: 1, MaxArgs: 1, Callback: oneNumber(math.Floor), Help: "FLOOR(n)"},
		{Name: "MOD", MinArgs: 2, MaxArgs: 2, Callback: modFunc, Help: "MOD(a, b), also a % b, sign of a"},
	} {
		b.Category = "math"
		r.MustCreate(b)
	}
}

func isAbsent(v object.Value) bool {
	return v.Type() == object.NIL || v.Type() == object.UNDEF
}

// collectNumbers flattens one level of arrays, skipping null and undefined.
func collectNumbers(fn string, values []object.Value) ([]float64, error) {
	res := make([]float64, 0, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case object.Number:
			res = append(res, v.Value)
		case object.Array:
			for j, e := range v.Elements {
				if isAbsent(e) {
					continue
				}
				n, ok := e.(object.Number)
				if !ok {
					return nil, object.NewElementTypeMismatch(fn, i+1, j, "number", e)
				}
				res = append(res, n.Value)
			}
		default:
			if !isAbsent(v) {
				return nil, object.NewTypeMismatch(fn, i+1, "number or array", v)
			}
		}
	}
	return res, nil
}

// Aggregates of no numbers are 0.
func aggregate(f func([]float64) float64) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		values, err := ev.evalArgs(ctx, args)
		if err != nil {
			return nil, err
		}
		numbers, err := collectNumbers(name, values)
		if err != nil {
			return nil, err
		}
		if len(numbers) == 0 {
			return object.Number{Value: 0}, nil
		}
		res := f(numbers)
		if !isFinite(res) {
			return nil, object.NewInvalidArguments(name, "result is not a finite number")
		}
		return object.Number{Value: res}, nil
	}
}

func sum(numbers []float64) float64 {
	total := 0.
	for _, n := range numbers {
		total += n
	}
	return total
}

func avg(numbers []float64) float64 {
	return sum(numbers) / float64(len(numbers))
}

func maxOf(numbers []float64) float64 {
	res := numbers[0]
	for _, n := range numbers[1:] {
		res = max(res, n)
	}
	return res
}

func minOf(numbers []float64) float64 {
	res := numbers[0]
	for _, n := range numbers[1:] {
		res = min(res, n)
	}
	return res
}

func countFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, v := range values {
		switch {
		case isAbsent(v):
		case v.Type() == object.ARRAY:
			count += len(v.(object.Array).Elements)
		default:
			count++
		}
	}
	return object.Number{Value: float64(count)}, nil
}

func powFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	n, err := ev.evalNumbers(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return finiteOp(name, math.Pow(n[0], n[1]), n[0], "^", n[1])
}

func sqrtFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	n, err := ev.evalNumbers(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if n[0] < 0 {
		return nil, object.NewInvalidArguments(name, "square root of negative number %s", object.FormatNumber(n[0]))
	}
	return object.Number{Value: math.Sqrt(n[0])}, nil
}

func roundFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	n, err := ev.evalNumbers(ctx, name, args)
	if err != nil {
		return nil, err
	}
	digits := 0
	if len(n) > 1 {
		if digits, err = toInt(name, 2, n[1]); err != nil {
			return nil, err
		}
	}
	return object.Number{Value: Round(n[0], digits)}, nil
}

// Round rounds half away from zero to digits decimals, digits <= 0 rounds
// to a whole number.
func Round(n float64, digits int) float64 {
	if digits <= 0 {
		return math.Round(n)
	}
	p := math.Pow10(digits)
	if math.IsInf(n*p, 0) {
		return n // already more precise than float64 can tell.
	}
	return math.Round(n*p) / p
}

func modFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	n, err := ev.evalNumbers(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if n[1] == 0 {
		return nil, object.NewDivisionByZero(name)
	}
	return object.Number{Value: math.Mod(n[0], n[1])}, nil
}
