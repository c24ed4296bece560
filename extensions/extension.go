// Package extensions maps some go built in functions to formula functions,
// registered through the same public API hosts use to extend the language.
package extensions

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/eval"
	"calcfield.io/calc/object"
	"fortio.org/duration"
	"fortio.org/log"
)

// Configure which groups of extensions are added.
type Config struct {
	NoMath bool // no trigonometry, logarithms, PI() and E().
	NoJSON bool // no JSON() and PARSEJSON().
	// EVAL(formula) evaluates a formula computed at runtime, in the current context.
	HasEval bool
}

// Init adds the extensions to reg. If the passed [Config] pointer is nil,
// default values are used.
func Init(reg *eval.Registry, c *Config) error {
	if c == nil {
		c = &Config{}
	}
	if !c.NoMath {
		if err := initMath(reg); err != nil {
			return err
		}
	}
	err := reg.Create(eval.Builtin{
		Name:     "format",
		MinArgs:  1,
		MaxArgs:  -1,
		Help:     `FORMAT(format, args...) as Go's fmt.Sprintf, e.g. FORMAT("%.2f", x)`,
		Category: "string",
		Callback: sprintf,
	})
	if err != nil {
		return err
	}
	err = reg.Create(eval.Builtin{
		Name:     "duration",
		MinArgs:  1,
		MaxArgs:  1,
		Help:     `DURATION("1d3h") in milliseconds, for DATEADD(d, DURATION("90m"), "ms")`,
		Category: "date",
		Callback: durationFunc,
	})
	if err != nil {
		return err
	}
	if !c.NoJSON {
		jsonFn := eval.Builtin{
			Name:     "json",
			MinArgs:  1,
			MaxArgs:  1,
			Help:     "JSON(value) serialized",
			Category: "string",
			Callback: jsonSer,
		}
		if err = reg.Create(jsonFn); err != nil {
			return err
		}
		jsonFn.Name = "parsejson"
		jsonFn.Help = "PARSEJSON(text) deserialized"
		jsonFn.Callback = jsonDeser
		if err = reg.Create(jsonFn); err != nil {
			return err
		}
	}
	if c.HasEval {
		err = reg.Create(eval.Builtin{
			Name:     "eval",
			MinArgs:  1,
			MaxArgs:  1,
			Help:     "EVAL(formula) evaluates the formula text in the current context",
			Category: "logical",
			Callback: evalFunc,
		})
	}
	return err
}

type OneFloatInOutFunc func(float64) float64

func initMath(reg *eval.Registry) error {
	oneFloat := eval.Builtin{
		MinArgs:  1,
		MaxArgs:  1,
		Category: "math",
	}
	for _, function := range []struct {
		fn   OneFloatInOutFunc
		name string
	}{
		{math.Sin, "sin"},
		{math.Cos, "cos"},
		{math.Tan, "tan"},
		{math.Asin, "asin"},
		{math.Acos, "acos"},
		{math.Atan, "atan"},
		{math.Log, "ln"},
		{math.Exp, "exp"},
		{math.Log10, "log10"},
		{math.Abs, "abs"},
		{math.Trunc, "trunc"},
	} {
		oneFloat.Callback = func(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
			// Arg len check already done through MinArgs=MaxArgs=1.
			v, err := ev.Eval(args[0], ctx)
			if err != nil {
				return nil, err
			}
			n, ok := v.(object.Number)
			if !ok {
				return nil, object.NewTypeMismatch(name, 1, "number", v)
			}
			res := function.fn(n.Value)
			if math.IsNaN(res) || math.IsInf(res, 0) {
				return nil, object.NewInvalidArguments(name, "not defined for %s", object.FormatNumber(n.Value))
			}
			return object.Number{Value: res}, nil
		}
		oneFloat.Name = function.name
		oneFloat.Help = strings.ToUpper(function.name) + "(n)"
		if err := reg.Create(oneFloat); err != nil {
			return err
		}
	}
	for name, value := range map[string]float64{"pi": math.Pi, "e": math.E} {
		err := reg.Create(eval.Builtin{
			Name:     name,
			Help:     strings.ToUpper(name) + "() constant",
			Category: "math",
			MaxArgs:  0,
			Callback: func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
				return object.Number{Value: value}, nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func evalAll(ev *eval.Evaluator, ctx eval.Context, args []ast.Node) ([]object.Value, error) {
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

func sprintf(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
	values, err := evalAll(ev, ctx, args)
	if err != nil {
		return nil, err
	}
	format, ok := values[0].(object.String)
	if !ok {
		return nil, object.NewTypeMismatch(name, 1, "string", values[0])
	}
	res := fmt.Sprintf(format.Value, object.UnwrapSlice(values[1:])...)
	return object.String{Value: res}, nil
}

func durationFunc(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	s, ok := v.(object.String)
	if !ok {
		return nil, object.NewTypeMismatch(name, 1, "string", v)
	}
	d, err := duration.Parse(strings.TrimSpace(s.Value))
	if err != nil {
		return nil, object.NewInvalidArguments(name, "%v", err)
	}
	return object.Number{Value: float64(d.Milliseconds())}, nil
}

func jsonSer(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(object.Unwrap(v))
	if err != nil {
		return nil, object.NewInvalidArguments(name, "%v", err)
	}
	return object.String{Value: string(b)}, nil
}

func jsonDeser(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	s, ok := v.(object.String)
	if !ok {
		return nil, object.NewTypeMismatch(name, 1, "string", v)
	}
	var data any
	if err = json.Unmarshal([]byte(s.Value), &data); err != nil {
		return nil, object.NewInvalidArguments(name, "%v", err)
	}
	return object.FromGo(data)
}

func evalFunc(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	s, ok := v.(object.String)
	if !ok {
		return nil, object.NewTypeMismatch(name, 1, "string", v)
	}
	node, err := ev.Parse(s.Value)
	if err != nil {
		return nil, err
	}
	log.LogVf("%s of %q", name, s.Value)
	return ev.Eval(node, ctx)
}
