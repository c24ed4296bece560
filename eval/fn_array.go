package eval

import (
	"cmp"
	"slices"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
	"fortio.org/log"
	"fortio.org/sets"
)

func registerArrays(r *Registry) {
	for _, b := range []Builtin{
		{Name: "MAP", MinArgs: 2, MaxArgs: 2, Callback: mapFunc, Help: "MAP(array, (x, i) -> ...) skips failing elements"},
		{Name: "FILTER", MinArgs: 2, MaxArgs: 2, Callback: filterFunc, Help: "FILTER(array, (x, i) -> boolean)"},
		{Name: "FIND", MinArgs: 2, MaxArgs: 2, Callback: findFunc, Help: "FIND(array, (x, i) -> boolean) first match or null"},
		{Name: "REDUCE", MinArgs: 3, MaxArgs: 3, Callback: reduceFunc, Help: "REDUCE(array, (acc, x, i) -> ..., initial)"},
		{Name: "EVERY", MinArgs: 2, MaxArgs: 2, Callback: predicate(false), Help: "EVERY(array, (x, i) -> boolean)"},
		{Name: "SOME", MinArgs: 2, MaxArgs: 2, Callback: predicate(true), Help: "SOME(array, (x, i) -> boolean)"},
		{Name: "FLATMAP", MinArgs: 2, MaxArgs: 2, Callback: flatMapFunc, Help: "FLATMAP(array, (x, i) -> array)"},
		{Name: "FLAT", MinArgs: 1, MaxArgs: 2, Callback: flatFunc, Help: "FLAT(array, depth=1)"},
		{Name: "UNIQUE", MinArgs: 1, MaxArgs: 1, Callback: uniqueFunc, Help: "UNIQUE(array) keeps first occurrences"},
		{Name: "COUNTIF", MinArgs: 2, MaxArgs: 2, Callback: countIfFunc, Help: "COUNTIF(array, criterion)"},
		{Name: "SORT", MinArgs: 1, MaxArgs: 2, Callback: sortFunc, Help: "SORT(array, ascending=true) numbers or strings"},
		{Name: "KEYS", MinArgs: 1, MaxArgs: 1, Callback: keysFunc, Help: "KEYS(dictionary) sorted"},
		{Name: "VALUES", MinArgs: 1, MaxArgs: 1, Callback: valuesFunc, Help: "VALUES(dictionary) in key order"},
		{Name: "ARRAY", MinArgs: 0, MaxArgs: -1, Callback: arrayFunc, Help: "ARRAY(a, b, ...), also [a, b, ...]"},
		{Name: "DICT", MinArgs: 0, MaxArgs: -1, Callback: dictFunc, Help: "DICT(key1, value1, ...), also {key1: value1, ...}"},
		{Name: "INDEX", MinArgs: 2, MaxArgs: 2, Callback: indexFunc, Help: "INDEX(collection, key), also x[key]"},
	} {
		b.Category = "array"
		r.MustCreate(b)
	}
}

// arrayAndLambda evaluates the array and lambda first two arguments.
func (ev *Evaluator) arrayAndLambda(ctx Context, name string, args []ast.Node, minParams, maxParams int,
) ([]object.Value, object.Lambda, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, object.Lambda{}, err
	}
	elements, err := argArray(name, 1, v)
	if err != nil {
		return nil, object.Lambda{}, err
	}
	v, err = ev.Eval(args[1], ctx)
	if err != nil {
		return nil, object.Lambda{}, err
	}
	l, err := argLambda(name, 2, v, minParams, maxParams)
	return elements, l, err
}

func index(i int) object.Value {
	return object.Number{Value: float64(i)}
}

func mapFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	elements, l, err := ev.arrayAndLambda(ctx, name, args, 0, 2)
	if err != nil {
		return nil, err
	}
	res, err := object.MakeValueSlice(name, len(elements))
	if err != nil {
		return nil, err
	}
	for i, e := range elements {
		v, err := ev.applyLambda(ctx, l, e, index(i))
		if err != nil {
			log.LogVf("%s skipping element %d: %v", name, i, err)
			continue
		}
		res = append(res, v)
	}
	return object.NewArray(res...), nil
}

// test applies l to element i and requires a boolean result.
func (ev *Evaluator) test(ctx Context, name string, l object.Lambda, i int, e object.Value) (bool, error) {
	v, err := ev.applyLambda(ctx, l, e, index(i))
	if err != nil {
		return false, err
	}
	b, ok := v.(object.Boolean)
	if !ok {
		return false, object.NewElementTypeMismatch(name, 2, i, "boolean", v)
	}
	return b.Value, nil
}

func filterFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	elements, l, err := ev.arrayAndLambda(ctx, name, args, 0, 2)
	if err != nil {
		return nil, err
	}
	res := []object.Value{}
	for i, e := range elements {
		ok, err := ev.test(ctx, name, l, i, e)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, e)
		}
	}
	return object.NewArray(res...), nil
}

func findFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	elements, l, err := ev.arrayAndLambda(ctx, name, args, 0, 2)
	if err != nil {
		return nil, err
	}
	for i, e := range elements {
		ok, err := ev.test(ctx, name, l, i, e)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
	}
	return object.NULL, nil
}

// predicate is EVERY (stopOn false) and SOME (stopOn true).
func predicate(stopOn bool) Function {
	return func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
		elements, l, err := ev.arrayAndLambda(ctx, name, args, 0, 2)
		if err != nil {
			return nil, err
		}
		for i, e := range elements {
			ok, err := ev.test(ctx, name, l, i, e)
			if err != nil {
				return nil, err
			}
			if ok == stopOn {
				return object.NativeBoolToBooleanObject(stopOn), nil
			}
		}
		return object.NativeBoolToBooleanObject(!stopOn), nil
	}
}

func reduceFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	elements, l, err := ev.arrayAndLambda(ctx, name, args, 2, 3)
	if err != nil {
		return nil, err
	}
	acc, err := ev.Eval(args[2], ctx)
	if err != nil {
		return nil, err
	}
	for i, e := range elements {
		if acc, err = ev.applyLambda(ctx, l, acc, e, index(i)); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func flatMapFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	elements, l, err := ev.arrayAndLambda(ctx, name, args, 0, 2)
	if err != nil {
		return nil, err
	}
	res := []object.Value{}
	for i, e := range elements {
		v, err := ev.applyLambda(ctx, l, e, index(i))
		if err != nil {
			return nil, err
		}
		a, ok := v.(object.Array)
		if !ok {
			return nil, object.NewElementTypeMismatch(name, 2, i, "array", v)
		}
		if ok, free := object.SizeOk(len(res) + len(a.Elements)); !ok {
			return nil, object.NewInvalidArguments(name, "result would exceed memory, %d bytes free", free)
		}
		res = append(res, a.Elements...)
	}
	return object.NewArray(res...), nil
}

func flatFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	elements, err := argArray(name, 1, values[0])
	if err != nil {
		return nil, err
	}
	depth := 1
	if len(values) > 1 {
		if depth, err = argInt(name, 2, values[1]); err != nil {
			return nil, err
		}
		if depth < 0 {
			return nil, object.NewInvalidArguments(name, "depth must not be negative, got %d", depth)
		}
	}
	res, err := object.MakeValueSlice(name, flatLen(elements, depth))
	if err != nil {
		return nil, err
	}
	return object.NewArray(flatten(res, elements, depth)...), nil
}

func flatLen(elements []object.Value, depth int) int {
	n := 0
	for _, e := range elements {
		if a, ok := e.(object.Array); ok && depth > 0 {
			n += flatLen(a.Elements, depth-1)
			continue
		}
		n++
	}
	return n
}

func flatten(res, elements []object.Value, depth int) []object.Value {
	for _, e := range elements {
		if a, ok := e.(object.Array); ok && depth > 0 {
			res = flatten(res, a.Elements, depth-1)
			continue
		}
		res = append(res, e)
	}
	return res
}

// Identity is the canonical (Inspect) string, so 1 and "1" stay distinct
// while identical composites collapse.
func uniqueFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	elements, err := argArray(name, 1, v)
	if err != nil {
		return nil, err
	}
	seen := sets.New[string]()
	res := make([]object.Value, 0, len(elements))
	for _, e := range elements {
		key := e.Inspect()
		if seen.Has(key) {
			continue
		}
		seen.Add(key)
		res = append(res, e)
	}
	return object.NewArray(res...), nil
}

func countIfFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	elements, err := argArray(name, 1, values[0])
	if err != nil {
		return nil, err
	}
	count := 0
	for _, e := range elements {
		if criterionMatch(e, values[1]) {
			count++
		}
	}
	return object.Number{Value: float64(count)}, nil
}

// criterionMatch: string criteria are case insensitive substrings of string
// elements, same types compare natively, mixed types by display string.
func criterionMatch(e, criterion object.Value) bool {
	if es, ok := e.(object.String); ok {
		if cs, ok := criterion.(object.String); ok {
			return containsFold(es.Value, cs.Value)
		}
	}
	if e.Type() == criterion.Type() {
		return object.Equals(e, criterion)
	}
	return object.ToString(e) == object.ToString(criterion)
}

// Elements must all be numbers or all be strings, checked before sorting.
func sortFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	elements, err := argArray(name, 1, values[0])
	if err != nil {
		return nil, err
	}
	ascending := true
	if len(values) > 1 {
		if ascending, err = argBool(name, 2, values[1]); err != nil {
			return nil, err
		}
	}
	if len(elements) == 0 {
		return object.NewArray(), nil
	}
	first := elements[0].Type()
	if first != object.NUMBER && first != object.STRING {
		return nil, object.NewElementTypeMismatch(name, 1, 0, "number or string", elements[0])
	}
	for i, e := range elements[1:] {
		if e.Type() != first {
			return nil, object.NewElementTypeMismatch(name, 1, i+1, first.String(), e)
		}
	}
	res := slices.Clone(elements)
	slices.SortStableFunc(res, func(a, b object.Value) int {
		var c int
		if first == object.NUMBER {
			c = cmp.Compare(a.(object.Number).Value, b.(object.Number).Value)
		} else {
			c = strings.Compare(a.(object.String).Value, b.(object.String).Value)
		}
		if !ascending {
			return -c
		}
		return c
	})
	return object.NewArray(res...), nil
}

func keysFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	d, err := argDictionary(name, 1, v)
	if err != nil {
		return nil, err
	}
	keys := d.Keys()
	res := make([]object.Value, 0, len(keys))
	for _, k := range keys {
		res = append(res, object.String{Value: k})
	}
	return object.NewArray(res...), nil
}

func valuesFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	v, err := ev.Eval(args[0], ctx)
	if err != nil {
		return nil, err
	}
	d, err := argDictionary(name, 1, v)
	if err != nil {
		return nil, err
	}
	keys := d.Keys()
	res := make([]object.Value, 0, len(keys))
	for _, k := range keys {
		res = append(res, d[k])
	}
	return object.NewArray(res...), nil
}

func arrayFunc(ev *Evaluator, ctx Context, _ string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	return object.NewArray(values...), nil
}

func dictFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	if len(args)%2 != 0 {
		return nil, object.NewInvalidArguments(name, "expected key, value pairs, got %d arguments", len(args))
	}
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	d := make(object.Dictionary, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, err := argString(name, i+1, values[i])
		if err != nil {
			return nil, err
		}
		d[key] = values[i+1]
	}
	return d, nil
}

func indexFunc(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
	values, err := ev.evalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	collection, key := values[0], values[1]
	if a, ok := collection.(object.Array); ok {
		if n, ok := key.(object.Number); ok {
			i, err := toInt(name, 2, n.Value)
			if err != nil {
				return nil, err
			}
			return element(a, i), nil
		}
	}
	var k string
	switch key := key.(type) {
	case object.String:
		k = key.Value
	case object.Number:
		k = object.FormatNumber(key.Value)
	default:
		return nil, object.NewTypeMismatch(name, 2, "number or string", key)
	}
	v, ok := Member(collection, k)
	if !ok {
		return nil, object.NewTypeMismatch(name, 1, "array or dictionary", collection)
	}
	return v, nil
}
