package eval_test

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/eval"
	"calcfield.io/calc/object"
	"calcfield.io/calc/parser"
)

// The document most tests evaluate against.
func testContext(t *testing.T) *eval.MapContext {
	t.Helper()
	fields, err := object.MapFromGo(map[string]any{
		"text1": "Test",
		"price": 9.5,
		"n":     nil,
		"table1": []any{
			map[string]any{"a": 1, "b": 2},
			map[string]any{"a": 3, "b": 4},
		},
		"dotted.name": "yes",
	})
	if err != nil {
		t.Fatalf("MapFromGo: %v", err)
	}
	return eval.NewMapContext(fields)
}

func testEval(t *testing.T, input string) object.Value {
	t.Helper()
	ev := eval.New(nil) // each test starts anew.
	res, err := ev.EvalString(input, testContext(t))
	if err != nil {
		t.Fatalf("EvalString(%q) unexpected error: %v", input, err)
	}
	return res
}

func testEvalErr(t *testing.T, input string) *object.FormulaError {
	t.Helper()
	ev := eval.New(nil)
	res, err := ev.EvalString(input, testContext(t))
	if err == nil {
		t.Fatalf("EvalString(%q) expected an error, got %s", input, res.Inspect())
	}
	var fe *object.FormulaError
	if !errors.As(err, &fe) {
		t.Fatalf("EvalString(%q) error is %T not a FormulaError: %v", input, err, err)
	}
	return fe
}

func TestEvalNumberExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"5", 5},
		{"-5", -5},
		{"5 + 5 + 5 + 5 - 10", 10},
		{"2 * (5 + 10)", 30},
		{"(5 + 10 * 2 + 15 / 3) * 2 + -10", 50},
		{"17 % 5", 2},
		{"-21 % 5", -1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512},
		{"-price", -9.5},
		{"price * 2", 19},
		{"SUM([1,2,null,3])", 6},
		{"MOD(10,7)", 3},
		{"ROUND(10/3, 2)", 3.33},
		{"TONUMBER(TOSTRING(42))", 42},
		{"YEAR(DATE(2024,3,15))", 2024},
		{"IF(true, 100, 1/0)", 100},
		{"sum(1, 2)", 3},
	}
	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		testNumberObject(t, tt.input, evaluated, tt.expected)
	}
}

func testNumberObject(t *testing.T, input string, obj object.Value, expected float64) {
	t.Helper()
	result, ok := obj.(object.Number)
	if !ok {
		t.Errorf("%s: object is not Number. got=%T (%+v)", input, obj, obj)
		return
	}
	if result.Value != expected {
		t.Errorf("%s: object has wrong value. got=%v, want=%v", input, result.Value, expected)
	}
}

func TestEvalBooleanExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1 < 2", true},
		{"1 >= 2", false},
		{`"a" < "b"`, true},
		{"DATE(2024,1,1) < DATE(2024,1,2)", true},
		{"DATE(2024,1,1) == DATE(2024,1,1)", true},
		{"1 == 1", true},
		{"1 = 1", true},
		{"1 <> 1", false},
		{"1 == true", false},
		{`"1" == 1`, false},
		{"[] == []", false},
		{"[1] == [1]", false},
		{"{a: 1} == {a: 1}", false},
		{"table1 == table1", false},
		{"null == null", true},
		{"undefined == undefined", true},
		{"null == undefined", false},
		{`EQUALS(1, "1")`, true},
		{`EQUALS(true, "true")`, true},
		{"EQUALS(null, null)", true},
		{"EQUALS(null, undefined)", false},
		{"EQUALS(null, 0)", false},
		{"EQUALS([1], [1])", false},
		{"EQUALS(DATE(2024,1,1), DATE(2024,1,1))", true},
		{"AND(false, 1/0 == 0)", false},
		{"OR(true, 1/0 == 0)", true},
		{"AND(true, true, true)", true},
		{"OR(false, false)", false},
		{"!true", false},
		{"!!true", true},
		{"true && !false", true},
		{"false || 1 < 2", true},
		{`EMPTY("")`, true},
		{"EMPTY(0)", true},
		{"EMPTY(false)", true},
		{"EMPTY([])", true},
		{"EMPTY({})", true},
		{"EMPTY(n)", true},
		{"EMPTY(undefined)", true},
		{"EMPTY([1])", false},
		{"EMPTY(NOW())", false},
		{"EMPTY(x -> x)", false},
		{"EMPTY(-1)", false},
	}
	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		testBooleanObject(t, tt.input, evaluated, tt.expected)
	}
}

func testBooleanObject(t *testing.T, input string, obj object.Value, expected bool) {
	t.Helper()
	result, ok := obj.(object.Boolean)
	if !ok {
		t.Errorf("%s: object is not Boolean. got=%T (%+v)", input, obj, obj)
		return
	}
	if result.Value != expected {
		t.Errorf("%s: object has wrong value. got=%t, want=%t", input, result.Value, expected)
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`if(lower(text1) == "test", "Filled", "Empty")`, `"Filled"`},
		{"map(table1, (row) -> row.a + row.b)", "[3, 7]"},
		{"table1.a", "[1, 3]"},
		{"SUM(table1.b)", "6"},
		{"table1.0.a", "1"},
		{"[[1, 2], [3, 4]].1.0", "3"},
		{"[[1, 2], [3, 4]].1.0 + 0.5", "3.5"},
		{"table1[1].b", "4"},
		{"table1[-1].a", "3"},
		{"table1[5]", "null"},
		{"table1[0].zzz", "undefined"},
		{"n.anything", "undefined"},
		{"dotted.name", `"yes"`},
		{"{a: 1 + 1}.a", "2"},
		{`{a: 1}["a"]`, "1"},
		{"[1, 2, 3][-1]", "3"},
		{"x -> x + 1", "(x) -> (x + 1)"},
	}
	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		if got := evaluated.Inspect(); got != tt.expected {
			t.Errorf("%s: got %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		input    string
		kind     error
		expected string
	}{
		{"foo", object.ErrInvalidReference, `invalid reference "foo"`},
		{"text1.x", object.ErrInvalidReference, `invalid reference "text1.x": string "Test" has no member "x"`},
		{"SUMM(1)", object.ErrUnknownFunction, `unknown function "SUMM": did you mean SUM?`},
		{"1 / 0", object.ErrDivisionByZero, "DIVIDE: division by zero"},
		{"MOD(1, 0)", object.ErrDivisionByZero, "MOD: division by zero"},
		{"IF(1, 2, 3)", object.ErrTypeMismatch, "IF: type mismatch at argument 1: expected boolean, got number 1"},
		{"AND(true, 1)", object.ErrTypeMismatch, "AND: type mismatch at argument 2: expected boolean, got number 1"},
		{"IF(true, 1)", object.ErrInvalidArguments, "IF: invalid arguments: expected 3 arguments, got 2"},
		{"NOT()", object.ErrInvalidArguments, "NOT: invalid arguments: expected 1 argument, got 0"},
		{"AND()", object.ErrInvalidArguments, "AND: invalid arguments: expected at least 1 argument, got 0"},
		{"ROUND(1, 2, 3)", object.ErrInvalidArguments, "ROUND: invalid arguments: expected 1 to 2 arguments, got 3"},
		{"1 + true", object.ErrTypeMismatch, "ADD: type mismatch at argument 2: expected number, got boolean true"},
		{`1 < "a"`, object.ErrTypeMismatch, `LT: type mismatch at argument 2: expected number, got string "a"`},
		{"[1] < 2", object.ErrTypeMismatch, "LT: type mismatch at argument 1: expected number, string or date, got array of 1 elements"},
		{"1 +", object.ErrSyntax, "syntax error at position 3: unexpected end of formula"},
	}
	for _, tt := range tests {
		err := testEvalErr(t, tt.input)
		if !errors.Is(err, tt.kind) {
			t.Errorf("%s: wrong error kind %v, want %v", tt.input, err.Kind, tt.kind)
		}
		if err.Error() != tt.expected {
			t.Errorf("%s: wrong error message. got=%q, want=%q", tt.input, err.Error(), tt.expected)
		}
	}
}

func TestErrorStack(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"SUM(MAP([1], x -> x), 1 / 0)", []string{"DIVIDE", "SUM"}},
		{"FILTER([1], x -> 1 / 0 == 0)", []string{"DIVIDE", "EQ", "FILTER"}},
		{"SUM(1, foo)", []string{"SUM"}},
	}
	for _, tt := range tests {
		err := testEvalErr(t, tt.input)
		if !slices.Equal(err.Stack, tt.expected) {
			t.Errorf("%s: stack %v, want %v", tt.input, err.Stack, tt.expected)
		}
	}
}

// boomRegistry has a BOOM() function failing the test if ever evaluated.
func boomRegistry(t *testing.T) *eval.Registry {
	r := eval.NewRegistry()
	r.Register("boom", func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
		t.Errorf("BOOM() should not have been evaluated")
		return object.NULL, nil
	})
	return r
}

func TestShortCircuit(t *testing.T) {
	ev := eval.New(boomRegistry(t))
	ctx := testContext(t)
	tests := []struct {
		input    string
		expected string
	}{
		{"IF(true, 100, BOOM())", "100"},
		{"IF(false, BOOM(), 1)", "1"},
		{"AND(false, BOOM())", "false"},
		{"OR(true, BOOM())", "true"},
		{"false && BOOM()", "false"},
		{"true || BOOM()", "true"},
		{"EVERY([1, 2], x -> x > 5 && BOOM())", "false"},
		{"SOME([1, 2], x -> IF(x == 1, true, BOOM()))", "true"},
		{"FIND([1, 2], x -> IF(x == 1, true, BOOM()))", "1"},
		{"IFERROR(1, BOOM())", "1"},
	}
	for _, tt := range tests {
		res, err := ev.EvalString(tt.input, ctx)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.input, err)
			continue
		}
		if res.Inspect() != tt.expected {
			t.Errorf("%s: got %s, want %s", tt.input, res.Inspect(), tt.expected)
		}
	}
}

func TestHostFunctions(t *testing.T) {
	r := eval.NewRegistry()
	r.Register("fail", func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
		return nil, errors.New("disk on fire")
	})
	r.Register("panics", func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
		panic("boom")
	})
	ev := eval.New(r)
	ctx := eval.NewMapContext(nil)
	_, err := ev.EvalString("1 + FAIL()", ctx)
	if !errors.Is(err, object.ErrUnknown) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if err.Error() != "FAIL: unknown error: disk on fire" {
		t.Errorf("wrong message %q", err.Error())
	}
	_, err = ev.EvalString("SUM(1, PANICS())", ctx)
	if !errors.Is(err, object.ErrUnknown) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	var fe *object.FormulaError
	errors.As(err, &fe)
	if fe.Reason != "panic: boom" || !slices.Equal(fe.Stack, []string{"PANICS", "SUM"}) {
		t.Errorf("unexpected panic error %q stack %v", fe.Reason, fe.Stack)
	}
	if ev.Depth() != 0 || len(ev.Stack()) != 0 {
		t.Errorf("evaluator not reset after panic: %v", ev)
	}
	res, err := ev.EvalString("1 + 1", ctx)
	if err != nil || res.Inspect() != "2" {
		t.Errorf("evaluator not reusable after panic: %v %v", res, err)
	}
}

func TestRegisterLastWins(t *testing.T) {
	r := eval.NewRegistry()
	constant := func(v float64) eval.Function {
		return func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
			return object.Number{Value: v}, nil
		}
	}
	r.Register("answer", constant(1))
	r.Register("ANSWER", constant(42))
	r.Register("sum", constant(-1)) // hosts can override the library too.
	ev := eval.New(r)
	res, err := ev.EvalString("Answer() + SUM(1, 2)", eval.NewMapContext(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "override", res, 41)
	// The default library is unaffected.
	res, err = eval.New(nil).EvalString("SUM(1, 2)", eval.NewMapContext(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "default", res, 3)
}

func TestRegistryClone(t *testing.T) {
	base := eval.NewRegistry()
	clone := base.Clone()
	clone.Register("extra", func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
		return object.Number{Value: 7}, nil
	})
	clone.Register("sum", func(_ *eval.Evaluator, _ eval.Context, _ string, _ []ast.Node) (object.Value, error) {
		return object.Number{Value: -1}, nil
	})
	if _, found := base.Lookup("EXTRA"); found {
		t.Errorf("function registered on the clone leaked into the original")
	}
	if clone.Len() != base.Len()+1 {
		t.Errorf("clone has %d functions, original %d", clone.Len(), base.Len())
	}
	ctx := eval.NewMapContext(nil)
	res, err := eval.New(clone).EvalString("EXTRA() + SUM(1, 2)", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "clone", res, 6)
	res, err = eval.New(base).EvalString("SUM(1, 2)", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "original", res, 3)
}

func TestHostLambda(t *testing.T) {
	r := eval.NewRegistry()
	// TWICE(x, f) is f(f(x)).
	err := r.Create(eval.Builtin{
		Name:    "twice",
		MinArgs: 2,
		MaxArgs: 2,
		Callback: func(ev *eval.Evaluator, ctx eval.Context, name string, args []ast.Node) (object.Value, error) {
			x, err := ev.Eval(args[0], ctx)
			if err != nil {
				return nil, err
			}
			v, err := ev.Eval(args[1], ctx)
			if err != nil {
				return nil, err
			}
			l, ok := v.(object.Lambda)
			if !ok {
				return nil, object.NewTypeMismatch(name, 2, "lambda", v)
			}
			for range 2 {
				if x, err = ev.Apply(ctx, l, x); err != nil {
					return nil, err
				}
			}
			return x, nil
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ev := eval.New(r)
	res, err := ev.EvalString("TWICE(price, p -> p * 2)", testContext(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "twice", res, 38)
	// Parameters without a value are undefined, fields stay visible.
	res, err = ev.EvalString("TWICE(1, (a, b) -> IF(EMPTY(b), a + price, 0))", testContext(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testNumberObject(t, "undefined parameter", res, 20)
	_, err = ev.EvalString("TWICE(1, x -> x / 0)", testContext(t))
	if !errors.Is(err, object.ErrDivisionByZero) {
		t.Errorf("expected division by zero from the lambda, got %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	ev := eval.New(nil)
	ev.MaxDepth = 5
	_, err := ev.EvalString("1 + (1 + (1 + (1 + (1 + (1 + 1)))))", eval.NewMapContext(nil))
	if !errors.Is(err, object.ErrUnknown) {
		t.Fatalf("expected max depth error, got %v", err)
	}
	if err.Error() != "unknown error: max depth 5 exceeded" {
		t.Errorf("wrong message %q", err.Error())
	}
	res, err := ev.EvalString("1 + 1", eval.NewMapContext(nil))
	if err != nil || res.Inspect() != "2" {
		t.Errorf("evaluator not reusable: %v %v", res, err)
	}
}

func TestContextImmutable(t *testing.T) {
	root := eval.NewMapContext(map[string]object.Value{"a": object.Number{Value: 1}})
	one := root.With("x", object.Number{Value: 1})
	two := root.With("x", object.Number{Value: 2})
	shadow := one.With("x", object.Number{Value: 3}).With("a", object.String{Value: "s"})
	if _, err := root.Resolve("x"); !errors.Is(err, object.ErrInvalidReference) {
		t.Errorf("root sees a binding added to a child: %v", err)
	}
	for _, tt := range []struct {
		ctx      eval.Context
		name     string
		expected string
	}{
		{one, "x", "1"},
		{two, "x", "2"},
		{shadow, "x", "3"},
		{shadow, "a", `"s"`},
		{one, "a", "1"},
	} {
		v, err := tt.ctx.Resolve(tt.name)
		if err != nil {
			t.Errorf("Resolve(%s) unexpected error: %v", tt.name, err)
			continue
		}
		if v.Inspect() != tt.expected {
			t.Errorf("Resolve(%s) got %s, want %s", tt.name, v.Inspect(), tt.expected)
		}
	}
	if got := root.Fields(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("Fields() = %v", got)
	}
}

func TestLambdaScoping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Sibling iterations don't see each other's bindings.
		{"MAP([1, 2], x -> MAP([10], y -> x + y))", "[[11], [12]]"},
		// Parameters shadow document fields, and only inside the body.
		{"CONCAT(MAP([1], price -> price * 2), price)", `"29.5"`},
		{"MAP(table1, (row, i) -> row.a * 10 + i)", "[10, 31]"},
		{"MAP([1, 2], () -> 0)", "[0, 0]"},
		{"REDUCE(table1, (acc, row) -> acc + row.b, 0)", "6"},
	}
	for _, tt := range tests {
		evaluated := testEval(t, tt.input)
		if got := evaluated.Inspect(); got != tt.expected {
			t.Errorf("%s: got %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestNow(t *testing.T) {
	ev := eval.New(nil)
	ev.Now = func() time.Time { return time.Date(2031, 7, 4, 23, 30, 0, 0, time.FixedZone("X", -5*3600)) }
	res, err := ev.EvalString("[YEAR(NOW()), MONTH(NOW()), DAY(NOW()), HOUR(NOW())]", eval.NewMapContext(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// UTC calendar: 23:30 at -5h is 04:30 the next day.
	if res.Inspect() != "[2031, 7, 5, 4]" {
		t.Errorf("got %s", res.Inspect())
	}
}

func TestParseCache(t *testing.T) {
	ev := eval.New(nil)
	ctx := eval.NewMapContext(nil)
	for range 3 {
		if _, err := ev.EvalString("1 + 2", ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	hits, misses := ev.Cache().Stats()
	if hits != 2 || misses != 1 || ev.Cache().Len() != 1 {
		t.Errorf("cache hits %d misses %d len %d", hits, misses, ev.Cache().Len())
	}
	c := eval.NewParseCache(2)
	for _, code := range []string{"1", "2", "3"} {
		node, err := parser.Parse(code)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Set(code, node)
	}
	if c.Len() != 1 {
		t.Errorf("expected cache to start over when full, len %d", c.Len())
	}
	if _, ok := c.Get("3"); !ok {
		t.Errorf("expected last entry to be cached")
	}
}

// One evaluator per goroutine, sharing registry and parse cache.
func TestForkConcurrent(t *testing.T) {
	ev := eval.New(nil)
	const workers = 8
	results := make([]object.Value, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fork := ev.Fork()
			ctx := eval.NewMapContext(map[string]object.Value{
				"values": object.NewArray(object.Number{Value: 1}, object.Number{Value: 2}, object.Number{Value: 3}),
				"factor": object.Number{Value: float64(w)},
			})
			for range 50 {
				results[w], errs[w] = fork.EvalString("SUM(MAP(values, v -> v * factor))", ctx)
			}
		}()
	}
	wg.Wait()
	for w := range workers {
		if errs[w] != nil {
			t.Errorf("worker %d: %v", w, errs[w])
			continue
		}
		testNumberObject(t, fmt.Sprintf("worker %d", w), results[w], float64(6*w))
	}
}

// Every built-in rejects too few and too many arguments before evaluating any.
func TestArityLaw(t *testing.T) {
	r := boomRegistry(t)
	ev := eval.New(r)
	ctx := eval.NewMapContext(nil)
	call := func(name string, n int) string {
		args := make([]string, n)
		for i := range args {
			args[i] = "BOOM()"
		}
		return name + "(" + strings.Join(args, ", ") + ")"
	}
	for _, name := range r.Names() {
		b, _ := r.Info(name)
		if name == "BOOM" {
			continue
		}
		if b.MinArgs > 0 {
			_, err := ev.EvalString(call(name, b.MinArgs-1), ctx)
			if !errors.Is(err, object.ErrInvalidArguments) {
				t.Errorf("%s with %d arguments: expected invalid arguments, got %v", name, b.MinArgs-1, err)
			}
		}
		if b.MaxArgs >= 0 {
			_, err := ev.EvalString(call(name, b.MaxArgs+1), ctx)
			if !errors.Is(err, object.ErrInvalidArguments) {
				t.Errorf("%s with %d arguments: expected invalid arguments, got %v", name, b.MaxArgs+1, err)
			}
		}
	}
}
