package object_test

import (
	"errors"
	"math"
	"runtime/debug"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"calcfield.io/calc/object"
)

func TestEqualsNoCoercionNoDeepEquality(t *testing.T) {
	one := object.Number{Value: 1}
	arr := object.NewArray(one)
	dict := object.Dictionary{"a": one}
	d1 := object.NewDate(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	d2 := object.NewDate(time.Date(2024, 3, 15, 1, 0, 0, 0, time.FixedZone("X", 3600)))
	tests := []struct {
		left, right object.Value
		expected    bool
	}{
		{one, object.Number{Value: 1}, true},
		{one, object.TRUE, false},
		{one, object.String{Value: "1"}, false},
		{object.String{Value: "a"}, object.String{Value: "a"}, true},
		{object.NULL, object.NULL, true},
		{object.UNDEFINED, object.UNDEFINED, true},
		{object.NULL, object.UNDEFINED, false},
		{d1, d2, true},
		{arr, arr, false},
		{object.NewArray(), object.NewArray(), false},
		{dict, object.Dictionary{"a": one}, false},
		{arr, object.NULL, false},
	}
	for _, tt := range tests {
		if got := object.Equals(tt.left, tt.right); got != tt.expected {
			t.Errorf("Equals(%s, %s) = %v, expected %v", tt.left.Inspect(), tt.right.Inspect(), got, tt.expected)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{42, "42"},
		{-7, "-7"},
		{3.33, "3.33"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e21, "1e+21"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := object.FormatNumber(tt.input); got != tt.expected {
			t.Errorf("FormatNumber(%v) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestToStringAndInspect(t *testing.T) {
	date := object.NewDate(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))
	arr := object.NewArray(object.Number{Value: 1}, object.String{Value: "a"}, object.NULL)
	dict := object.Dictionary{"b": object.TRUE, "a": object.Number{Value: 2}}
	tests := []struct {
		value   object.Value
		str     string
		inspect string
	}{
		{object.String{Value: "x"}, "x", `"x"`},
		{object.Number{Value: 1}, "1", "1"},
		{object.FALSE, "false", "false"},
		{object.NULL, "", "null"},
		{object.UNDEFINED, "", "undefined"},
		{date, "2024-03-15T10:30:00.000Z", `date("2024-03-15T10:30:00.000Z")`},
		{arr, "[1, a, ]", `[1, "a", null]`},
		{dict, "{a: 2, b: true}", `{"a": 2, "b": true}`},
	}
	for _, tt := range tests {
		if got := object.ToString(tt.value); got != tt.str {
			t.Errorf("ToString(%#v) = %q, expected %q", tt.value, got, tt.str)
		}
		if got := tt.value.Inspect(); got != tt.inspect {
			t.Errorf("Inspect(%#v) = %q, expected %q", tt.value, got, tt.inspect)
		}
	}
}

func TestFromGoUnwrap(t *testing.T) {
	in := map[string]any{
		"n":    3,
		"f":    2.5,
		"s":    "str",
		"b":    true,
		"nil":  nil,
		"arr":  []any{1, "x"},
		"dict": map[string]any{"k": int64(4)},
	}
	d, err := object.MapFromGo(in)
	if err != nil {
		t.Fatalf("MapFromGo: %v", err)
	}
	if d["n"] != (object.Number{Value: 3}) {
		t.Errorf("n = %#v", d["n"])
	}
	if d["nil"] != object.NULL {
		t.Errorf("nil = %#v", d["nil"])
	}
	if got := d["arr"].Inspect(); got != `[1, "x"]` {
		t.Errorf("arr = %s", got)
	}
	back := object.Unwrap(d).(map[string]any)
	if back["s"] != "str" || back["n"] != 3.0 || back["nil"] != nil {
		t.Errorf("Unwrap round trip mismatch: %#v", back)
	}
	if _, err = object.FromGo(uint64(math.MaxUint64)); err == nil {
		t.Errorf("expected error for integer not representable as float64")
	}
	if _, err = object.FromGo(struct{}{}); err == nil {
		t.Errorf("expected error for unsupported type")
	}
}

func TestFormulaErrors(t *testing.T) {
	err := error(object.NewElementTypeMismatch("SUM", 1, 2, "number", object.String{Value: "abc"}))
	if !errors.Is(err, object.ErrTypeMismatch) {
		t.Errorf("expected type mismatch kind: %v", err)
	}
	if errors.Is(err, object.ErrDivisionByZero) {
		t.Errorf("should not match division by zero: %v", err)
	}
	expected := `SUM: type mismatch at argument 1 element 2: expected number, got string "abc"`
	if err.Error() != expected {
		t.Errorf("got %q, expected %q", err.Error(), expected)
	}
	arity := object.NewArityError("ROUND", 1, 2, 3)
	if arity.Error() != "ROUND: invalid arguments: expected 1 to 2 arguments, got 3" {
		t.Errorf("unexpected arity message %q", arity.Error())
	}
	if got := object.NewArityError("NOT", 1, 1, 0).Error(); got != "NOT: invalid arguments: expected 1 argument, got 0" {
		t.Errorf("unexpected arity message %q", got)
	}
	cause := errors.New("boom")
	wrapped := object.Wrap("HOSTFN", cause)
	if !errors.Is(wrapped, cause) || wrapped.Kind != object.Unknown {
		t.Errorf("wrap should keep the cause: %v", wrapped)
	}
	if object.Wrap("X", arity) != arity {
		t.Errorf("wrapping a FormulaError should return it as is")
	}
	syntax := object.NewSyntaxError(4, "unexpected %q", ")")
	pretty := syntax.Pretty("1 + )")
	if !strings.HasSuffix(pretty, "\n1 + )\n....^") {
		t.Errorf("unexpected pretty error:\n%s", pretty)
	}
}

func TestDescribe(t *testing.T) {
	accent := "e\u0301" // two runes, one character.
	tests := []struct {
		v        object.Value
		expected string
	}{
		{object.Number{Value: 1.5}, "number 1.5"},
		{object.String{Value: "abc"}, `string "abc"`},
		{object.String{Value: strings.Repeat("x", 38)}, `string "` + strings.Repeat("x", 38) + `"`},
		{object.String{Value: strings.Repeat("x", 39)}, `string "` + strings.Repeat("x", 36) + "..."},
		{object.String{Value: strings.Repeat("é", 50)}, `string "` + strings.Repeat("é", 36) + "..."},
		{object.String{Value: strings.Repeat(accent, 50)}, `string "` + strings.Repeat(accent, 36) + "..."},
		{object.NewArray(object.TRUE, object.NULL), "array of 2 elements"},
		{object.NULL, "null"},
	}
	for _, tt := range tests {
		got := object.Describe(tt.v)
		if got != tt.expected {
			t.Errorf("Describe(%s) = %q, expected %q", tt.v.Inspect(), got, tt.expected)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Describe(%s) = %q is not valid utf-8", tt.v.Inspect(), got)
		}
	}
}

func TestMakeValueSlice(t *testing.T) {
	s, err := object.MakeValueSlice("FLAT", 10)
	if err != nil || cap(s) != 10 || len(s) != 0 {
		t.Errorf("MakeValueSlice(10) = %d/%d, %v", len(s), cap(s), err)
	}
	old := debug.SetMemoryLimit(1 << 30)
	defer debug.SetMemoryLimit(old)
	if _, err = object.MakeValueSlice("FLAT", 1<<30); err == nil {
		t.Errorf("expected an error for a slice over the memory limit")
	}
}
