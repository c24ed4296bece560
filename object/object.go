// Package object is the runtime value model of the formula language.
package object

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"calcfield.io/calc/ast"
	"github.com/rivo/uniseg"
)

type Type uint8

type Value interface {
	Type() Type
	// Inspect returns the canonical, type distinguishing representation of the value.
	Inspect() string
}

const (
	UNKNOWN Type = iota
	NUMBER
	STRING
	BOOLEAN
	DATE
	ARRAY
	DICTIONARY
	NIL // null
	UNDEF
	ERROR
	LAMBDA
	LAST
)

var typeNames = [...]string{
	UNKNOWN:    "unknown",
	NUMBER:     "number",
	STRING:     "string",
	BOOLEAN:    "boolean",
	DATE:       "date",
	ARRAY:      "array",
	DICTIONARY: "dictionary",
	NIL:        "null",
	UNDEF:      "undefined",
	ERROR:      "error",
	LAMBDA:     "lambda",
	LAST:       "last",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

var (
	NULL      = Null{}
	UNDEFINED = Undefined{}
	TRUE      = Boolean{Value: true}
	FALSE     = Boolean{Value: false}
)

func NativeBoolToBooleanObject(input bool) Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// Equals is the native `==` of the language: values of different types are
// never equal and arrays and dictionaries are never equal to anything, not even
// to themselves.
func Equals(left, right Value) bool {
	if left.Type() != right.Type() {
		return false
	}
	switch left := left.(type) {
	case Number:
		return left.Value == right.(Number).Value
	case String:
		return left.Value == right.(String).Value
	case Boolean:
		return left.Value == right.(Boolean).Value
	case Date:
		return left.Value.Equal(right.(Date).Value)
	case Null, Undefined:
		return true
	default: // ARRAY DICTIONARY ERROR LAMBDA
		return false
	}
}

type Number struct {
	Value float64
}

func (n Number) Type() Type      { return NUMBER }
func (n Number) Inspect() string { return FormatNumber(n.Value) }

// FormatNumber renders integral values without decimals and others with the
// shortest representation that reads back to the same float64.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	case math.Abs(f) >= 1e21 || math.Abs(f) < 1e-7:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type String struct {
	Value string
}

func (s String) Type() Type      { return STRING }
func (s String) Inspect() string { return strconv.Quote(s.Value) }

type Boolean struct {
	Value bool
}

func (b Boolean) Type() Type      { return BOOLEAN }
func (b Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// DateLayout is ISO-8601 in UTC with millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

type Date struct {
	Value time.Time
}

// NewDate returns the UTC date value for t.
func NewDate(t time.Time) Date {
	return Date{Value: t.UTC()}
}

func (d Date) Type() Type      { return DATE }
func (d Date) Inspect() string { return "date(" + strconv.Quote(d.Value.UTC().Format(DateLayout)) + ")" }

type Array struct {
	Elements []Value
}

func NewArray(elements ...Value) Array {
	if elements == nil {
		elements = []Value{}
	}
	return Array{Elements: elements}
}

func (a Array) Type() Type { return ARRAY }
func (a Array) Inspect() string {
	out := strings.Builder{}
	WriteValues(&out, a.Elements, Value.Inspect, "[", ", ", "]")
	return out.String()
}

// WriteValues writes list with the given per element renderer.
func WriteValues(out *strings.Builder, list []Value, render func(Value) string, before, sep, after string) {
	out.WriteString(before)
	for i, p := range list {
		if i > 0 {
			out.WriteString(sep)
		}
		out.WriteString(render(p))
	}
	out.WriteString(after)
}

type Dictionary map[string]Value

func (d Dictionary) Type() Type { return DICTIONARY }
func (d Dictionary) Inspect() string {
	return d.write(func(k string) string { return strconv.Quote(k) }, Value.Inspect)
}

// Keys returns the dictionary keys in sorted order.
func (d Dictionary) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

func (d Dictionary) write(key func(string) string, render func(Value) string) string {
	out := strings.Builder{}
	out.WriteString("{")
	for i, k := range d.Keys() {
		if i != 0 {
			out.WriteString(", ")
		}
		out.WriteString(key(k))
		out.WriteString(": ")
		out.WriteString(render(d[k]))
	}
	out.WriteString("}")
	return out.String()
}

type Null struct{}

func (n Null) Type() Type      { return NIL }
func (n Null) Inspect() string { return "null" }

// Undefined is "not present", distinct from an explicit null.
type Undefined struct{}

func (u Undefined) Type() Type      { return UNDEF }
func (u Undefined) Inspect() string { return "undefined" }

// Error carries a FormulaError as a value, for hosts that store failed
// results in fields.
type Error struct {
	Err *FormulaError
}

func (e Error) Type() Type      { return ERROR }
func (e Error) Inspect() string { return "error(" + strconv.Quote(e.Err.Error()) + ")" }

// Lambda is an unevaluated body and its parameter names. It captures no
// environment: the function applying it supplies the context.
type Lambda struct {
	Parameters []string
	Body       ast.Node
}

func (l Lambda) Type() Type { return LAMBDA }
func (l Lambda) Inspect() string {
	return (&ast.Lambda{Parameters: l.Parameters, Body: l.Body}).String()
}

// ToString is the display form of a value: what TOSTRING and CONCAT produce.
func ToString(v Value) string {
	switch v := v.(type) {
	case String:
		return v.Value
	case Date:
		return v.Value.UTC().Format(DateLayout)
	case Null, Undefined:
		return ""
	case Error:
		return v.Err.Error()
	case Array:
		out := strings.Builder{}
		WriteValues(&out, v.Elements, ToString, "[", ", ", "]")
		return out.String()
	case Dictionary:
		return v.write(func(k string) string { return k }, ToString)
	default:
		return v.Inspect()
	}
}

// Describe is the human readable description of the runtime type of v used in
// type mismatch errors, e.g. `string "abc"`.
func Describe(v Value) string {
	switch v.Type() { //nolint:exhaustive // only those have a useful short value.
	case NUMBER, STRING, BOOLEAN, DATE:
		return v.Type().String() + " " + truncate(v.Inspect(), 40)
	case ARRAY:
		return "array of " + strconv.Itoa(len(v.(Array).Elements)) + " elements"
	default:
		return v.Type().String()
	}
}

// truncate cuts s to at most maxLen user perceived characters, ending with "...".
func truncate(s string, maxLen int) string {
	g := uniseg.NewGraphemes(s)
	n, cut := 0, 0
	for g.Next() {
		n++
		if n == maxLen-3 {
			_, cut = g.Positions()
		}
		if n > maxLen {
			return s[:cut] + "..."
		}
	}
	return s
}
