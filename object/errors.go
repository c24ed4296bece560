package object

import (
	"fmt"
	"strconv"
	"strings"
)

type ErrorKind uint8

const (
	Unknown ErrorKind = iota
	InvalidReference
	TypeMismatch
	InvalidArguments
	DivisionByZero
	UnknownFunction
	SyntaxError
)

var kindNames = [...]string{
	Unknown:          "unknown error",
	InvalidReference: "invalid reference",
	TypeMismatch:     "type mismatch",
	InvalidArguments: "invalid arguments",
	DivisionByZero:   "division by zero",
	UnknownFunction:  "unknown function",
	SyntaxError:      "syntax error",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "error kind " + strconv.Itoa(int(k))
}

// FormulaError is the structured error every evaluation failure is reported as.
// Only the fields relevant to the Kind are set.
type FormulaError struct {
	Kind     ErrorKind
	Function string // function being called, if any.
	Name     string // unresolved reference or unknown function name.
	Position int    // 1-based argument position (type mismatch) or byte offset (syntax error), 0 if unset.
	Index    int    // 0-based array element index within the argument, -1 if not applicable.
	Expected string
	Actual   string
	Reason   string
	Stack    []string // function calls in progress when the error escaped, innermost first.
	Err      error    // wrapped cause.
}

// Kind sentinels for use with errors.Is.
var (
	ErrUnknown          = &FormulaError{Kind: Unknown}
	ErrInvalidReference = &FormulaError{Kind: InvalidReference}
	ErrTypeMismatch     = &FormulaError{Kind: TypeMismatch}
	ErrInvalidArguments = &FormulaError{Kind: InvalidArguments}
	ErrDivisionByZero   = &FormulaError{Kind: DivisionByZero}
	ErrUnknownFunction  = &FormulaError{Kind: UnknownFunction}
	ErrSyntax           = &FormulaError{Kind: SyntaxError}
)

func (e *FormulaError) Error() string {
	out := strings.Builder{}
	if e.Function != "" {
		out.WriteString(e.Function)
		out.WriteString(": ")
	}
	out.WriteString(e.Kind.String())
	switch e.Kind {
	case InvalidReference, UnknownFunction:
		out.WriteString(" ")
		out.WriteString(strconv.Quote(e.Name))
	case TypeMismatch:
		if e.Position > 0 {
			out.WriteString(" at argument ")
			out.WriteString(strconv.Itoa(e.Position))
		}
		if e.Index >= 0 {
			out.WriteString(" element ")
			out.WriteString(strconv.Itoa(e.Index))
		}
		out.WriteString(": expected ")
		out.WriteString(e.Expected)
		out.WriteString(", got ")
		out.WriteString(e.Actual)
	case SyntaxError:
		out.WriteString(" at position ")
		out.WriteString(strconv.Itoa(e.Position))
	case Unknown, InvalidArguments, DivisionByZero:
	}
	if e.Reason != "" {
		out.WriteString(": ")
		out.WriteString(e.Reason)
	}
	if e.Err != nil {
		out.WriteString(": ")
		out.WriteString(e.Err.Error())
	}
	return out.String()
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}

// Is matches any FormulaError of the same Kind, so errors.Is(err, ErrTypeMismatch) works.
func (e *FormulaError) Is(target error) bool {
	t, ok := target.(*FormulaError)
	return ok && t.Kind == e.Kind
}

// Pretty returns the error message followed by the source with a caret under the
// error position, for syntax errors.
func (e *FormulaError) Pretty(source string) string {
	msg := e.Error()
	if e.Kind != SyntaxError {
		return msg
	}
	return msg + "\n" + source + "\n" + strings.Repeat(".", min(e.Position, len(source))) + "^"
}

// NewUnknown is for failures that fit no other kind: host panics, depth limit.
func NewUnknown(function, format string, args ...any) *FormulaError {
	return &FormulaError{Kind: Unknown, Function: function, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

func NewInvalidReference(name string) *FormulaError {
	return &FormulaError{Kind: InvalidReference, Name: name, Index: -1}
}

// NewTypeMismatch reports that argument position (1-based) of function was
// actual instead of expected.
func NewTypeMismatch(function string, position int, expected string, actual Value) *FormulaError {
	return &FormulaError{
		Kind: TypeMismatch, Function: function, Position: position, Index: -1,
		Expected: expected, Actual: Describe(actual),
	}
}

// NewElementTypeMismatch is NewTypeMismatch for element index of an array argument.
func NewElementTypeMismatch(function string, position, index int, expected string, actual Value) *FormulaError {
	e := NewTypeMismatch(function, position, expected, actual)
	e.Index = index
	return e
}

func NewInvalidArguments(function, format string, args ...any) *FormulaError {
	return &FormulaError{Kind: InvalidArguments, Function: function, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

// NewArityError is the InvalidArguments error for a wrong number of arguments.
func NewArityError(function string, minArgs, maxArgs, got int) *FormulaError {
	var expected string
	switch {
	case minArgs == maxArgs:
		expected = strconv.Itoa(minArgs)
	case maxArgs < 0:
		expected = "at least " + strconv.Itoa(minArgs)
	default:
		expected = strconv.Itoa(minArgs) + " to " + strconv.Itoa(maxArgs)
	}
	plural := "s"
	if minArgs == 1 && (maxArgs == 1 || maxArgs < 0) {
		plural = ""
	}
	return NewInvalidArguments(function, "expected %s argument%s, got %d", expected, plural, got)
}

func NewDivisionByZero(function string) *FormulaError {
	return &FormulaError{Kind: DivisionByZero, Function: function, Index: -1}
}

func NewUnknownFunction(name, suggestion string) *FormulaError {
	e := &FormulaError{Kind: UnknownFunction, Name: name, Index: -1}
	if suggestion != "" {
		e.Reason = "did you mean " + suggestion + "?"
	}
	return e
}

func NewSyntaxError(position int, format string, args ...any) *FormulaError {
	return &FormulaError{Kind: SyntaxError, Position: position, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

// Wrap turns any error into a FormulaError, as is if it already is one.
func Wrap(function string, err error) *FormulaError {
	if fe, ok := err.(*FormulaError); ok { //nolint:errorlint // we want the exact type, not a wrapped one.
		return fe
	}
	return &FormulaError{Kind: Unknown, Function: function, Index: -1, Err: err}
}
