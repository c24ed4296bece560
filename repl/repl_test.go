package repl_test

import (
	"errors"
	"strings"
	"testing"

	"calcfield.io/calc/eval"
	"calcfield.io/calc/object"
	"calcfield.io/calc/repl"
	"github.com/hashicorp/go-multierror"
)

func TestEvalString(t *testing.T) {
	options := repl.Options{
		Fields: map[string]object.Value{
			"price": object.Number{Value: 9.5},
			"name":  object.String{Value: "widget"},
		},
	}
	s := `
// comment line
total := price * 2
UPPER(name)
total + 1
`
	expected := "19\n\"WIDGET\"\n20\n"
	if got, errs := repl.EvalString(options, s); got != expected || len(errs) > 0 {
		t.Errorf("EvalString() got %v\n---\n%s\n---want---\n%s\n---", errs, got, expected)
	}
	if _, found := options.Fields["total"]; !found {
		t.Errorf("Assignment should have added total to the fields: %v", options.Fields)
	}
}

func TestEvalStringParsingError(t *testing.T) {
	res, errs := repl.EvalString(repl.Options{}, `1 +`)
	if len(errs) != 1 {
		t.Fatalf("EvalString() got %v (res %q), expected 1 error", errs, res)
	}
	if res != "" {
		t.Errorf("EvalString() got %q on parse error, expected nothing", res)
	}
}

func TestEvalStringEvalError(t *testing.T) {
	res, errs := repl.EvalString(repl.Options{}, " y \n 1+1")
	if len(errs) != 1 {
		t.Fatalf("EvalString() got %v, expected 1 error", errs)
	}
	if !strings.Contains(errs[0], `"y"`) {
		t.Errorf("EvalString() error %q should name the missing field", errs[0])
	}
	if !strings.Contains(res, "<err: ") || !strings.HasSuffix(res, "2\n") {
		t.Errorf("EvalString() result %q, expected error line then 2", res)
	}
}

func TestShowParse(t *testing.T) {
	options := repl.Options{ShowParse: true, Fields: map[string]object.Value{"a": object.Number{Value: 1}}}
	res, errs := repl.EvalString(options, "a + 2 * 3")
	if len(errs) != 0 {
		t.Fatalf("EvalString() errors: %v", errs)
	}
	expected := "== Parse ==> (a + (2 * 3))\n== Refs  ==> a\n== Eval  ==> 7\n"
	if res != expected {
		t.Errorf("EvalString() got\n---\n%s\n---want---\n%s\n---", res, expected)
	}
}

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		line, name, formula string
	}{
		{"x := 1 + 2", "x", "1 + 2"},
		{"  total_2:=SUM(a)", "total_2", "SUM(a)"},
		{"1 + 2", "", "1 + 2"},
		{"2x := 3", "", "2x := 3"},
		{"a.b := 3", "", "a.b := 3"},
		{":= 3", "", ":= 3"},
	}
	for _, tt := range tests {
		name, formula := repl.SplitAssignment(tt.line)
		if name != tt.name || formula != tt.formula {
			t.Errorf("SplitAssignment(%q) = %q, %q; want %q, %q", tt.line, name, formula, tt.name, tt.formula)
		}
	}
}

func TestHelp(t *testing.T) {
	reg := eval.NewRegistry()
	out := &strings.Builder{}
	repl.Help(reg, out, "round")
	if got := out.String(); !strings.HasPrefix(got, "ROUND(n, digits=0)") {
		t.Errorf("Help(round) = %q", got)
	}
	out.Reset()
	repl.Help(reg, out, "summ")
	if got := out.String(); got != "Unknown function SUMM, did you mean SUM?\n" {
		t.Errorf("Help(summ) = %q", got)
	}
	out.Reset()
	repl.Help(reg, out, "")
	got := out.String()
	for _, want := range []string{"\nmath: ", "\nstring: ", "array: ", "Commands: "} {
		if !strings.Contains("\n"+got, want) {
			t.Errorf("Help() missing %q in\n%s", want, got)
		}
	}
}

func TestComplete(t *testing.T) {
	a := repl.NewFunctionCompletion(eval.NewRegistry())
	line, pos, choices := a.Complete("1 + sq", 6)
	if line != "1 + SQRT(" || pos != 9 || len(choices) != 1 {
		t.Errorf("Complete() = %q, %d, %v", line, pos, choices)
	}
	line, pos, choices = a.Complete("st) x", 2)
	if line != "STARTSWITH() x" || pos != 11 || len(choices) != 1 {
		t.Errorf("Complete() = %q, %d, %v", line, pos, choices)
	}
	line, pos, choices = a.Complete("zzz", 3)
	if line != "zzz" || pos != 3 || choices != nil {
		t.Errorf("Complete() = %q, %d, %v", line, pos, choices)
	}
	_, _, choices = a.Complete("date", 4)
	if len(choices) < 4 {
		t.Errorf("Complete(date) should offer DATE, DATEADD, DATEDIFF, DATESUBTRACT: %v", choices)
	}
}

func TestReadDocumentAndRows(t *testing.T) {
	doc, err := repl.ReadDocument(strings.NewReader(`{"rate": 0.5, "tags": ["a", "b"]}`))
	if err != nil {
		t.Fatalf("ReadDocument() error: %v", err)
	}
	if got := object.Dictionary(doc).Inspect(); got != `{"rate": 0.5, "tags": ["a", "b"]}` {
		t.Errorf("ReadDocument() = %s", got)
	}
	if _, err = repl.ReadRows(strings.NewReader(`{"not": "an array"}`)); err == nil {
		t.Errorf("ReadRows() on an object should fail")
	}
}

func TestEvalRows(t *testing.T) {
	rows, err := repl.ReadRows(strings.NewReader(`[
		{"qty": 2, "price": 1.5},
		{"qty": 3, "price": 2},
		{"qty": "x", "price": 1},
		4
	]`))
	if err != nil {
		t.Fatalf("ReadRows() error: %v", err)
	}
	options := repl.Options{
		Fields:            map[string]object.Value{"discount": object.Number{Value: 1}},
		ProgressThreshold: -1,
	}
	out := &strings.Builder{}
	err = repl.EvalRows(options, `IF(index == 3, row, qty * price - discount)`, rows, out)
	expected := "2\n5\n<err: "
	if !strings.HasPrefix(out.String(), expected) || !strings.HasSuffix(out.String(), ">\n4\n") {
		t.Errorf("EvalRows() output\n---\n%s\n---", out.String())
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 1 {
		t.Fatalf("EvalRows() error %v, expected one row failure", err)
	}
	if !errors.Is(err, object.ErrTypeMismatch) || !strings.HasPrefix(merr.Errors[0].Error(), "row 2: ") {
		t.Errorf("EvalRows() error %v, expected a type mismatch on row 2", merr.Errors[0])
	}
}

func TestEvalRowsParseError(t *testing.T) {
	err := repl.EvalRows(repl.Options{}, "qty *", nil, &strings.Builder{})
	if !errors.Is(err, object.ErrSyntax) {
		t.Errorf("EvalRows() error %v, expected a syntax error", err)
	}
}
