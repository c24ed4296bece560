package token

import (
	"testing"

	"fortio.org/sets"
)

func TestLookup(t *testing.T) {
	if tt := LookupIdent("true"); tt != TRUE {
		t.Errorf("LookupIdent(true) returned %v, expected TRUE", tt)
	}
	if tt := LookupIdent("undefined"); tt != UNDEFINED {
		t.Errorf("LookupIdent(undefined) returned %v, expected UNDEFINED", tt)
	}
	if tt := LookupIdent("True"); tt != IDENT {
		t.Errorf("LookupIdent(True) returned %v, keywords are case sensitive", tt)
	}
	if tt := LookupIdent("text1"); tt != IDENT {
		t.Errorf("LookupIdent(text1) returned %v, expected IDENT", tt)
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		op       string
		expected Type
	}{
		{"->", ARROW},
		{"=>", ARROW},
		{"==", EQ},
		{"=", EQ},
		{"<>", NOTEQ},
		{"&&", AND},
		{"^", CARET},
	}
	for _, tt := range tests {
		got, ok := LookupOperator(tt.op)
		if !ok || got != tt.expected {
			t.Errorf("LookupOperator(%q) = %v, %v; expected %v", tt.op, got, ok, tt.expected)
		}
	}
	if _, ok := LookupOperator("=<"); ok {
		t.Errorf("LookupOperator(=<) should not be an operator")
	}
}

func TestInfo(t *testing.T) {
	i := Info()
	if !i.Keywords.Has("null") {
		t.Errorf("null should be a keyword: %v", sets.Sort(i.Keywords))
	}
	if !i.Operators.Has("->") || i.Operators.Has("@") {
		t.Errorf("unexpected operators: %v", sets.Sort(i.Operators))
	}
}

func TestTypeString(t *testing.T) {
	for tt := ILLEGAL; tt <= LAST; tt++ {
		if tt.String() == "" || tt.String() == "Type(?)" {
			t.Errorf("missing name for token type %d", tt)
		}
	}
}
