// Package ast holds the parsed formula tree. There are four kinds of nodes:
// literals, references, function calls (operators included) and lambdas.
// Nodes are immutable once built and can be shared across evaluations.
package ast

import (
	"strings"
)

type Node interface {
	String() string // formula syntax representation of the node.
	astNode()
}

// Value is what a Literal holds. It is implemented by every object.Value,
// the indirection avoids an import cycle (object.Lambda holds a Node).
type Value interface {
	Inspect() string
}

type Literal struct {
	Value Value
}

type Reference struct {
	Name string // possibly dotted: row.a.b
}

type Call struct {
	Name string
	Args []Node
}

type Lambda struct {
	Parameters []string
	Body       Node
}

func (*Literal) astNode()   {}
func (*Reference) astNode() {}
func (*Call) astNode()      {}
func (*Lambda) astNode()    {}

func (l *Literal) String() string {
	return l.Value.Inspect()
}

func (r *Reference) String() string {
	return r.Name
}

// Functions the parser generates for operators, printed back in infix form.
var infixNames = map[string]string{
	"ADD":      "+",
	"SUBTRACT": "-",
	"MULTIPLY": "*",
	"DIVIDE":   "/",
	"MOD":      "%",
	"POW":      "^",
	"EQ":       "==",
	"NEQ":      "!=",
	"LT":       "<",
	"LTE":      "<=",
	"GT":       ">",
	"GTE":      ">=",
	"AND":      "&&",
	"OR":       "||",
}

// Operator returns the infix operator a binary call was parsed from, if any.
func Operator(name string) (string, bool) {
	op, ok := infixNames[strings.ToUpper(name)]
	return op, ok
}

func (c *Call) String() string {
	out := strings.Builder{}
	if op, ok := Operator(c.Name); ok && len(c.Args) == 2 {
		out.WriteString("(")
		out.WriteString(c.Args[0].String())
		out.WriteString(" ")
		out.WriteString(op)
		out.WriteString(" ")
		out.WriteString(c.Args[1].String())
		out.WriteString(")")
		return out.String()
	}
	switch {
	case c.Name == "NEGATE" && len(c.Args) == 1:
		return "-" + c.Args[0].String()
	case c.Name == "ARRAY":
		out.WriteString("[")
		WriteStrings(&out, c.Args, ", ")
		out.WriteString("]")
		return out.String()
	case c.Name == "INDEX" && len(c.Args) == 2:
		out.WriteString(c.Args[0].String())
		out.WriteString("[")
		out.WriteString(c.Args[1].String())
		out.WriteString("]")
		return out.String()
	}
	out.WriteString(c.Name)
	out.WriteString("(")
	WriteStrings(&out, c.Args, ", ")
	out.WriteString(")")
	return out.String()
}

func (l *Lambda) String() string {
	out := strings.Builder{}
	out.WriteString("(")
	out.WriteString(strings.Join(l.Parameters, ", "))
	out.WriteString(") -> ")
	out.WriteString(l.Body.String())
	return out.String()
}

func WriteStrings(out *strings.Builder, list []Node, sep string) {
	for i, p := range list {
		if i > 0 {
			out.WriteString(sep)
		}
		out.WriteString(p.String())
	}
}
