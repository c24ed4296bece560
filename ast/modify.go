package ast

import (
	"strings"

	"fortio.org/log"
	"fortio.org/sets"
)

// Walk calls f for node and then, while f returns true, for its children in order.
func Walk(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	switch node := node.(type) {
	case *Call:
		for _, arg := range node.Args {
			Walk(arg, f)
		}
	case *Lambda:
		Walk(node.Body, f)
	case *Literal, *Reference:
		// leaves.
	default:
		log.LogVf("Walk: unexpected node type %T", node)
	}
}

// References returns the sorted, de-duplicated names of the document fields a
// formula depends on: the first segment of every reference that isn't bound by an
// enclosing lambda parameter. Hosts use it to know which formulas to recompute
// when a field changes.
func References(node Node) []string {
	names := sets.New[string]()
	collectReferences(node, sets.New[string](), names)
	return sets.Sort(names)
}

func collectReferences(node Node, bound, names sets.Set[string]) {
	switch node := node.(type) {
	case *Reference:
		head, _, _ := strings.Cut(node.Name, ".")
		if !bound.Has(head) {
			names.Add(head)
		}
	case *Call:
		for _, arg := range node.Args {
			collectReferences(arg, bound, names)
		}
	case *Lambda:
		inner := bound.Clone()
		inner.Add(node.Parameters...)
		collectReferences(node.Body, inner, names)
	}
}
