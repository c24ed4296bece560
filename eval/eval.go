// Package eval is the tree walking evaluator of formulas, its contexts and the
// registry of built-in functions.
package eval

import (
	"fmt"
	"strings"
	"time"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/object"
	"calcfield.io/calc/parser"
	"fortio.org/log"
)

// Approximate maximum depth of nested calls (lambda bodies included) before
// evaluation fails instead of overflowing the goroutine stack.
const DefaultMaxDepth = 10_000

// Function is the calling convention of every built-in: it receives the
// unevaluated argument nodes and decides what to evaluate, in which order
// and with which context. name is the upper cased name it was called as.
type Function func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error)

// Evaluator is not safe for concurrent use, use Fork to get one per goroutine.
type Evaluator struct {
	Registry *Registry
	// Max depth / recursion level - default DefaultMaxDepth.
	MaxDepth int
	// Now is the clock for NOW(), time.Now by default.
	Now   func() time.Time
	depth int
	stack []string // names of the calls in progress, outermost first.
	cache *ParseCache
}

// New returns an evaluator using reg, the default library if nil.
func New(reg *Registry) *Evaluator {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Evaluator{
		Registry: reg,
		MaxDepth: DefaultMaxDepth,
		Now:      time.Now,
		cache:    NewParseCache(DefaultCacheSize),
	}
}

// Fork returns an evaluator sharing registry, clock and parse cache with ev
// but with its own call stack.
func (ev *Evaluator) Fork() *Evaluator {
	return &Evaluator{
		Registry: ev.Registry,
		MaxDepth: ev.MaxDepth,
		Now:      ev.Now,
		cache:    ev.cache,
	}
}

// Evaluate is the top level entry point: evaluates node against ctx and never
// panics, a panicking host function turns into an unknown error.
func (ev *Evaluator) Evaluate(node ast.Node, ctx Context) (res object.Value, err error) {
	ev.Reset()
	defer func() {
		if r := recover(); r != nil {
			log.Errf("Evaluate of %s panicked: %v", node, r)
			fe := object.NewUnknown("", "panic: %v", r)
			fe.Stack = ev.Stack()
			res, err = nil, fe
			ev.Reset()
		}
	}()
	return ev.Eval(node, ctx)
}

// EvalString parses code, through the parse cache, and evaluates it.
func (ev *Evaluator) EvalString(code string, ctx Context) (object.Value, error) {
	node, err := ev.Parse(code)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(node, ctx)
}

// Parse returns the tree for code, from the cache when it was already parsed.
func (ev *Evaluator) Parse(code string) (ast.Node, error) {
	if node, ok := ev.cache.Get(code); ok {
		return node, nil
	}
	node, err := parser.Parse(code)
	if err != nil {
		return nil, err
	}
	ev.cache.Set(code, node)
	return node, nil
}

// Reset the depth and call stack, post error or panic.
func (ev *Evaluator) Reset() {
	ev.depth = 0
	ev.stack = ev.stack[:0]
}

// Eval is the recursive evaluation used by functions for their arguments.
func (ev *Evaluator) Eval(node ast.Node, ctx Context) (object.Value, error) {
	if ev.depth >= ev.MaxDepth {
		log.LogVf("max depth %d reached", ev.MaxDepth)
		e := object.NewUnknown("", "max depth %d exceeded", ev.MaxDepth)
		e.Stack = ev.Stack()
		return nil, e
	}
	ev.depth++
	res, err := ev.evalInternal(node, ctx)
	ev.depth--
	return res, err
}

func (ev *Evaluator) evalInternal(node ast.Node, ctx Context) (object.Value, error) {
	switch node := node.(type) {
	case *ast.Literal:
		v, ok := node.Value.(object.Value)
		if !ok {
			return nil, object.NewUnknown("", "invalid literal %T", node.Value)
		}
		return v, nil
	case *ast.Reference:
		return ctx.Resolve(node.Name)
	case *ast.Lambda:
		return object.Lambda{Parameters: node.Parameters, Body: node.Body}, nil
	case *ast.Call:
		return ev.call(node, ctx)
	case nil:
		return nil, object.NewUnknown("", "nil node")
	}
	return nil, object.NewUnknown("", "unknown node type: %T", node)
}

func (ev *Evaluator) call(node *ast.Call, ctx Context) (object.Value, error) {
	name := strings.ToUpper(node.Name)
	fn, ok := ev.Registry.Lookup(name)
	if !ok {
		e := object.NewUnknownFunction(node.Name, ev.Registry.Suggest(name))
		e.Stack = ev.Stack()
		return nil, e
	}
	ev.stack = append(ev.stack, name)
	res, err := fn(ev, ctx, name, node.Args)
	if err == nil && res == nil {
		err = object.NewUnknown(name, "no result")
	}
	if err != nil {
		fe := object.Wrap(name, err)
		if fe.Stack == nil {
			fe.Stack = ev.Stack()
		}
		err = fe
		res = nil
	}
	ev.stack = ev.stack[:len(ev.stack)-1]
	return res, err
}

// String representation of an evaluator, for debugging.
func (ev *Evaluator) String() string {
	return fmt.Sprintf("Evaluator{depth: %d/%d, stack: %v, functions: %d}",
		ev.depth, ev.MaxDepth, ev.stack, ev.Registry.Len())
}
