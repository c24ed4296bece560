package eval

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/lexer"
	"calcfield.io/calc/object"
	"github.com/agext/levenshtein"
)

// Builtin describes a function to add to a registry with Create.
type Builtin struct {
	Name     string // Name to make the function available as, case insensitive.
	MinArgs  int
	MaxArgs  int    // Maximum number of arguments allowed. -1 for unlimited.
	Help     string // Optional help text, usage first: "ROUND(n, digits=0)".
	Category string // Optional group for listings, e.g. "math".
	Callback Function
}

// Registry maps upper cased names to functions. It is read only once
// evaluations start and can then be shared by concurrent evaluators.
type Registry struct {
	functions map[string]Builtin
}

// NewRegistry returns a registry with the default library.
func NewRegistry() *Registry {
	r := NewBlankRegistry()
	registerLogical(r)
	registerOperators(r)
	registerStrings(r)
	registerMath(r)
	registerDates(r)
	registerArrays(r)
	return r
}

// NewBlankRegistry returns a registry without any function.
func NewBlankRegistry() *Registry {
	return &Registry{functions: make(map[string]Builtin)}
}

// Register adds or replaces the function for name, with no arity check.
func (r *Registry) Register(name string, fn Function) {
	name = strings.ToUpper(name)
	r.functions[name] = Builtin{Name: name, MinArgs: 0, MaxArgs: -1, Callback: fn}
}

// Create validates b and registers it, wrapping the callback with the
// argument count check. Last registration for a name wins.
func (r *Registry) Create(b Builtin) error {
	if b.Name == "" {
		return errors.New("empty function name")
	}
	if b.Callback == nil {
		return errors.New("nil callback for " + b.Name)
	}
	if b.MinArgs < 0 {
		return errors.New("negative min args for " + b.Name)
	}
	if b.MaxArgs != -1 && b.MaxArgs < b.MinArgs {
		return errors.New("max args less than min args for " + b.Name)
	}
	for i := range len(b.Name) {
		if !lexer.IsAlphaNum(b.Name[i]) || (i == 0 && b.Name[0] >= '0' && b.Name[0] <= '9') {
			return errors.New("invalid function name " + b.Name)
		}
	}
	b.Name = strings.ToUpper(b.Name)
	if b.MinArgs > 0 || b.MaxArgs != -1 {
		callback, minArgs, maxArgs := b.Callback, b.MinArgs, b.MaxArgs
		b.Callback = func(ev *Evaluator, ctx Context, name string, args []ast.Node) (object.Value, error) {
			if len(args) < minArgs || (maxArgs != -1 && len(args) > maxArgs) {
				return nil, object.NewArityError(name, minArgs, maxArgs, len(args))
			}
			return callback(ev, ctx, name, args)
		}
	}
	r.functions[b.Name] = b
	return nil
}

// MustCreate is Create for static tables, panics on invalid definitions.
func (r *Registry) MustCreate(b Builtin) {
	if err := r.Create(b); err != nil {
		panic(err)
	}
}

// Lookup is case insensitive.
func (r *Registry) Lookup(name string) (Function, bool) {
	b, ok := r.functions[strings.ToUpper(name)]
	return b.Callback, ok
}

// Info returns the definition of name, for help.
func (r *Registry) Info(name string) (Builtin, bool) {
	b, ok := r.functions[strings.ToUpper(name)]
	return b, ok
}

// Names returns the sorted names of all the functions.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.functions))
}

func (r *Registry) Len() int {
	return len(r.functions)
}

// Clone returns a copy that can be extended without changing r.
func (r *Registry) Clone() *Registry {
	return &Registry{functions: maps.Clone(r.functions)}
}

// Suggest returns the closest known function name to name, or "" when
// nothing is close enough to be a likely typo.
func (r *Registry) Suggest(name string) string {
	name = strings.ToUpper(name)
	best, bestDist := "", len(name)/2+1
	for _, candidate := range r.Names() {
		d := levenshtein.Distance(name, candidate, nil)
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
