package eval

import (
	"strconv"
	"strings"

	"calcfield.io/calc/object"
)

// Context is what names are visible at a point of the evaluation. Contexts
// are never mutated: With returns a new context that shadows name and falls
// back to the receiver for everything else.
type Context interface {
	Resolve(name string) (object.Value, error)
	With(name string, value object.Value) Context
}

// MapContext is the root context over the fields of a document.
type MapContext struct {
	fields map[string]object.Value
}

// NewMapContext returns a root context over fields. The map must not be
// changed while the context is in use.
func NewMapContext(fields map[string]object.Value) *MapContext {
	if fields == nil {
		fields = map[string]object.Value{}
	}
	return &MapContext{fields: fields}
}

func (m *MapContext) Resolve(name string) (object.Value, error) {
	head, rest := splitReference(name)
	v, ok := m.fields[head]
	if !ok {
		// Fields can themselves have dots in their name.
		if v, ok = m.fields[name]; ok {
			return v, nil
		}
		return nil, object.NewInvalidReference(name)
	}
	return walk(name, v, rest)
}

func (m *MapContext) With(name string, value object.Value) Context {
	return &binding{name: name, value: value, parent: m}
}

// Fields returns the sorted names of the document fields.
func (m *MapContext) Fields() []string {
	return object.Dictionary(m.fields).Keys()
}

// binding is one cell of the persistent list of lambda parameters.
type binding struct {
	name   string
	value  object.Value
	parent Context
}

func (b *binding) Resolve(name string) (object.Value, error) {
	head, rest := splitReference(name)
	if head != b.name {
		return b.parent.Resolve(name)
	}
	return walk(name, b.value, rest)
}

func (b *binding) With(name string, value object.Value) Context {
	return &binding{name: name, value: value, parent: b}
}

func splitReference(name string) (string, string) {
	head, rest, _ := strings.Cut(name, ".")
	return head, rest
}

// walk follows the dotted path from v.
func walk(name string, v object.Value, path string) (object.Value, error) {
	for path != "" {
		var seg string
		seg, path, _ = strings.Cut(path, ".")
		next, ok := Member(v, seg)
		if !ok {
			e := object.NewInvalidReference(name)
			e.Reason = object.Describe(v) + " has no member " + strconv.Quote(seg)
			return nil, e
		}
		v = next
	}
	return v, nil
}

// Member is v.key: dictionary entry (undefined when missing), array element
// for a numeric key (negative counts from the end, null when out of range)
// or else the key projected over the dictionaries of the array. Null and
// undefined have every member, as undefined. Other types have none and
// return false.
func Member(v object.Value, key string) (object.Value, bool) {
	switch v := v.(type) {
	case object.Dictionary:
		e, ok := v[key]
		if !ok {
			return object.UNDEFINED, true
		}
		return e, true
	case object.Array:
		if i, err := strconv.Atoi(key); err == nil {
			return element(v, i), true
		}
		res := make([]object.Value, 0, len(v.Elements))
		for _, e := range v.Elements {
			if d, ok := e.(object.Dictionary); ok {
				if m, found := d[key]; found {
					res = append(res, m)
					continue
				}
			}
			res = append(res, object.UNDEFINED)
		}
		return object.NewArray(res...), true
	case object.Null, object.Undefined:
		return object.UNDEFINED, true
	default:
		return nil, false
	}
}

func element(a object.Array, i int) object.Value {
	if i < 0 {
		i += len(a.Elements)
	}
	if i < 0 || i >= len(a.Elements) {
		return object.NULL
	}
	return a.Elements[i]
}
