package script

import "fmt"

// MapObject is the simplest HostObject: a flat property bag with no
// invokable methods, used for things like a scenario's `responseHeaders`
// or `pathParams` map when callers need HostObject semantics (e.g. to hand
// it through Child/Eval uniformly) rather than a plain map[string]any.
type MapObject struct {
	values map[string]any
}

// NewMapObject wraps an existing map without copying it.
func NewMapObject(values map[string]any) *MapObject {
	if values == nil {
		values = map[string]any{}
	}
	return &MapObject{values: values}
}

func (m *MapObject) GetProperty(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m *MapObject) SetProperty(name string, value any) error {
	m.values[name] = value
	return nil
}

func (m *MapObject) Invoke(method string, args []any) (any, error) {
	return nil, fmt.Errorf("map object has no method %q", method)
}

// Dump returns the underlying map, e.g. for JUnit/TUI rendering.
func (m *MapObject) Dump() map[string]any { return m.values }

// Func1 is a bound one-argument callable exposed to expressions as a bare
// global function rather than a receiver method, e.g. a mock predicate's
// `pathMatches('/users/{id}')` alongside `request.pathMatches(...)` (spec.md
// §4.7, §8 concrete scenario 5).
type Func1 func(arg any) (any, error)

// DispatchObject is a HostObject built from explicit getter/setter/method
// tables rather than reflection, matching spec.md §9's dispatch-table
// requirement. Concrete host objects (HTTP request/response, driver,
// session) embed one of these and populate its tables in their
// constructors instead of hand-writing GetProperty/Invoke switches.
type DispatchObject struct {
	Getters map[string]func() (any, bool)
	Setters map[string]func(any) error
	Methods map[string]func(args []any) (any, error)
}

func NewDispatchObject() *DispatchObject {
	return &DispatchObject{
		Getters: map[string]func() (any, bool){},
		Setters: map[string]func(any) error{},
		Methods: map[string]func(args []any) (any, error){},
	}
}

func (d *DispatchObject) GetProperty(name string) (any, bool) {
	fn, ok := d.Getters[name]
	if !ok {
		return nil, false
	}
	return fn()
}

func (d *DispatchObject) SetProperty(name string, value any) error {
	fn, ok := d.Setters[name]
	if !ok {
		return fmt.Errorf("property %q is not settable", name)
	}
	return fn(value)
}

func (d *DispatchObject) Invoke(method string, args []any) (any, error) {
	fn, ok := d.Methods[method]
	if !ok {
		return nil, fmt.Errorf("no such method %q", method)
	}
	return fn(args)
}
