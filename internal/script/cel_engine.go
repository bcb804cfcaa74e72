package script

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// celEngine is an Engine backed by google/cel-go, following the
// compile-then-eval shape of SharedCode-sop's cel.Evaluator: a fresh
// environment is built per Eval call because the set of bound variable
// names changes from step to step, but the compile/program/eval pipeline
// is the same one that Evaluator uses.
type celEngine struct {
	base map[string]any
}

// NewCELEngine returns the default Engine implementation.
func NewCELEngine() Engine {
	return &celEngine{base: map[string]any{}}
}

func (e *celEngine) Child(vars map[string]any) Engine {
	merged := make(map[string]any, len(e.base)+len(vars))
	for k, v := range e.base {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &celEngine{base: merged}
}

func (e *celEngine) Eval(ctx context.Context, text string, vars map[string]any) (any, error) {
	merged := make(map[string]any, len(e.base)+len(vars))
	for k, v := range e.base {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	opts := make([]cel.EnvOption, 0, len(merged)+1)
	for name, v := range merged {
		if !isValidCELIdent(name) {
			continue
		}
		if fn, ok := v.(Func1); ok {
			opts = append(opts, cel.Function(name,
				cel.Overload(name+"_overload", []*cel.Type{cel.DynType}, cel.DynType,
					cel.UnaryBinding(func(arg ref.Val) ref.Val {
						result, err := fn(arg.Value())
						if err != nil {
							return types.NewErr("%s: %v", name, err)
						}
						return types.DefaultTypeAdapter.NativeToValue(toCELValue(result))
					}),
				),
			))
			continue
		}
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("script: building environment: %w", err)
	}

	// Parse only: host objects dispatch member calls dynamically through
	// traits.Receiver (spec.md §9, "avoid reflection; provide explicit
	// dispatch tables"), which a static type-checked Compile would reject
	// for receivers whose methods aren't declared up front.
	ast, issues := env.Parse(text)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("script: parsing %q: %w", text, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("script: preparing program %q: %w", text, err)
	}

	activation := make(map[string]any, len(merged))
	for k, v := range merged {
		activation[k] = toCELValue(v)
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("script: evaluating %q: %w", text, err)
	}
	return fromCELValue(out), nil
}

func isValidCELIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// toCELValue prepares a Go value for the CEL activation map: HostObjects
// are wrapped so expressions can read their properties and invoke their
// methods; everything else is handed to CEL's default adapter as-is.
func toCELValue(v any) any {
	if ho, ok := v.(HostObject); ok {
		return &hostObjectVal{ho: ho}
	}
	return v
}

// fromCELValue unwraps a CEL evaluation result back into a JSON-compatible
// Go value (or the original HostObject, if the expression evaluated to one
// directly, e.g. `driver`).
func fromCELValue(v ref.Val) any {
	if hv, ok := v.(*hostObjectVal); ok {
		return hv.ho
	}
	return v.Value()
}

// hostObjectVal adapts a HostObject to CEL's ref.Val + traits.Mapper +
// traits.Receiver so that `request.method` (property read) and
// `request.pathMatches('/x')` (method invocation) both work without CEL
// needing to know the host type ahead of time (spec.md §9).
type hostObjectVal struct {
	ho HostObject
}

var _ ref.Val = (*hostObjectVal)(nil)
var _ traits.Mapper = (*hostObjectVal)(nil)
var _ traits.Receiver = (*hostObjectVal)(nil)

func (h *hostObjectVal) ConvertToNative(typeDesc interface{ Kind() int }) (interface{}, error) {
	return h.ho, nil
}

func (h *hostObjectVal) ConvertToType(typeValue ref.Type) ref.Val {
	if typeValue == types.MapType {
		return h
	}
	return types.NewErr("host object cannot convert to %v", typeValue)
}

func (h *hostObjectVal) Equal(other ref.Val) ref.Val {
	o, ok := other.(*hostObjectVal)
	return types.Bool(ok && o.ho == h.ho)
}

func (h *hostObjectVal) Type() ref.Type { return types.MapType }

func (h *hostObjectVal) Value() interface{} { return h.ho }

// Get implements traits.Indexer: `request['method']` and, through CEL's
// select-to-index rewrite for dynamic maps, `request.method`.
func (h *hostObjectVal) Get(index ref.Val) ref.Val {
	name, ok := index.Value().(string)
	if !ok {
		return types.NewErr("host object key must be a string, got %T", index.Value())
	}
	val, found := h.ho.GetProperty(name)
	if !found {
		return types.NewErr("no such property %q", name)
	}
	return types.DefaultTypeAdapter.NativeToValue(toCELValue(val))
}

// Contains implements traits.Container.
func (h *hostObjectVal) Contains(value ref.Val) ref.Val {
	name, ok := value.Value().(string)
	if !ok {
		return types.Bool(false)
	}
	_, found := h.ho.GetProperty(name)
	return types.Bool(found)
}

// Iterator implements traits.Iterable. Host objects are accessed by name,
// not enumerated, so this reports no elements.
func (h *hostObjectVal) Iterator() traits.Iterator { return emptyIterator{} }

// Size implements traits.Sizer.
func (h *hostObjectVal) Size() ref.Val { return types.Int(0) }

// Receive implements traits.Receiver: member-call dispatch for methods like
// `pathMatches(pattern)` or `header('Authorization')`.
func (h *hostObjectVal) Receive(function string, overload string, args []ref.Val) ref.Val {
	goArgs := make([]any, len(args))
	for i, a := range args {
		goArgs[i] = a.Value()
	}
	result, err := h.ho.Invoke(function, goArgs)
	if err != nil {
		return types.NewErr("%s: %v", function, err)
	}
	return types.DefaultTypeAdapter.NativeToValue(toCELValue(result))
}

type emptyIterator struct{}

func (emptyIterator) HasNext() ref.Val { return types.Bool(false) }
func (emptyIterator) Next() ref.Val    { return types.NewErr("iterator exhausted") }
