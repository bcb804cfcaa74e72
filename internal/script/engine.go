// Package script wraps an embeddable expression evaluator behind a small
// interface so the execution core never depends on a specific scripting
// technology (spec.md §1: "the embedded script engine... is out of scope").
// The concrete implementation (cel_engine.go) uses google/cel-go, grounded
// in SharedCode-sop's cel.Evaluator (compile once, Eval(vars) many times).
package script

import "context"

// Engine evaluates expressions and snippets against a set of bound
// variables. It owns no scenario state (spec.md §2): every Eval call is
// given the full variable set it should see.
type Engine interface {
	// Eval evaluates text against vars and returns a JSON-compatible value
	// (nil/bool/float64/string/[]any/map[string]any) or an opaque host
	// object implementing HostObject.
	Eval(ctx context.Context, text string, vars map[string]any) (any, error)

	// Child returns a new Engine that inherits vars as its base environment;
	// used when a scenario is invoked as a called feature (spec.md §4.3
	// step 2: "the engine is a child of the caller's").
	Child(vars map[string]any) Engine
}

// HostObject is the capability set host values (HTTP request/response,
// driver, session, csrf token...) expose to expressions, per spec.md §9:
// "model this as a polymorphic capability set {getProperty, setProperty,
// invoke}... avoid reflection; provide explicit dispatch tables."
type HostObject interface {
	GetProperty(name string) (any, bool)
	SetProperty(name string, value any) error
	Invoke(method string, args []any) (any, error)
}
