// Package engine implements the execution core: VariableScope, StepExecutor,
// ScenarioRuntime, CallRegistry, LockManager, SuiteRunner, and MockDispatcher
// (spec.md §2). It depends on model for the parsed Feature/Scenario/Step
// types and on script for expression evaluation; it never depends on a
// concrete HTTP client or browser driver, only on the HostObject capability
// set those subsystems would implement.
package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// VariableScope is a per-scenario name→value mapping layered over feature
// and config defaults (spec.md §3, §4.1). Three layers, checked in order:
// scenario-local shadows feature-default shadows config. Assignment always
// writes to scenario-local; config and feature layers are immutable from the
// scenario's perspective, following the read-then-layered-override shape of
// falcon's VariableStore (session shadows global).
type VariableScope struct {
	mu       sync.RWMutex
	config   map[string]any
	feature  map[string]any
	scenario map[string]any
}

// NewVariableScope builds a scope over immutable config and feature-default
// layers. config and feature maps are not copied; callers must not mutate
// them after handing them to the scope.
func NewVariableScope(config, feature map[string]any) *VariableScope {
	if config == nil {
		config = map[string]any{}
	}
	if feature == nil {
		feature = map[string]any{}
	}
	return &VariableScope{
		config:   config,
		feature:  feature,
		scenario: map[string]any{},
	}
}

// Get resolves name against scenario, then feature, then config layers.
func (s *VariableScope) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.scenario[name]; ok {
		return v, true
	}
	if v, ok := s.feature[name]; ok {
		return v, true
	}
	if v, ok := s.config[name]; ok {
		return v, true
	}
	return nil, false
}

// Set always writes to the scenario-local layer.
func (s *VariableScope) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario[name] = value
}

// ScopeSnapshot is an opaque value that Restore can bring a scope back to.
// It holds copies of all three layers so that later mutation of the live
// scope never corrupts a previously taken snapshot.
type ScopeSnapshot struct {
	config   map[string]any
	feature  map[string]any
	scenario map[string]any
}

// Snapshot captures the full visible state (spec.md §4.1: "produce a value
// that, when restored, exactly recreates the visible state").
func (s *VariableScope) Snapshot() ScopeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ScopeSnapshot{
		config:   cloneShallowMap(s.config),
		feature:  cloneShallowMap(s.feature),
		scenario: cloneShallowMap(s.scenario),
	}
}

// Restore replaces the scope's visible state with a prior snapshot.
func (s *VariableScope) Restore(snap ScopeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cloneShallowMap(snap.config)
	s.feature = cloneShallowMap(snap.feature)
	s.scenario = cloneShallowMap(snap.scenario)
}

// ResultVariables returns a flattened, merged view of the scope (config and
// feature layers underneath scenario overrides) suitable for a
// ScenarioResult.resultVariables snapshot or for seeding a callee's scope.
func (s *VariableScope) ResultVariables() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.config)+len(s.feature)+len(s.scenario))
	for k, v := range s.config {
		out[k] = v
	}
	for k, v := range s.feature {
		out[k] = v
	}
	for k, v := range s.scenario {
		out[k] = v
	}
	return out
}

// DeepCopyOf implements the `copy` keyword: a recursive clone of the named
// value taken at read time, so later mutation of the source is invisible
// (spec.md §3, §8 "deep-copy semantics"). Host handles are not JSON-like
// values and are returned by reference, since they own OS resources
// (spec.md §4.1).
func (s *VariableScope) DeepCopyOf(name string) (any, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("copy: no such variable %q", name)
	}
	return DeepCopy(v)
}

// DeepCopy recursively clones a JSON-like value tree (spec.md §9). Cycles in
// user data are rejected with an error rather than handled, since a
// JSON-compatible value graph is never supposed to contain one.
func DeepCopy(v any) (any, error) {
	return deepCopyVisit(v, map[uintptr]bool{})
}

// deepCopyVisit walks v, tracking the container pointers on the current
// recursion path in seen so a value that contains itself (directly or
// through a child) is rejected rather than recursed into forever. seen is
// path-scoped (entries are removed on the way back out), so the same map or
// slice reachable twice via unrelated branches is not mistaken for a cycle.
func deepCopyVisit(v any, seen map[uintptr]bool) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(val).Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return nil, fmt.Errorf("copy: cyclic value detected")
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			cloned, err := deepCopyVisit(item, seen)
			if err != nil {
				return nil, err
			}
			out[k] = cloned
		}
		return out, nil
	case []any:
		ptr := reflect.ValueOf(val).Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return nil, fmt.Errorf("copy: cyclic value detected")
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		out := make([]any, len(val))
		for i, item := range val {
			cloned, err := deepCopyVisit(item, seen)
			if err != nil {
				return nil, err
			}
			out[i] = cloned
		}
		return out, nil
	default:
		// primitives (nil/bool/number/string) and host handles: returned
		// as-is, host handles by reference per spec.md §4.1.
		return v, nil
	}
}

func cloneShallowMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CanonicalHash produces a stable JSON hash of an arg map for CallKey
// construction (spec.md §3: "argHash is a canonical JSON hash of the arg
// map, map keys sorted").
func CanonicalHash(args map[string]any) (string, error) {
	canon, err := canonicalize(args)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("canonical hash: %w", err)
	}
	return string(b), nil
}

// canonicalize produces a value whose json.Marshal output has deterministic
// key ordering, since Go already sorts map[string]any keys during encoding
// — the recursion exists to normalize nested maps/slices consistently and
// to reject values json cannot represent.
func canonicalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			c, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			c, err := canonicalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}
