package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CallKey identifies a memoized call: the callee feature's identity, the
// memoization mode, and a canonical hash of the argument map (spec.md §3).
type CallKey struct {
	FeatureIdentity string
	Mode            string // "once" | "single"
	ArgHash         string
}

func (k CallKey) String() string {
	return fmt.Sprintf("%s(%s)/%s", k.FeatureIdentity, k.Mode, k.ArgHash)
}

// callScope bundles the per-caller-feature (or suite-wide, for "single")
// state a CallKey is memoized against: a singleflight.Group collapses
// concurrent callers of the same key onto one execution, and a persistent
// result cache makes later, non-overlapping callers reuse the first result
// too — singleflight alone only dedups calls that are literally in flight
// together; it forgets a key the moment its Do returns, which is not
// sufficient for a memo that must live for a whole feature's run (spec.md
// §4.4).
type callScope struct {
	mu     sync.Mutex
	group  singleflight.Group
	cached map[string]any
}

func newCallScope() *callScope { return &callScope{cached: map[string]any{}} }

func (s *callScope) call(key string, run func() (any, error)) (any, error) {
	s.mu.Lock()
	if v, ok := s.cached[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(key, run)
	if err != nil {
		// Never cache a failure (spec.md §4.4): the next caller re-executes.
		return nil, err
	}

	s.mu.Lock()
	s.cached[key] = v
	s.mu.Unlock()
	return v, nil
}

// CallRegistry memoizes callonce/callSingle results and enforces at-most-one
// execution per CallKey for its scope's lifetime (spec.md §4.4). Isolated
// and shared calls bypass the registry entirely: only "once" and "single"
// modes are memoized. It is suite-wide state, constructed once and injected
// into every ScenarioRuntime (spec.md §9).
type CallRegistry struct {
	mu sync.Mutex
	// single is shared for the whole suite: one callScope for every "single"
	// key ever seen (spec.md §4.4 "callSingle: suite-scoped").
	single *callScope
	// once is scoped per calling feature and torn down when that feature
	// finishes (spec.md §4.4 "cleared when the owning feature finishes");
	// different calling features calling the same callee each get an
	// independent scope and therefore an independent cache entry.
	once map[string]*callScope
}

// NewCallRegistry returns an empty registry.
func NewCallRegistry() *CallRegistry {
	return &CallRegistry{single: newCallScope(), once: map[string]*callScope{}}
}

type inFlightKeyCtxKey struct{}

// cycleError is returned instead of waiting when a call chain re-enters a
// key it is already resolving (spec.md §9 "re-entry on the same key while
// in progress is a deadlock and must be reported as an error, not a wait").
type cycleError struct {
	Key CallKey
}

func (e *cycleError) Error() string {
	return fmt.Sprintf("call cycle detected: %s is already in progress on this call chain", e.Key)
}

// withInFlight returns a context recording that key is now being resolved
// on this call chain, and reports whether it was already present.
func withInFlight(ctx context.Context, key CallKey) (context.Context, bool) {
	existing, _ := ctx.Value(inFlightKeyCtxKey{}).([]CallKey)
	for _, k := range existing {
		if k == key {
			return ctx, true
		}
	}
	next := make([]CallKey, len(existing)+1)
	copy(next, existing)
	next[len(existing)] = key
	return context.WithValue(ctx, inFlightKeyCtxKey{}, next), false
}

// Call resolves key via run, deduplicating concurrent requests for the same
// key and caching the first successful result for the key's scope lifetime
// (spec.md §4.4, §8 "callSingle suite-scoping"/"callonce feature-scoping").
// callerFeatureIdentity scopes "once" entries; it is ignored for "single".
func (r *CallRegistry) Call(ctx context.Context, callerFeatureIdentity string, key CallKey, run func(context.Context) (any, error)) (any, error) {
	ctx, cyclic := withInFlight(ctx, key)
	if cyclic {
		return nil, &cycleError{Key: key}
	}

	scope := r.scopeFor(callerFeatureIdentity, key)
	return scope.call(key.String(), func() (any, error) { return run(ctx) })
}

func (r *CallRegistry) scopeFor(callerFeatureIdentity string, key CallKey) *callScope {
	if key.Mode == "single" {
		return r.single
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.once[callerFeatureIdentity]
	if !ok {
		s = newCallScope()
		r.once[callerFeatureIdentity] = s
	}
	return s
}

// FeatureFinished clears all callonce entries scoped to callerFeatureIdentity
// (spec.md §4.4). It must be called exactly once per feature's completion.
func (r *CallRegistry) FeatureFinished(callerFeatureIdentity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.once, callerFeatureIdentity)
}
