package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

// candidate pairs a parsed mock feature with one of its conditional-response
// scenarios, preserving declaration order across every feature the
// dispatcher was started with (spec.md §4.7: "one or more mock features").
type candidate struct {
	featureIndex int
	scenario     model.Scenario
}

// rootState is the long-lived, read-mostly state produced by running a mock
// feature's Background once (spec.md §4.7 step 1: "mock root"). Swapped
// atomically in watch mode so an in-flight request keeps using the version
// it started with (spec.md §9 "watch-mode re-parse atomicity").
type rootState struct {
	features   []*model.Feature
	candidates []candidate
	rootVars   []map[string]any // one merged Background result per feature, indexed like features
}

// Dispatcher serves HTTP requests by matching them against a mock feature's
// scenarios and running the matched scenario's steps through the same
// StepExecutor the suite uses (spec.md §4.7).
type Dispatcher struct {
	engineFactory engine.EngineFactory
	http          engine.HTTPClient
	perf          engine.PerfHook

	calls *engine.CallRegistry
	locks *engine.LockManager

	mu    sync.Mutex // guards explicit shared-scope mutation of root state
	state *rootState
}

// NewDispatcher builds a mock root from features (each feature's Background
// runs once here) and is ready to serve requests.
func NewDispatcher(features []*model.Feature, engineFactory engine.EngineFactory, http engine.HTTPClient, perf engine.PerfHook) (*Dispatcher, error) {
	if perf == nil {
		perf = engine.NoopPerfHook{}
	}
	d := &Dispatcher{
		engineFactory: engineFactory,
		http:          http,
		perf:          perf,
		calls:         engine.NewCallRegistry(),
		locks:         engine.NewLockManager(),
	}
	state, err := d.buildState(features)
	if err != nil {
		return nil, err
	}
	d.state = state
	return d, nil
}

func (d *Dispatcher) buildState(features []*model.Feature) (*rootState, error) {
	state := &rootState{features: features, rootVars: make([]map[string]any, len(features))}
	for i, f := range features {
		scope := engine.NewVariableScope(nil, nil)
		eng := d.engineFactory(nil)
		root := engine.NewScenarioRuntime(f, model.Scenario{Name: "<background>", Steps: f.Background}, scope, eng, d.calls, d.locks, d.http, d.perf)
		for _, sr := range root.RunSteps(context.Background(), f.Background) {
			if sr.Fault != nil {
				return nil, fmt.Errorf("mock root %s: background step failed: %s", f.Identity, sr.Fault.Error())
			}
		}
		state.rootVars[i] = scope.ResultVariables()

		for _, sec := range f.Sections {
			if sec.Scenario != nil {
				state.candidates = append(state.candidates, candidate{featureIndex: i, scenario: *sec.Scenario})
			}
			// Scenario Outlines are not meaningful as conditional-response
			// templates in a mock feature (spec.md §4.7 describes only plain
			// Scenarios here); any present are ignored.
		}
	}
	return state, nil
}

// Reload re-parses features and swaps the dispatcher's root state; requests
// already in flight keep using the prior *rootState they captured at start
// (spec.md §4.7 step 5, §9 watch-mode atomicity).
func (d *Dispatcher) Reload(features []*model.Feature) error {
	state, err := d.buildState(features)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) snapshot() *rootState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Result is the outcome of dispatching one request: either a synthesized
// httpResponse or a not-found/error signal.
type Result struct {
	Response httpResponse
	Matched  bool
}

// Dispatch matches method/path/headers/query/body against the current root
// state's candidates in declaration order and runs the first match's
// remaining steps (everything after its predicate Given step) to produce a
// response (spec.md §4.7 steps 2-4).
func (d *Dispatcher) Dispatch(ctx context.Context, method, path string, headers, query map[string][]string, body []byte) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("mock handler panic: %v", rec)
		}
	}()

	state := d.snapshot()
	req := newRequestHost(method, path, headers, query, body)

	for _, c := range state.candidates {
		if len(c.scenario.Steps) == 0 || c.scenario.Steps[0].Prefix != model.PrefixGiven {
			continue
		}
		predicate := c.scenario.Steps[0]

		feature := state.features[c.featureIndex]
		scope := engine.NewVariableScope(nil, state.rootVars[c.featureIndex])
		scope.Set("request", req)
		bindRequestHelpers(scope, req)
		eng := d.engineFactory(nil)
		rt := engine.NewScenarioRuntime(feature, c.scenario, scope, eng, d.calls, d.locks, d.http, d.perf)

		matched, evalErr := eng.Eval(ctx, predicate.Text, scope.ResultVariables())
		if evalErr != nil {
			log.Error().Err(evalErr).Str("feature", feature.Identity).Str("scenario", c.scenario.Name).Msg("mock predicate evaluation failed")
			continue
		}
		ok, _ := matched.(bool)
		if !ok {
			continue
		}

		for _, sr := range rt.RunSteps(ctx, c.scenario.Steps[1:]) {
			if sr.Fault != nil {
				return Result{}, fmt.Errorf("mock scenario %s: %s", c.scenario.Name, sr.Fault.Error())
			}
		}

		v, _ := scope.Get("response")
		resp, buildErr := buildResponse(v)
		if buildErr != nil {
			return Result{}, buildErr
		}
		return Result{Response: resp, Matched: true}, nil
	}

	return Result{Matched: false}, nil
}
