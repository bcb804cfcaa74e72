package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wingman-run/wingman/internal/logging"
	"github.com/wingman-run/wingman/internal/model"
	"github.com/wingman-run/wingman/internal/script"
)

// RequestState accumulates the next HTTP call's method/url/headers/params
// before a `method` step fires the request (spec.md §4.2 keyword steps
// `url`, `method`, `path`, `param`, `header`, `cookie`, `form`, `request`).
type RequestState struct {
	URL     string
	Method  string
	Path    string
	Params  map[string]string
	Headers map[string][]string
	Cookies map[string]string
	Form    map[string]string
	Body    any
}

func newRequestState() *RequestState {
	return &RequestState{
		Params:  map[string]string{},
		Headers: map[string][]string{},
		Cookies: map[string]string{},
		Form:    map[string]string{},
	}
}

// CallRunner executes featureRef as a callee of callerFeatureIdentity,
// seeded with args, and returns the callee's merged resultVariables
// (spec.md §4.4). callerScope is the calling scenario's VariableScope,
// threaded through so a callee declaring `configure scope: 'caller'` can
// back-propagate host handles into it regardless of call mode (spec.md §4.4
// "Driver upward propagation"). Supplied by whatever owns feature resolution
// (SuiteRunner in production; tests may supply a stub).
type CallRunner func(ctx context.Context, callerFeatureIdentity string, callerScope *VariableScope, featureRef string, args map[string]any) (map[string]any, error)

// CallerPropagation lists the host-object names moved from a callee's scope
// into its caller's scope when the callee declared `scope: 'caller'`
// (spec.md §4.4). "driver" is always included; configure may extend it.
var defaultPropagationManifest = []string{"driver"}

// ScenarioRuntime runs a Background + Scenario to completion under a shared
// script Engine, owning its VariableScope and any host handles acquired
// during execution (spec.md §4.3).
type ScenarioRuntime struct {
	FeatureIdentity string
	Feature         *model.Feature
	Scenario        model.Scenario

	Scope  *VariableScope
	Engine script.Engine

	Calls  *CallRegistry
	Locks  *LockManager
	HTTP   HTTPClient
	Perf   PerfHook

	// CallRunner executes a callee feature by identity and returns its
	// merged resultVariables (spec.md §4.4); injected by the SuiteRunner,
	// which alone knows how to resolve a feature reference into a parsed
	// Feature and run its scenarios.
	CallRunner CallRunner
	// DriverFactory constructs the `driver` host object from a `driver`
	// step's argument (spec.md §4.2); the concrete browser-automation
	// subsystem is out of scope, so this is nil unless the caller wires one.
	DriverFactory func(args any) (script.HostObject, error)

	// RequestHeaders carries defaults installed by a `configure headers =
	// {...}` step (spec.md §6), merged into every subsequent request.
	RequestHeaders map[string][]string

	// Request is the in-progress HTTP request being built by url/method/
	// path/param/header/cookie/form steps.
	Request *RequestState
	// Response is the last completed HTTP response, bound as `response` in
	// scope after a `method` step executes the call.
	Response any

	// Driver is the browser host object, if one has been acquired; present
	// only once a `driver` configure block or step creates it.
	Driver script.HostObject

	// CallerScope, if non-nil, is the caller's scope that a `scope:
	// 'caller'`-declared callee's host handles propagate into on return.
	CallerScope *VariableScope
	// PropagationManifest additionally lists host-object names (beyond
	// "driver") to propagate to the caller on return (spec.md §4.4).
	PropagationManifest []string
	ScopeIsCaller       bool

	cancelled int32
	runID     string
	log       zerolog.Logger
}

// NewScenarioRuntime constructs a runtime for one scenario execution. engine
// must already be the correct child/fresh Engine for this invocation
// (spec.md §4.3 step 2).
func NewScenarioRuntime(feature *model.Feature, scenario model.Scenario, scope *VariableScope, eng script.Engine, calls *CallRegistry, locks *LockManager, http HTTPClient, perf PerfHook) *ScenarioRuntime {
	return &ScenarioRuntime{
		FeatureIdentity: feature.Identity,
		Feature:         feature,
		Scenario:        scenario,
		Scope:           scope,
		Engine:          eng,
		Calls:           calls,
		Locks:           locks,
		HTTP:            http,
		Perf:            perf,
		Request:         newRequestState(),
		RequestHeaders:  map[string][]string{},
		runID:           uuid.NewString(),
		log:             logging.ForScenario(feature.Identity, scenario.Name),
	}
}

// Cancel sets the cooperative cancel flag observed between steps (spec.md
// §5 "Cancellation").
func (rt *ScenarioRuntime) Cancel() { atomic.StoreInt32(&rt.cancelled, 1) }

func (rt *ScenarioRuntime) cancelledFlag() bool { return atomic.LoadInt32(&rt.cancelled) != 0 }

// Call runs the Background then the Scenario's steps to completion,
// returning a ScenarioResult (spec.md §4.3).
func (rt *ScenarioRuntime) Call(ctx context.Context) ScenarioResult {
	start := time.Now()

	var release func()
	if lockName, ok := rt.lockName(); ok {
		release = rt.Locks.Acquire(lockName)
		defer release()
	}

	result := ScenarioResult{
		Scenario:        rt.Scenario,
		FeatureIdentity: rt.FeatureIdentity,
		ResultVariables: map[string]any{},
	}

	allSteps := make([]model.Step, 0, len(rt.Feature.Background)+len(rt.Scenario.Steps))
	allSteps = append(allSteps, rt.Feature.Background...)
	allSteps = append(allSteps, rt.Scenario.Steps...)

	failed := false
	for _, step := range allSteps {
		if rt.cancelledFlag() {
			result.Cancelled = true
			result.Steps = append(result.Steps, StepResult{
				Step: step,
				Fault: &Fault{
					Kind:     FaultCancelled,
					Message:  "scenario cancelled",
					Location: SourceLocation{Identity: rt.FeatureIdentity, Line: step.Line},
				},
			})
			break
		}
		if failed {
			result.Steps = append(result.Steps, StepResult{Step: step, Skipped: true})
			continue
		}
		sr := rt.executeStep(ctx, step)
		result.Steps = append(result.Steps, sr)
		if sr.Fault != nil {
			failed = true
		}
	}

	result.ResultVariables = rt.Scope.ResultVariables()
	result.Duration = time.Since(start)

	rt.propagateToCaller()
	return result
}

// lockName resolves the effective @lock tag for this invocation: a
// scenario-level tag wins over a feature-level one (spec.md §9 open
// question resolution).
func (rt *ScenarioRuntime) lockName() (string, bool) {
	if t, ok := rt.Scenario.Tag("lock"); ok {
		return lockTagName(t), true
	}
	if t, ok := rt.Feature.Tag("lock"); ok {
		return lockTagName(t), true
	}
	return "", false
}

func lockTagName(t model.Tag) string {
	if len(t.Values) > 0 {
		return t.Values[0]
	}
	return WildcardLock
}

// propagateToCaller moves the driver handle (and any manifest-listed host
// object) into the caller's scope when this runtime was invoked as a
// `scope: 'caller'` callee (spec.md §4.4 "Driver upward propagation").
func (rt *ScenarioRuntime) propagateToCaller() {
	if !rt.ScopeIsCaller || rt.CallerScope == nil {
		return
	}
	names := append([]string{}, defaultPropagationManifest...)
	names = append(names, rt.PropagationManifest...)
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if v, ok := rt.Scope.Get(name); ok {
			rt.CallerScope.Set(name, v)
		}
	}
}

// RunSteps executes steps in order against this runtime's scope/engine,
// stopping at the first fault, and returns every StepResult produced
// (spec.md §4.7: MockDispatcher runs a matched scenario's remaining steps
// outside the normal scenario-call Background+lock protocol).
func (rt *ScenarioRuntime) RunSteps(ctx context.Context, steps []model.Step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		sr := rt.executeStep(ctx, step)
		results = append(results, sr)
		if sr.Fault != nil {
			break
		}
	}
	return results
}

// executeStep delegates to the package-level StepExecutor dispatch table
// (step.go) and measures timing/logging around it.
func (rt *ScenarioRuntime) executeStep(ctx context.Context, step model.Step) (result StepResult) {
	start := time.Now()
	result = StepResult{Step: step}

	defer func() {
		if rec := recover(); rec != nil {
			result.Fault = &Fault{
				Kind:     FaultEvaluate,
				Message:  fmt.Sprintf("panic: %v", rec),
				Location: SourceLocation{Identity: rt.FeatureIdentity, Line: step.Line},
			}
		}
		result.Duration = time.Since(start)
	}()

	fault := dispatchStep(ctx, rt, step, &result)
	result.Fault = fault
	if fault != nil {
		rt.log.Error().Str("keyword", step.Keyword).Int("line", step.Line).Msg(fault.Message)
	}
	return result
}
