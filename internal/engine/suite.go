package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/wingman-run/wingman/internal/model"
	"github.com/wingman-run/wingman/internal/script"
)

// EngineFactory builds a fresh script.Engine seeded with the config-layer
// variables, once per suite run.
type EngineFactory func(config map[string]any) script.Engine

// DefaultEngineFactory builds a CEL-backed Engine seeded with config.
func DefaultEngineFactory(config map[string]any) script.Engine {
	return script.NewCELEngine().Child(config)
}

// DriverFactory builds the `driver` host object; nil disables the `driver`
// step (spec.md §1 "browser automation... out of scope, specified only as
// a capability").
type DriverFactory func(args any) (script.HostObject, error)

// SuiteConfig wires everything a SuiteRunner needs to expand, schedule, and
// execute a set of parsed features (spec.md §4.6, §2 "SuiteRunner").
type SuiteConfig struct {
	Features []*model.Feature
	TagExpr  string
	Threads  int

	ConfigVars map[string]any

	EngineFactory EngineFactory
	HTTP          HTTPClient
	Perf          PerfHook
	Driver        DriverFactory
	Listener      ResultListener
}

// SuiteRunner expands Features into concrete scenario units (including
// ScenarioOutline rows), schedules them on a bounded worker pool, and
// aggregates their results (spec.md §4.6: "20% of the core's scope").
type SuiteRunner struct {
	cfg   SuiteConfig
	calls *CallRegistry
	locks *LockManager

	byIdentity map[string]*model.Feature
	byName     map[string]*model.Feature
}

// NewSuiteRunner constructs a runner over cfg. Feature identity/name lookups
// used by `call` steps are indexed once up front.
func NewSuiteRunner(cfg SuiteConfig) *SuiteRunner {
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.Perf == nil {
		cfg.Perf = NoopPerfHook{}
	}
	if cfg.Listener == nil {
		cfg.Listener = NewMultiListener()
	}
	r := &SuiteRunner{
		cfg:        cfg,
		calls:      NewCallRegistry(),
		locks:      NewLockManager(),
		byIdentity: map[string]*model.Feature{},
		byName:     map[string]*model.Feature{},
	}
	for _, f := range cfg.Features {
		r.byIdentity[f.Identity] = f
		if f.Name != "" {
			r.byName[f.Name] = f
		}
	}
	return r
}

// scenarioUnit is one concrete (Feature, Scenario) pairing ready to execute,
// after outline expansion and tag filtering.
type scenarioUnit struct {
	feature  *model.Feature
	scenario model.Scenario
}

// expand walks every feature's Sections, expanding ScenarioOutlines into
// concrete Scenarios (model.ExpandOutline) and dropping anything the tag
// expression excludes (spec.md §4.6, §3).
func (r *SuiteRunner) expand() []scenarioUnit {
	expr := ParseTagExpr(r.cfg.TagExpr)
	var units []scenarioUnit
	for _, f := range r.cfg.Features {
		// Features tagged @ignore are call-only helpers: resolvable by
		// `call`/`callonce`/`callSingle` but never scheduled as suite entries
		// in their own right.
		if _, ignored := f.Tag("ignore"); ignored {
			continue
		}
		for _, sec := range f.Sections {
			switch {
			case sec.Scenario != nil:
				if expr.Match(tagSet(f.Tags, sec.Scenario.Tags)) {
					units = append(units, scenarioUnit{feature: f, scenario: *sec.Scenario})
				}
			case sec.Outline != nil:
				for _, sc := range model.ExpandOutline(sec.Outline) {
					if expr.Match(tagSet(f.Tags, sc.Tags)) {
						units = append(units, scenarioUnit{feature: f, scenario: sc})
					}
				}
			}
		}
	}
	return units
}

// Run expands, schedules, and executes every matching scenario, aggregating
// FeatureResults and invoking the configured ResultListener at suite/
// feature/scenario boundaries (spec.md §4.6).
func (r *SuiteRunner) Run(ctx context.Context) SuiteResult {
	r.cfg.Listener.OnSuiteStart()

	units := r.expand()

	byFeature := map[string][]scenarioUnit{}
	var order []string
	for _, u := range units {
		if _, ok := byFeature[u.feature.Identity]; !ok {
			order = append(order, u.feature.Identity)
			r.cfg.Listener.OnFeatureStart(u.feature)
		}
		byFeature[u.feature.Identity] = append(byFeature[u.feature.Identity], u)
	}

	var mu sync.Mutex
	scenarioResults := map[string][]ScenarioResult{}
	var infraErrors []error

	// abortCtx is cancelled the moment any scenario reports a fatal
	// infrastructure fault (spec.md §4.6 "a fatal infrastructure error
	// aborts the suite"); scenarios the bounded conc/pool worker pool has
	// not yet started check it and skip running rather than piling onto an
	// already-broken suite. The pool still bounds concurrency and isolates
	// panics per scenario; golang.org/x/sync/errgroup's single-purpose
	// WithContext gives the cancel-on-first-error wiring without a second,
	// unbounded goroutine scheduler competing with the pool.
	errs, abortCtx := errgroup.WithContext(ctx)

	p := pool.New().WithMaxGoroutines(r.cfg.Threads)
	for _, u := range units {
		u := u
		p.Go(func() {
			if abortCtx.Err() != nil {
				mu.Lock()
				scenarioResults[u.feature.Identity] = append(scenarioResults[u.feature.Identity], ScenarioResult{
					Scenario:        u.scenario,
					FeatureIdentity: u.feature.Identity,
					Cancelled:       true,
				})
				mu.Unlock()
				return
			}
			r.cfg.Listener.OnScenarioStart(u.feature, u.scenario)
			res := r.runOne(abortCtx, u)
			r.cfg.Listener.OnScenarioEnd(res)
			mu.Lock()
			scenarioResults[u.feature.Identity] = append(scenarioResults[u.feature.Identity], res)
			mu.Unlock()
			if infraErr := res.infraFault(); infraErr != nil {
				mu.Lock()
				infraErrors = append(infraErrors, infraErr)
				mu.Unlock()
				errs.Go(func() error { return infraErr })
			}
		})
	}
	p.Wait()
	_ = errs.Wait()

	var suite SuiteResult
	suite.InfraErrors = infraErrors
	for _, identity := range order {
		f := r.byIdentity[identity]
		fr := FeatureResult{Feature: f, Scenarios: scenarioResults[identity]}
		r.calls.FeatureFinished(identity)
		r.cfg.Listener.OnFeatureEnd(fr)
		suite.Features = append(suite.Features, fr)
	}

	r.cfg.Listener.OnSuiteEnd(suite)
	return suite
}

// runOne builds a fresh VariableScope + child Engine for one scenario and
// executes it (spec.md §4.3 step 2: "each scenario gets its own variable
// scope layered under config+feature, and a script engine child of the
// caller's").
func (r *SuiteRunner) runOne(ctx context.Context, u scenarioUnit) ScenarioResult {
	scope := NewVariableScope(r.cfg.ConfigVars, nil)
	eng := r.cfg.EngineFactory(r.cfg.ConfigVars)

	rt := NewScenarioRuntime(u.feature, u.scenario, scope, eng, r.calls, r.locks, r.cfg.HTTP, r.cfg.Perf)
	rt.CallRunner = r.callRunner
	rt.DriverFactory = func(args any) (script.HostObject, error) {
		if r.cfg.Driver == nil {
			return nil, fmt.Errorf("no driver factory configured")
		}
		return r.cfg.Driver(args)
	}

	return rt.Call(ctx)
}

// callRunner resolves featureRef (by Identity or by Feature Name) and runs
// every concrete scenario of the callee feature in sequence, threading
// resultVariables from one into the next scope and returning the final
// merged set to the caller (spec.md §4.4: "call runs the full callee
// feature... its resultVariables become the call expression's value").
// callerScope is wired into each callee ScenarioRuntime as CallerScope so a
// `configure scope: 'caller'` step in the callee propagates its driver
// handle back regardless of call mode (spec.md §4.4, §8 concrete scenario 6).
func (r *SuiteRunner) callRunner(ctx context.Context, callerFeatureIdentity string, callerScope *VariableScope, featureRef string, args map[string]any) (map[string]any, error) {
	callee := r.byIdentity[featureRef]
	if callee == nil {
		callee = r.byName[featureRef]
	}
	if callee == nil {
		return nil, fmt.Errorf("call: feature %q not found", featureRef)
	}

	config := map[string]any{}
	for k, v := range r.cfg.ConfigVars {
		config[k] = v
	}
	for k, v := range args {
		config[k] = v
	}

	var merged map[string]any
	for _, sec := range callee.Sections {
		var scenarios []model.Scenario
		switch {
		case sec.Scenario != nil:
			scenarios = []model.Scenario{*sec.Scenario}
		case sec.Outline != nil:
			scenarios = model.ExpandOutline(sec.Outline)
		}
		for _, sc := range scenarios {
			scope := NewVariableScope(config, nil)
			eng := r.cfg.EngineFactory(config)
			rt := NewScenarioRuntime(callee, sc, scope, eng, r.calls, r.locks, r.cfg.HTTP, r.cfg.Perf)
			rt.CallRunner = r.callRunner
			rt.CallerScope = callerScope
			rt.DriverFactory = func(args any) (script.HostObject, error) {
				if r.cfg.Driver == nil {
					return nil, fmt.Errorf("no driver factory configured")
				}
				return r.cfg.Driver(args)
			}
			res := rt.Call(ctx)
			if res.Failed() {
				return nil, fmt.Errorf("call %s: %s", featureRef, res.FailureMessage())
			}
			merged = res.ResultVariables
			for k, v := range merged {
				config[k] = v
			}
		}
	}
	if merged == nil {
		merged = map[string]any{}
	}
	return merged, nil
}
