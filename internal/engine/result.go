package engine

import (
	"fmt"
	"time"

	"github.com/wingman-run/wingman/internal/model"
)

// FaultKind classifies a failure by signalling contract, not by Go type
// (spec.md §7, §9): parse, evaluate, assert, timeout, cancelled, infra.
type FaultKind string

const (
	FaultParse     FaultKind = "parse"
	FaultEvaluate  FaultKind = "evaluate"
	FaultAssert    FaultKind = "assert"
	FaultTimeout   FaultKind = "timeout"
	FaultCancelled FaultKind = "cancelled"
	FaultInfra     FaultKind = "infra"
)

// SourceLocation pins a fault to the feature/line that produced it.
type SourceLocation struct {
	Identity string
	Line     int
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d", l.Identity, l.Line)
}

// Fault is the structured failure carried by a StepResult/ScenarioResult; it
// never crosses a scenario boundary as a panic or Go error return to a
// caller outside the engine (spec.md §7 "propagation policy").
type Fault struct {
	Kind     FaultKind
	Message  string
	Location SourceLocation
	// DiffPath, for FaultAssert, is the JSON-pointer-like path into the
	// mismatching sub-value (spec.md §7: "a path into the mismatching
	// sub-value").
	DiffPath string
}

func (f *Fault) Error() string {
	if f.DiffPath != "" {
		return fmt.Sprintf("%s: %s (at %s): %s", f.Kind, f.Location, f.DiffPath, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Kind, f.Location, f.Message)
}

// Embed is an attachment on a StepResult (e.g. rendered `doc` HTML, a
// screenshot reference).
type Embed struct {
	MimeType string
	Data     []byte
}

// StepResult records one step's execution.
type StepResult struct {
	Step      model.Step
	Duration  time.Duration
	Log       []string
	Embeds    []Embed
	Fault     *Fault
	Skipped   bool
}

func (r StepResult) Passed() bool { return r.Fault == nil && !r.Skipped }

// ScenarioResult is the outcome of one ScenarioRuntime.Call (spec.md §3).
type ScenarioResult struct {
	Scenario        model.Scenario
	FeatureIdentity  string
	Steps            []StepResult
	Duration         time.Duration
	Cancelled        bool
	ResultVariables  map[string]any
}

func (r ScenarioResult) Passed() bool {
	if r.Cancelled {
		return false
	}
	for _, s := range r.Steps {
		if s.Fault != nil {
			return false
		}
	}
	return true
}

func (r ScenarioResult) Failed() bool { return !r.Passed() }

// infraFault returns the first FaultInfra step's error, if any, so the
// SuiteRunner can distinguish a fatal infrastructure error (which aborts the
// suite) from an ordinary assertion/evaluate failure (which does not).
func (r ScenarioResult) infraFault() error {
	for _, s := range r.Steps {
		if s.Fault != nil && s.Fault.Kind == FaultInfra {
			return s.Fault
		}
	}
	return nil
}

// FailureMessage returns the first fault's message, or "" if the scenario
// passed.
func (r ScenarioResult) FailureMessage() string {
	for _, s := range r.Steps {
		if s.Fault != nil {
			return s.Fault.Error()
		}
	}
	if r.Cancelled {
		return "cancelled"
	}
	return ""
}

// FeatureResult aggregates all ScenarioResults for one Feature.
type FeatureResult struct {
	Feature   *model.Feature
	Scenarios []ScenarioResult
}

func (r FeatureResult) Passed() bool {
	for _, s := range r.Scenarios {
		if !s.Passed() {
			return false
		}
	}
	return true
}

func (r FeatureResult) Failed() bool { return !r.Passed() }

// SuiteResult aggregates all FeatureResults for one suite run (spec.md §3,
// §4.6 "SuiteResult.isFailed() is true iff at least one scenario failed").
type SuiteResult struct {
	Features []FeatureResult
	// InfraErrors are suite-level errors that propagate as exceptions, not
	// as ScenarioResult faults (spec.md §7 kind 7).
	InfraErrors []error
}

func (r SuiteResult) ScenarioCount() int {
	n := 0
	for _, f := range r.Features {
		n += len(f.Scenarios)
	}
	return n
}

func (r SuiteResult) FeatureCount() int { return len(r.Features) }

func (r SuiteResult) IsFailed() bool {
	if len(r.InfraErrors) > 0 {
		return true
	}
	for _, f := range r.Features {
		if f.Failed() {
			return true
		}
	}
	return false
}

// ErrorStrings concatenates every fault and infra error message, for a
// terse top-level summary.
func (r SuiteResult) ErrorStrings() []string {
	var out []string
	for _, e := range r.InfraErrors {
		out = append(out, e.Error())
	}
	for _, f := range r.Features {
		for _, s := range f.Scenarios {
			if msg := s.FailureMessage(); msg != "" {
				out = append(out, fmt.Sprintf("%s: %s: %s", f.Feature.Identity, s.Scenario.Name, msg))
			}
		}
	}
	return out
}
