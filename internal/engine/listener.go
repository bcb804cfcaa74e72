package engine

import "github.com/wingman-run/wingman/internal/model"

// ResultListener streams suite/feature/scenario lifecycle events (spec.md
// §2, §4.6, §6). Implementations must not block for longer than a
// scenario's step granularity, or they throttle the SuiteRunner's pool.
type ResultListener interface {
	OnSuiteStart()
	OnSuiteEnd(result SuiteResult)
	OnFeatureStart(feature *model.Feature)
	OnFeatureEnd(result FeatureResult)
	OnScenarioStart(feature *model.Feature, scenario model.Scenario)
	OnScenarioEnd(result ScenarioResult)
}

// multiListener fans lifecycle callbacks out to every registered listener in
// order, on the calling goroutine, so one scenario's callbacks never run
// concurrently with each other (spec.md §4.6 ordering guarantee).
type multiListener struct {
	listeners []ResultListener
}

// NewMultiListener composes zero or more listeners into one.
func NewMultiListener(listeners ...ResultListener) ResultListener {
	return &multiListener{listeners: listeners}
}

func (m *multiListener) OnSuiteStart() {
	for _, l := range m.listeners {
		l.OnSuiteStart()
	}
}

func (m *multiListener) OnSuiteEnd(result SuiteResult) {
	for _, l := range m.listeners {
		l.OnSuiteEnd(result)
	}
}

func (m *multiListener) OnFeatureStart(feature *model.Feature) {
	for _, l := range m.listeners {
		l.OnFeatureStart(feature)
	}
}

func (m *multiListener) OnFeatureEnd(result FeatureResult) {
	for _, l := range m.listeners {
		l.OnFeatureEnd(result)
	}
}

func (m *multiListener) OnScenarioStart(feature *model.Feature, scenario model.Scenario) {
	for _, l := range m.listeners {
		l.OnScenarioStart(feature, scenario)
	}
}

func (m *multiListener) OnScenarioEnd(result ScenarioResult) {
	for _, l := range m.listeners {
		l.OnScenarioEnd(result)
	}
}
