package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

func TestDashboardModel_TracksCounts(t *testing.T) {
	m := newDashboardModel()

	feature := &model.Feature{Identity: "users.feature"}
	scenario := model.Scenario{Name: "create user"}

	next, _ := m.Update(scenarioStartMsg{feature: feature, scenario: scenario})
	m = next.(dashboardModel)
	require.Equal(t, 1, m.running)

	next, _ = m.Update(scenarioEndMsg{result: engine.ScenarioResult{
		Scenario:        scenario,
		FeatureIdentity: feature.Identity,
	}})
	m = next.(dashboardModel)
	require.Equal(t, 0, m.running)
	require.Equal(t, 1, m.passed)
	require.Len(t, m.lines, 1)
	require.True(t, m.lines[0].passed)

	next, _ = m.Update(scenarioEndMsg{result: engine.ScenarioResult{
		Scenario:        model.Scenario{Name: "broken"},
		FeatureIdentity: feature.Identity,
		Steps: []engine.StepResult{
			{Fault: &engine.Fault{Kind: engine.FaultAssert, Message: "boom"}},
		},
	}})
	m = next.(dashboardModel)
	require.Equal(t, 1, m.failed)

	next, _ = m.Update(scenarioEndMsg{result: engine.ScenarioResult{
		Scenario:        model.Scenario{Name: "cancelled"},
		FeatureIdentity: feature.Identity,
		Cancelled:       true,
	}})
	m = next.(dashboardModel)
	require.Equal(t, 1, m.skipped)
}

func TestDashboardModel_TrimsLogToMax(t *testing.T) {
	m := newDashboardModel()
	for i := 0; i < maxLogLines+5; i++ {
		next, _ := m.Update(scenarioEndMsg{result: engine.ScenarioResult{
			Scenario:        model.Scenario{Name: "s"},
			FeatureIdentity: "f",
		}})
		m = next.(dashboardModel)
	}
	require.Len(t, m.lines, maxLogLines)
}

func TestDashboardModel_SuiteEndQuits(t *testing.T) {
	m := newDashboardModel()
	next, cmd := m.Update(suiteEndMsg{result: engine.SuiteResult{}})
	m = next.(dashboardModel)
	require.True(t, m.done)
	require.NotNil(t, cmd)
}

func TestDashboardModel_KeyQuit(t *testing.T) {
	m := newDashboardModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}

func TestDashboardModel_AnimTickMovesTowardTarget(t *testing.T) {
	m := newDashboardModel()
	m.running = 1

	next, cmd := m.Update(animTickMsg{})
	m = next.(dashboardModel)
	require.NotNil(t, cmd)
	require.Greater(t, m.animPos, 0.0)
}

func TestDashboardModel_View_RendersWithoutPanicking(t *testing.T) {
	m := newDashboardModel()
	require.NotPanics(t, func() { _ = m.View() })

	next, _ := m.Update(scenarioEndMsg{result: engine.ScenarioResult{
		Scenario:        model.Scenario{Name: "s"},
		FeatureIdentity: "f",
	}})
	m = next.(dashboardModel)
	require.Contains(t, m.View(), "s")
}
