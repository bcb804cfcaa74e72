// Package tui renders a live suite run, adapted from the teacher's
// pkg/tui/app.go bubbletea model (same Init/Update/View shape, a lipgloss
// container, tea.WithAltScreen) to engine.ResultListener's lifecycle
// callbacks instead of a chat transcript.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

const maxLogLines = 12

// scenarioLine is one rendered row in the scrolling log.
type scenarioLine struct {
	feature string
	name    string
	passed  bool
	skipped bool
	message string
}

// dashboardModel is the pure bubbletea model; it never touches a
// ResultListener directly so it can be driven and tested with plain
// messages, independent of a running tea.Program.
type dashboardModel struct {
	width, height int

	running     int
	passed      int
	failed      int
	skipped     int
	lines       []scenarioLine
	done        bool
	finalResult engine.SuiteResult

	spinner spinner.Model

	// animSpring pulses the "running" indicator toward animTarget, the way
	// the teacher's pkg/tui/init.go drives a splash-screen pulse animation
	// with the same harmonica.Spring.
	animSpring harmonica.Spring
	animPos    float64
	animVel    float64
	animTarget float64
}

type suiteStartMsg struct{}
type suiteEndMsg struct{ result engine.SuiteResult }
type featureStartMsg struct{ feature *model.Feature }
type featureEndMsg struct{ result engine.FeatureResult }
type scenarioStartMsg struct {
	feature  *model.Feature
	scenario model.Scenario
}
type scenarioEndMsg struct{ result engine.ScenarioResult }
type animTickMsg time.Time

func newSpinner() spinner.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = passStyle
	return sp
}

func newDashboardModel() dashboardModel {
	return dashboardModel{
		spinner:    newSpinner(),
		animSpring: harmonica.NewSpring(harmonica.FPS(30), 5.0, 0.3),
	}
}

func animTick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return animTickMsg(t) })
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.spinner.Tick, animTick())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case animTickMsg:
		if m.running > 0 {
			m.animTarget = 1.0
		} else {
			m.animTarget = 0.0
		}
		m.animPos, m.animVel = m.animSpring.Update(m.animPos, m.animVel, m.animTarget)
		return m, animTick()

	case scenarioStartMsg:
		m.running++

	case scenarioEndMsg:
		m.running--
		line := scenarioLine{
			feature: msg.result.FeatureIdentity,
			name:    msg.result.Scenario.Name,
		}
		switch {
		case msg.result.Cancelled:
			m.skipped++
			line.skipped = true
		case msg.result.Failed():
			m.failed++
			line.message = msg.result.FailureMessage()
		default:
			m.passed++
			line.passed = true
		}
		m.lines = append(m.lines, line)
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}

	case suiteEndMsg:
		m.done = true
		m.finalResult = msg.result
		return m, tea.Quit
	}

	return m, nil
}

func (m dashboardModel) View() string {
	header := titleStyle.Render("wingman") + "  " + summaryStyle.Render("live suite run")

	runningLabel := fmt.Sprintf("running %d", m.running)
	if m.running > 0 {
		runningLabel = m.spinner.View() + " " + runningLabel
	}
	// animPos pulses toward 1.0 while scenarios are running and decays back
	// to 0.0 once idle; bold-ness is the cheapest terminal-safe stand-in for
	// a continuous pulse.
	if m.animPos > 0.5 {
		runningLabel = passStyle.Render(runningLabel)
	}

	summary := fmt.Sprintf(
		"%s  •  %s  •  %s  •  %s",
		runningLabel,
		passStyle.Render(fmt.Sprintf("%d passed", m.passed)),
		failStyle.Render(fmt.Sprintf("%d failed", m.failed)),
		skipStyle.Render(fmt.Sprintf("%d skipped", m.skipped)),
	)

	var body strings.Builder
	if len(m.lines) == 0 {
		body.WriteString(skipStyle.Render("waiting for scenarios..."))
	}
	for _, l := range m.lines {
		switch {
		case l.skipped:
			body.WriteString(skipStyle.Render(fmt.Sprintf("○ %s: %s", l.feature, l.name)))
		case l.passed:
			body.WriteString(passStyle.Render(fmt.Sprintf("✓ %s: %s", l.feature, l.name)))
		default:
			body.WriteString(failStyle.Render(fmt.Sprintf("✗ %s: %s — %s", l.feature, l.name, l.message)))
		}
		body.WriteString("\n")
	}

	help := helpStyle.Render("ctrl+c or q to quit")

	content := containerStyle.Render(header + "\n" + summary + "\n\n" + strings.TrimRight(body.String(), "\n"))
	return content + "\n" + help
}

// Dashboard adapts a running bubbletea Program into an engine.ResultListener:
// each lifecycle callback becomes a tea.Msg sent to the program, which is
// safe to call concurrently with the program's own event loop
// (tea.Program.Send is goroutine-safe).
type Dashboard struct {
	program *tea.Program
}

// NewDashboard constructs a Dashboard. Run starts its bubbletea event loop
// and blocks until the suite ends or the user quits.
func NewDashboard() *Dashboard {
	return &Dashboard{program: tea.NewProgram(newDashboardModel(), tea.WithAltScreen())}
}

// Run blocks until the dashboard exits, returning the final SuiteResult
// (zero value if the user quit before the suite ended).
func (d *Dashboard) Run() (engine.SuiteResult, error) {
	finalModel, err := d.program.Run()
	if err != nil {
		return engine.SuiteResult{}, err
	}
	m, _ := finalModel.(dashboardModel)
	return m.finalResult, nil
}

func (d *Dashboard) OnSuiteStart() { d.program.Send(suiteStartMsg{}) }

func (d *Dashboard) OnSuiteEnd(result engine.SuiteResult) {
	d.program.Send(suiteEndMsg{result: result})
}

func (d *Dashboard) OnFeatureStart(feature *model.Feature) {
	d.program.Send(featureStartMsg{feature: feature})
}

func (d *Dashboard) OnFeatureEnd(result engine.FeatureResult) {
	d.program.Send(featureEndMsg{result: result})
}

func (d *Dashboard) OnScenarioStart(feature *model.Feature, scenario model.Scenario) {
	d.program.Send(scenarioStartMsg{feature: feature, scenario: scenario})
}

func (d *Dashboard) OnScenarioEnd(result engine.ScenarioResult) {
	d.program.Send(scenarioEndMsg{result: result})
}

var _ engine.ResultListener = (*Dashboard)(nil)
