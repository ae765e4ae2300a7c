package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"queue-twin/models"
	"queue-twin/scenario"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Simulation is the engine surface the dashboard drives.
type Simulation interface {
	Current() (models.QueueSnapshot, bool)
	AgentCount() int
	SetAgentCount(n int) error
}

// Insights exposes the narrative summary service.
type Insights interface {
	Latest() (models.Insight, bool)
	InFlight() bool
	TriggerRefresh(snapshot models.QueueSnapshot) bool
}

// Scenarios runs and lists what-if scenarios.
type Scenarios interface {
	Run(ctx context.Context, snapshot models.QueueSnapshot, target int, focus models.PriorityFocus, trigger string) (models.Scenario, error)
	List() []models.Scenario
	Baseline() int
}

// History exposes the rolling forecast window.
type History interface {
	Forecast() []models.ForecastPoint
}

// Criticality classifies snapshots against the alert threshold.
type Criticality interface {
	Critical(s models.QueueSnapshot) bool
	Threshold() int
}

// Deps are the collaborators rendered by the dashboard. Updates is an
// engine subscription; the dashboard stops reading when it is closed.
type Deps struct {
	Simulation Simulation
	Insights   Insights
	Scenarios  Scenarios
	History    History
	Alerts     Criticality
	Updates    <-chan models.QueueSnapshot
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type snapshotMsg models.QueueSnapshot
type streamClosedMsg struct{}
type pollMsg time.Time

type scenarioDoneMsg struct {
	scenario models.Scenario
	err      error
}

const pollInterval = 500 * time.Millisecond

func waitForSnapshot(ch <-chan models.QueueSnapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

// ---------------------------------------------------------------------------
// Keybindings
// ---------------------------------------------------------------------------

type keyMap struct {
	More     key.Binding
	Fewer    key.Binding
	Scenario key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.More, k.Fewer, k.Scenario, k.Refresh, k.Quit}
}
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	More:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "add agent")),
	Fewer:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "remove agent")),
	Scenario: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "run scenario")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh insight")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx  context.Context
	deps Deps

	snapshot    models.QueueSnapshot
	hasSnapshot bool
	target      int
	insight     models.Insight
	hasInsight  bool
	inFlight    bool
	scenarios   []models.Scenario
	forecast    []models.ForecastPoint
	running     bool
	status      string
	streamDone  bool

	spinner spinner.Model
	help    help.Model
	width   int
}

// New returns the initial dashboard model.
func New(ctx context.Context, deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(colorTitle)

	m := Model{
		ctx:     ctx,
		deps:    deps,
		spinner: sp,
		help:    help.New(),
		target:  deps.Simulation.AgentCount(),
	}
	if s, ok := deps.Simulation.Current(); ok {
		m.snapshot, m.hasSnapshot = s, true
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, pollCmd()}
	if m.deps.Updates != nil {
		cmds = append(cmds, waitForSnapshot(m.deps.Updates))
	}
	return tea.Batch(cmds...)
}

// refresh pulls the slower-moving state from collaborators.
func (m *Model) refresh() {
	m.insight, m.hasInsight = m.deps.Insights.Latest()
	m.inFlight = m.deps.Insights.InFlight()
	m.scenarios = m.deps.Scenarios.List()
	m.forecast = m.deps.History.Forecast()
	m.target = m.deps.Simulation.AgentCount()
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snapshot, m.hasSnapshot = models.QueueSnapshot(msg), true
		m.refresh()
		return m, waitForSnapshot(m.deps.Updates)

	case streamClosedMsg:
		m.streamDone = true
		m.status = "simulation stopped"
		return m, nil

	case pollMsg:
		m.refresh()
		return m, pollCmd()

	case scenarioDoneMsg:
		m.running = false
		m.refresh()
		switch {
		case msg.err != nil:
			m.status = "scenario rejected: " + msg.err.Error()
		case msg.scenario.Results == nil:
			m.status = fmt.Sprintf("%s recorded, projection unavailable", msg.scenario.Name)
		default:
			m.status = fmt.Sprintf("%s: %.1f%% fewer breaches", msg.scenario.Name, msg.scenario.Results.BreachReduction)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.More):
			m.setAgents(m.target + 1)
		case key.Matches(msg, keys.Fewer):
			m.setAgents(m.target - 1)
		case key.Matches(msg, keys.Refresh):
			m.triggerRefresh()
		case key.Matches(msg, keys.Scenario):
			return m, m.runScenario()
		}
	}
	return m, nil
}

func (m *Model) setAgents(n int) {
	if err := m.deps.Simulation.SetAgentCount(n); err != nil {
		m.status = err.Error()
		return
	}
	m.target = m.deps.Simulation.AgentCount()
	m.status = fmt.Sprintf("agents set to %d from next tick", m.target)
}

func (m *Model) triggerRefresh() {
	if !m.hasSnapshot {
		m.status = "no snapshot yet"
		return
	}
	if m.deps.Insights.TriggerRefresh(m.snapshot) {
		m.inFlight = true
		m.status = "requesting insight"
		return
	}
	m.status = "insight request already in flight"
}

func (m *Model) runScenario() tea.Cmd {
	if !m.hasSnapshot {
		m.status = "no snapshot yet"
		return nil
	}
	if m.running {
		m.status = "scenario already running"
		return nil
	}
	m.running = true
	m.status = fmt.Sprintf("evaluating %s", scenario.Name(m.target-m.deps.Scenarios.Baseline()))

	ctx, snap, target, sc := m.ctx, m.snapshot, m.target, m.deps.Scenarios
	return func() tea.Msg {
		res, err := sc.Run(ctx, snap, target, models.FocusNone, scenario.TriggerManual)
		return scenarioDoneMsg{scenario: res, err: err}
	}
}
