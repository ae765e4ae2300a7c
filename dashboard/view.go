package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorTitle  = lipgloss.Color("#7aa2f7")
	colorOK     = lipgloss.Color("#9ece6a")
	colorWarn   = lipgloss.Color("#e0af68")
	colorDanger = lipgloss.Color("#f7768e")
	colorBorder = lipgloss.Color("#3b4261")
	colorFg     = lipgloss.Color("#c0caf5")
	colorDim    = lipgloss.Color("#565f89")
	colorAccent = lipgloss.Color("#bb9af7")
)

const forecastRows = 6

func (m Model) View() string {
	w := m.width
	if w == 0 {
		w = 100
	}

	if !m.hasSnapshot {
		s := lipgloss.NewStyle().Foreground(colorDim).Width(w).Align(lipgloss.Center)
		return s.Render(m.spinner.View() + "  Waiting for the first snapshot...")
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().
		Bold(true).Foreground(colorTitle).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2).Width(w - 2).
		Align(lipgloss.Center)
	title := fmt.Sprintf("Support Queue Twin  │  %s", m.snapshot.Timestamp.Format("15:04:05"))
	if m.streamDone {
		title += "  │  stopped"
	}
	sections = append(sections, titleStyle.Render(title))

	sections = append(sections, m.renderCards(w))
	sections = append(sections, m.renderForecast(w))
	sections = append(sections, m.renderInsight(w))
	sections = append(sections, m.renderScenarios(w))

	if m.status != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(colorAccent).Render("» "+m.status))
	}

	helpStyle := lipgloss.NewStyle().Foreground(colorDim).Width(w).Align(lipgloss.Center)
	sections = append(sections, helpStyle.Render(m.help.View(keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderCards draws the headline metrics row.
func (m Model) renderCards(w int) string {
	s := m.snapshot
	cardW := (w - 10) / 5
	if cardW < 14 {
		cardW = 14
	}

	card := func(label, value string, color lipgloss.Color) string {
		return lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).Width(cardW).
			Render(lipgloss.NewStyle().Foreground(colorDim).Render(label) + "\n" +
				lipgloss.NewStyle().Bold(true).Foreground(color).Render(value))
	}

	riskColor := colorOK
	switch {
	case m.deps.Alerts.Critical(s):
		riskColor = colorDanger
	case s.ProjectedBreachProbability >= m.deps.Alerts.Threshold()/2:
		riskColor = colorWarn
	}

	agents := fmt.Sprintf("%d", s.AgentCount)
	if m.target != s.AgentCount {
		agents = fmt.Sprintf("%d → %d", s.AgentCount, m.target)
	}

	risk := fmt.Sprintf("%d%%", s.ProjectedBreachProbability)
	if m.deps.Alerts.Critical(s) {
		risk += " CRITICAL"
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Queue", fmt.Sprintf("%d", s.QueueLength), colorFg),
		card("Agents", agents, colorFg),
		card("Breach risk", risk, riskColor),
		card("Completed", fmt.Sprintf("%d", s.CompletedCount), colorOK),
		card("Breaches", fmt.Sprintf("%d", s.BreachCount), colorDanger),
	)
}

// renderForecast draws the most recent forecast points, newest last.
func (m Model) renderForecast(w int) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(colorFg).Underline(true).
		Render(fmt.Sprintf("%-8s %8s %10s %10s %10s", "Time", "Actual", "Lower", "Predicted", "Upper"))

	points := m.forecast
	if len(points) > forecastRows {
		points = points[len(points)-forecastRows:]
	}

	lines := []string{header}
	for _, p := range points {
		lines = append(lines, fmt.Sprintf("%-8s %8d %10.1f %10.1f %10.1f",
			p.Label, p.Actual, p.LowerBound, p.Predicted, p.UpperBound))
	}
	if len(points) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorDim).Render("no history yet"))
	}

	return panel("Forecast", strings.Join(lines, "\n"), w)
}

// renderInsight draws the latest narrative summary.
func (m Model) renderInsight(w int) string {
	var b strings.Builder
	if m.inFlight {
		b.WriteString(m.spinner.View() + " analyzing...\n")
	}
	if !m.hasInsight {
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("no insight available"))
		return panel("Insight", b.String(), w)
	}

	b.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(m.insight.RiskLevel), m.insight.Summary))
	for i, r := range m.insight.Recommendations {
		b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, r))
	}
	return panel("Insight", b.String(), w)
}

// renderScenarios draws the retained what-if scenarios, newest first.
func (m Model) renderScenarios(w int) string {
	if len(m.scenarios) == 0 {
		return panel("Scenarios", lipgloss.NewStyle().Foreground(colorDim).Render("no scenarios yet (press s)"), w)
	}

	lines := make([]string, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		result := "projection unavailable"
		if sc.Results != nil {
			result = fmt.Sprintf("breaches -%.1f%%, wait %+.1f min", sc.Results.BreachReduction, sc.Results.WaitTimeChange)
		}
		lines = append(lines, fmt.Sprintf("%-18s %3d agents  %s", sc.Name, sc.TargetAgents, result))
	}
	return panel("Scenarios", strings.Join(lines, "\n"), w)
}

func panel(title, body string, w int) string {
	t := lipgloss.NewStyle().Bold(true).Foreground(colorTitle).Render(title)
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).Width(w - 2).
		Render(t + "\n" + body)
}
