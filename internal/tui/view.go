package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// render assembles the full dashboard frame.
func (m Model) render() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderEngineStats())

	if m.snapshot.Display != "" {
		sections = append(sections, m.renderConsole())
	}

	if m.snapshot.EventsLost > 0 || m.snapshot.BuffersLost > 0 || m.snapshot.QueueDropped > 0 {
		sections = append(sections, m.renderLossWarning())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Sections
// =============================================================================

func (m Model) renderHeader() string {
	state := idleStyle.Render("idle")
	if m.snapshot.Recording {
		state = recordingStyle.Render("● REC")
	}

	header := fmt.Sprintf(" go-present-mon │ %s │ Processes: %d (%d targets) │ Elapsed: %s ",
		state,
		m.snapshot.TrackedProcesses,
		m.snapshot.TargetProcesses,
		formatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

func (m Model) renderEngineStats() string {
	rates := m.snapshot.Rates

	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render("Presents"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s    %s %s    %s %s    %s %s\n",
		statLabelStyle.Render("total:"),
		statValueStyle.Render(fmt.Sprintf("%d", rates.TotalPresents)),
		statLabelStyle.Render("1s:"),
		statValueStyle.Render(fmt.Sprintf("%.1f/s", rates.Rate1s)),
		statLabelStyle.Render("30s:"),
		statValueStyle.Render(fmt.Sprintf("%.1f/s", rates.Rate30s)),
		statLabelStyle.Render("300s:"),
		statValueStyle.Render(fmt.Sprintf("%.1f/s", rates.Rate300s)),
	)
	fmt.Fprintf(&b, "  %s %s    %s %s\n",
		statLabelStyle.Render("csv rows:"),
		statValueStyle.Render(fmt.Sprintf("%d present / %d lsr", m.snapshot.PresentRows, m.snapshot.LsrRows)),
		statLabelStyle.Render("health:"),
		m.renderHealth(),
	)
	return b.String()
}

func (m Model) renderHealth() string {
	if m.snapshot.QueueDropped > 0 {
		return warningStyle.Render("dropping events")
	}
	return healthyStyle.Render("ok")
}

// renderConsole shows the engine's per-tick console text verbatim inside a
// box. The engine owns the format; the dashboard is just the screen.
func (m Model) renderConsole() string {
	text := strings.TrimRight(m.snapshot.Display, "\n")
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return consoleStyle.Width(width).Render(text)
}

func (m Model) renderLossWarning() string {
	return warningStyle.Render(fmt.Sprintf(
		"  ⚠ loss: %d events, %d buffers (backend), %d events (queue)",
		m.snapshot.EventsLost, m.snapshot.BuffersLost, m.snapshot.QueueDropped))
}

func (m Model) renderFooter() string {
	return footerStyle.Render("  r toggle recording · q quit")
}

// =============================================================================
// Helpers
// =============================================================================

// formatDuration renders a duration as h:mm:ss.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	d -= min * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, min, s)
	}
	return fmt.Sprintf("%d:%02d", min, s)
}
