// Package tui provides the live terminal dashboard for go-present-mon.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It renders the engine's per-tick console text (per-process
// swap-chain statistics and the mixed-reality block) plus engine health, and
// it is the UI/control thread: it toggles recording and requests engine stop.
package tui

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red

	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Styles
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1)

	sectionTitleStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	statValueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	healthyStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	consoleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)
)
