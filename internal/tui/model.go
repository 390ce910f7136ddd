package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-present-mon/internal/engine"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// =============================================================================
// Model
// =============================================================================

// Controller is the slice of the engine the dashboard drives.
type Controller interface {
	LatestSnapshot() engine.Snapshot
	ToggleRecording()
	RequestStop()
}

// Model represents the dashboard state.
type Model struct {
	controller Controller

	snapshot  engine.Snapshot
	startTime time.Time

	width  int
	height int

	quitting bool
}

// New creates a dashboard driving the given engine.
func New(controller Controller) Model {
	return Model{
		controller: controller,
		startTime:  time.Now(),
		width:      80,
		height:     24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.controller.RequestStop()
			return m, tea.Quit
		case "r":
			m.controller.ToggleRecording()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.snapshot = m.controller.LatestSnapshot()
		return m, tickCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 250ms.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}
