package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stigoleg/idle-suppressor/internal/suppressor"
)

// Model holds the current state of the UI, including user input and the
// suppressor it drives.
type Model struct {
	State        State
	Selected     int
	Input        string
	Suppressor   *suppressor.Suppressor
	ErrorMessage string
	StartTime    time.Time
	Duration     time.Duration
	ShowHelp     bool

	version string
	keys    KeyMap
	help    help.Model
}

// InitialModel returns the initial model for the TUI.
func InitialModel(s *suppressor.Suppressor) Model {
	return Model{
		State:      StateMenu,
		Suppressor: s,
		keys:       DefaultKeys(),
		help:       NewHelpModel(),
	}
}

// InitialModelWithDuration returns a model that is already running. A zero
// duration runs indefinitely.
func InitialModelWithDuration(s *suppressor.Suppressor, d time.Duration) Model {
	m := InitialModel(s)

	var err error
	if d > 0 {
		err = s.StartTimed(d)
	} else {
		err = s.StartIndefinite()
	}
	if err != nil {
		m.ErrorMessage = err.Error()
		return m
	}

	m.State = StateRunning
	m.StartTime = time.Now()
	m.Duration = d
	return m
}

// SetVersion sets the version shown in the help view.
func (m *Model) SetVersion(v string) {
	m.version = v
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.State == StateRunning {
		return tick()
	}
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return Update(msg, m)
}

// View implements tea.Model
func (m Model) View() string {
	return View(m)
}

// TimeRemaining returns the remaining duration for timed sessions
func (m Model) TimeRemaining() time.Duration {
	if m.State != StateRunning || m.Duration <= 0 {
		return 0
	}
	remaining := m.Duration - time.Since(m.StartTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
