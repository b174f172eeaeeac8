package ui

import (
	"strconv"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// maxInputDigits limits the minutes typed in the timed input.
const maxInputDigits = 4

// menuItems are the options shown in the menu, in order.
var menuItems = []string{
	"Suppress idle indefinitely",
	"Suppress idle for X minutes",
	"Quit",
}

// tickMsg is sent when the countdown timer ticks
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// bindings returns the model's key map, falling back to the defaults for
// models built without InitialModel.
func (m Model) bindings() KeyMap {
	if len(m.keys.Quit.Keys()) == 0 {
		return DefaultKeys()
	}
	return m.keys
}

// Update handles messages and updates the model accordingly.
func Update(msg tea.Msg, m Model) (Model, tea.Cmd) {
	keys := m.bindings()

	if k, ok := msg.(tea.KeyMsg); ok {
		if m.ShowHelp {
			if key.Matches(k, keys.ToggleHelp, keys.Back, keys.Quit) {
				m.ShowHelp = false
			}
			return m, nil
		}
		if key.Matches(k, keys.ToggleHelp) && m.State != StateTimedInput {
			m.ShowHelp = true
			return m, nil
		}
	}

	switch m.State {
	case StateMenu:
		return updateMenu(msg, m, keys)
	case StateTimedInput:
		return updateTimedInput(msg, m, keys)
	case StateRunning:
		return updateRunning(msg, m, keys)
	}
	return m, nil
}

func updateMenu(msg tea.Msg, m Model, keys KeyMap) (Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(k, keys.Up):
		if m.Selected > 0 {
			m.Selected--
		}
	case key.Matches(k, keys.Down):
		if m.Selected < len(menuItems)-1 {
			m.Selected++
		}
	case key.Matches(k, keys.Select):
		switch m.Selected {
		case 0:
			if err := m.Suppressor.StartIndefinite(); err != nil {
				m.ErrorMessage = err.Error()
				return m, nil
			}
			m.State = StateRunning
			m.StartTime = time.Now()
			m.Duration = 0
			m.ErrorMessage = ""
			return m, tick()
		case 1:
			m.State = StateTimedInput
			m.Input = ""
			m.ErrorMessage = ""
			return m, nil
		case 2:
			return m, tea.Quit
		}
	case key.Matches(k, keys.Quit, keys.Back):
		return m, tea.Quit
	}
	return m, nil
}

func updateTimedInput(msg tea.Msg, m Model, keys KeyMap) (Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(k, keys.Submit):
		if m.Input == "" {
			m.ErrorMessage = "Please enter a duration"
			return m, nil
		}
		minutes, err := strconv.Atoi(m.Input)
		if err != nil {
			m.ErrorMessage = "Invalid duration"
			return m, nil
		}
		if minutes <= 0 {
			m.ErrorMessage = "Duration must be positive"
			return m, nil
		}
		d := time.Duration(minutes) * time.Minute
		if err := m.Suppressor.StartTimed(d); err != nil {
			m.ErrorMessage = err.Error()
			return m, nil
		}
		m.State = StateRunning
		m.StartTime = time.Now()
		m.Duration = d
		m.ErrorMessage = ""
		return m, tick()
	case key.Matches(k, keys.Back):
		m.State = StateMenu
		m.ErrorMessage = ""
		return m, nil
	case key.Matches(k, keys.Backspace):
		if len(m.Input) > 0 {
			m.Input = m.Input[:len(m.Input)-1]
			m.ErrorMessage = ""
		}
		return m, nil
	case k.String() == "ctrl+c":
		return m, tea.Quit
	}

	s := k.String()
	if len(s) == 1 && unicode.IsDigit(rune(s[0])) && len(m.Input) < maxInputDigits {
		m.Input += s
		m.ErrorMessage = ""
	}
	return m, nil
}

func updateRunning(msg tea.Msg, m Model, keys KeyMap) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Stop):
			if err := m.Suppressor.Stop(); err != nil {
				m.ErrorMessage = err.Error()
				return m, nil
			}
			m.State = StateMenu
			m.ErrorMessage = ""
			return m, nil
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		}
	case tickMsg:
		// Timed sessions stop themselves; follow them back to the menu.
		if !m.Suppressor.IsRunning() {
			m.State = StateMenu
			m.Duration = 0
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}
