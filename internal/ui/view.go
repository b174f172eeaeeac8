package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stigoleg/idle-suppressor/internal/event"
	"github.com/stigoleg/idle-suppressor/internal/suppressor"
)

// progressWidth matches the width of the help line under the bar.
const progressWidth = 20

// View renders the current state of the model to a string.
func View(m Model) string {
	if m.ShowHelp {
		return helpView(m)
	}

	switch m.State {
	case StateMenu:
		return menuView(m)
	case StateTimedInput:
		return timedInputView(m)
	case StateRunning:
		return runningView(m)
	}

	return ""
}

func menuView(m Model) string {
	var b strings.Builder

	b.WriteString(Current.Title.Render("Idle Suppressor"))
	b.WriteString("\n\n")

	b.WriteString(Current.Unselected.Render("Select an option:"))
	b.WriteString("\n\n")

	for i, opt := range menuItems {
		if i == m.Selected {
			b.WriteString(Current.Selected.Render("> " + opt))
		} else {
			b.WriteString(Current.Unselected.Render("  " + opt))
		}
		b.WriteString("\n")
	}

	if m.ErrorMessage != "" {
		b.WriteString("\n" + Current.Error.Render(m.ErrorMessage))
	}

	b.WriteString("\n\n" + helpLine(m))
	return b.String()
}

func timedInputView(m Model) string {
	var b strings.Builder

	b.WriteString(Current.Title.Render("Enter Duration"))
	b.WriteString("\n\n")

	b.WriteString(Current.Unselected.Render("Enter duration in minutes:"))
	b.WriteString("\n")
	input := m.Input
	if input == "" {
		input = " "
	}
	b.WriteString(Current.InputBox.Render(input))
	b.WriteString("\n\n")

	b.WriteString(helpLine(m))

	if m.ErrorMessage != "" {
		b.WriteString("\n\n" + Current.Error.Render(m.ErrorMessage))
	}

	return b.String()
}

func runningView(m Model) string {
	var b strings.Builder

	b.WriteString(Current.Title.Render("Idle Suppressor Active"))
	b.WriteString("\n\n")

	b.WriteString(Current.Active.Render("Synthetic input is keeping the session awake"))
	b.WriteString("\n\n")

	if s := m.Suppressor; s != nil {
		stats := s.Stats()
		row(&b, "Target", s.TargetName())
		row(&b, "Interval", s.Interval().String())
		for _, kind := range s.Kinds() {
			label := fmt.Sprintf("%s sent", kind)
			value := fmt.Sprintf("%d", stats.Dispatched[kind])
			if next, ok := s.NextFire(kind); ok {
				value += fmt.Sprintf(" (next in %s)", formatCountdown(time.Until(next)))
			}
			row(&b, label, value)
		}
		row(&b, "Health", healthText(s.Health(), stats))
		b.WriteString("\n")
	}

	// Show countdown and progress bar if this is a timed session
	if m.Duration > 0 {
		remaining := m.TimeRemaining()
		b.WriteString(Current.Unselected.Render(formatCountdown(remaining) + " remaining"))
		b.WriteString("\n\n")
		b.WriteString(Current.ProgressBox.Render(progressBar(remaining, m.Duration)))
		b.WriteString("\n")
	}

	b.WriteString("\n" + helpLine(m))

	if m.ErrorMessage != "" {
		b.WriteString("\n\n" + Current.Error.Render(m.ErrorMessage))
	}

	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(Current.Label.Render(label))
	b.WriteString(Current.Value.Render(value))
	b.WriteString("\n")
}

func healthText(h suppressor.Health, stats suppressor.Stats) string {
	if h == suppressor.HealthFailed && stats.LastError != "" {
		return Current.Error.Render(fmt.Sprintf("%s: %s", h, stats.LastError))
	}
	return h.String()
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// gradientColors run from purple to green across the progress bar.
var gradientColors = []string{
	"#7D56F4", "#6E5AF5", "#5F5FF7", "#5063F8", "#4168FA",
	"#326CFB", "#2371FD", "#1475FE", "#057AFF", "#007FF5",
	"#0087E1", "#008FCD", "#0097B9", "#009FA5", "#00A791",
	"#00AF7D", "#00B769", "#00BF55", "#43BF6D",
}

func progressBar(remaining, total time.Duration) string {
	progress := 1.0 - float64(remaining)/float64(total)
	filled := int(progress * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}

	var bar strings.Builder
	for i := 0; i < progressWidth; i++ {
		if i < filled {
			colorIndex := i * (len(gradientColors) - 1) / (progressWidth - 1)
			bar.WriteString(Current.ProgressBar.
				Background(lipgloss.Color(gradientColors[colorIndex])).
				Render(" "))
		} else {
			bar.WriteString(Current.ProgressBar.Render(" "))
		}
	}
	return bar.String()
}

func helpLine(m Model) string {
	h := m.help
	if h.ShortSeparator == "" {
		h = NewHelpModel()
	}
	return Current.Help.Render(h.View(m.bindings().ForState(m.State)))
}

func helpView(m Model) string {
	version := m.version
	if version == "" {
		version = "dev"
	}
	help := fmt.Sprintf(`Idle Suppressor %s

Dispatches a synthetic %s and a Shift %s on a fixed interval
so idle detection never sees a quiet period.

Usage:
  idlesuppressor [flags]

Flags:
  -i, --interval string   Time between synthetic events (default 15m)
  -t, --target string     auto, browser, uinput, ydotool, xdotool or macos
  -d, --duration string   How long to suppress idle (e.g., "2h30m")
  -c, --clock string      Suppress idle until a time (e.g., "22:00")
      --headless          Run without the terminal UI
  -h, --help              Show help message

Navigation:
  ↑/k, ↓/j  : Navigate menu
  Enter      : Select option
  s          : Stop while running
  h/?        : Toggle this help
  q          : Quit

Press 'h' or 'Esc' to close help`, version, event.KindMouseMove, event.KindKeyDown)

	return Current.Help.Render(help)
}
