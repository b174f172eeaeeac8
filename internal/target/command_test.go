package target

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

// fakeRunner records every invocation instead of running it.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  string
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	if f.fail != "" && strings.Contains(call, f.fail) {
		return "denied", errors.New("exit status 1")
	}
	return "", nil
}

func TestCommandDispatch(t *testing.T) {
	tests := []struct {
		name  string
		steps map[event.Kind][]commandStep
		ev    event.Event
		want  []string
	}{
		{
			name:  "xdotool mouse nudge returns to origin",
			steps: xdotoolSteps,
			ev:    event.NewMouseMove(),
			want: []string{
				"xdotool mousemove_relative -- 1 0",
				"xdotool mousemove_relative -- -1 0",
			},
		},
		{
			name:  "xdotool shift",
			steps: xdotoolSteps,
			ev:    event.NewShiftKeyDown(),
			want:  []string{"xdotool key shift"},
		},
		{
			name:  "ydotool mouse nudge returns to origin",
			steps: ydotoolSteps,
			ev:    event.NewMouseMove(),
			want: []string{
				"ydotool mousemove -- 1 0",
				"ydotool mousemove -- -1 0",
			},
		},
		{
			name:  "ydotool left shift press and release",
			steps: ydotoolSteps,
			ev:    event.NewShiftKeyDown(),
			want:  []string{"ydotool key 42:1 42:0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			c := newCommand("tool", tt.steps, r.run, zerolog.Nop())
			require.NoError(t, c.Dispatch(context.Background(), tt.ev))
			assert.Equal(t, tt.want, r.calls)
		})
	}
}

func TestMacOSSteps(t *testing.T) {
	r := &fakeRunner{}
	c := newCommand(NameMacOS, macOSSteps, r.run, zerolog.Nop())

	require.NoError(t, c.Dispatch(context.Background(), event.NewShiftKeyDown()))
	require.NoError(t, c.Dispatch(context.Background(), event.NewMouseMove()))
	require.Len(t, r.calls, 2)

	assert.True(t, strings.HasPrefix(r.calls[0], "osascript -l JavaScript -e"))
	assert.Contains(t, r.calls[0], "CGEventCreateKeyboardEvent(null, 0x38, true)")
	assert.Contains(t, r.calls[0], "CGEventCreateKeyboardEvent(null, 0x38, false)")
	assert.Contains(t, r.calls[1], "kCGEventMouseMoved")
	assert.Contains(t, r.calls[1], "CGEventGetLocation")
}

func TestCommandDispatchFailure(t *testing.T) {
	r := &fakeRunner{fail: "-- 1 0"}
	c := newCommand(NameXdotool, xdotoolSteps, r.run, zerolog.Nop())

	err := c.Dispatch(context.Background(), event.NewMouseMove())
	assert.ErrorContains(t, err, "xdotool mousemove")
	assert.Len(t, r.calls, 1, "later steps are skipped after a failure")

	c.hint = accessibilityHint
	err = c.Dispatch(context.Background(), event.NewMouseMove())
	assert.ErrorContains(t, err, "Accessibility")
}

func TestCommandClosed(t *testing.T) {
	r := &fakeRunner{}
	c := newCommand(NameYdotool, ydotoolSteps, r.run, zerolog.Nop())
	require.NoError(t, c.Close())

	err := c.Dispatch(context.Background(), event.NewShiftKeyDown())
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Empty(t, r.calls)
}

func TestToolTargetsNeedTheirTool(t *testing.T) {
	t.Setenv("PATH", "")

	_, err := NewXdotool(zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewYdotool(zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewMacOS(zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestXdotoolRejectsWayland(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	assert.Equal(t, displayServerWayland, displayServer())

	if _, err := NewXdotool(zerolog.Nop()); assert.Error(t, err) {
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestDisplayServer(t *testing.T) {
	tests := []struct {
		name    string
		wayland string
		session string
		display string
		want    string
	}{
		{name: "wayland socket", wayland: "wayland-0", display: ":0", want: displayServerWayland},
		{name: "wayland session", session: "Wayland", want: displayServerWayland},
		{name: "x11 display", display: ":0", want: displayServerX11},
		{name: "x11 session", session: "x11", want: displayServerX11},
		{name: "headless", want: displayServerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WAYLAND_DISPLAY", tt.wayland)
			t.Setenv("XDG_SESSION_TYPE", tt.session)
			t.Setenv("DISPLAY", tt.display)
			assert.Equal(t, tt.want, displayServer())
		})
	}
}

func TestAutoOrder(t *testing.T) {
	assert.Equal(t, []string{NameMacOS}, autoOrder("darwin"))
	assert.Equal(t, []string{NameUinput, NameYdotool, NameXdotool}, autoOrder("linux"))
	assert.Empty(t, autoOrder("windows"))
}

func TestFirstAvailable(t *testing.T) {
	t.Setenv("PATH", "")

	d, err := firstAvailable(context.Background(), []string{NameYdotool, NameXdotool}, Options{}, zerolog.Nop())
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorContains(t, err, "ydotool")
	assert.ErrorContains(t, err, "xdotool")

	d, err = firstAvailable(context.Background(), []string{NameYdotool, NameDocument}, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, NameDocument, d.Name())

	_, err = firstAvailable(context.Background(), nil, Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewMacOSOutsideDarwin(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("runs only where macOS events cannot be posted")
	}
	_, err := New(context.Background(), Options{Name: NameMacOS}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupported)
}
