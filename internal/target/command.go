package target

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stigoleg/idle-suppressor/internal/event"
	"github.com/stigoleg/idle-suppressor/internal/util"
)

// commandTimeout bounds every external tool invocation.
const commandTimeout = 3 * time.Second

const accessibilityHint = "On macOS you must enable Accessibility for the process posting events. " +
	"If you run from Terminal, enable Terminal in System Settings, Privacy and Security, Accessibility."

// commandStep is a single external tool invocation.
type commandStep struct {
	name string
	args []string
}

type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// Command dispatches events by running an OS input tool: xdotool or ydotool
// on Linux, osascript posting Quartz events on macOS.
type Command struct {
	mu     sync.Mutex
	name   string
	steps  map[event.Kind][]commandStep
	hint   string
	run    runFunc
	log    zerolog.Logger
	closed bool
}

func newCommand(name string, steps map[event.Kind][]commandStep, run runFunc, log zerolog.Logger) *Command {
	return &Command{name: name, steps: steps, run: run, log: log}
}

// NewXdotool returns a target driving X11 through xdotool.
func NewXdotool(log zerolog.Logger) (*Command, error) {
	if !util.HasCommand("xdotool") {
		return nil, fmt.Errorf("xdotool not found in PATH: %w", ErrUnsupported)
	}
	if displayServer() == displayServerWayland {
		return nil, fmt.Errorf("xdotool does not work on Wayland: %w", ErrUnsupported)
	}
	return newCommand(NameXdotool, xdotoolSteps, util.RunCommand, log), nil
}

// NewYdotool returns a target driving the ydotool daemon. It works on both
// X11 and Wayland.
func NewYdotool(log zerolog.Logger) (*Command, error) {
	if !util.HasCommand("ydotool") {
		return nil, fmt.Errorf("ydotool not found in PATH: %w", ErrUnsupported)
	}
	return newCommand(NameYdotool, ydotoolSteps, util.RunCommand, log), nil
}

// NewMacOS returns a target posting Quartz events through osascript.
func NewMacOS(log zerolog.Logger) (*Command, error) {
	if runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("macos target on %s: %w", runtime.GOOS, ErrUnsupported)
	}
	if !util.HasCommand("osascript") {
		return nil, fmt.Errorf("osascript not found in PATH: %w", ErrUnsupported)
	}
	c := newCommand(NameMacOS, macOSSteps, util.RunCommand, log)
	c.hint = accessibilityHint
	return c, nil
}

var xdotoolSteps = map[event.Kind][]commandStep{
	event.KindMouseMove: {
		{name: "xdotool", args: []string{"mousemove_relative", "--", "1", "0"}},
		{name: "xdotool", args: []string{"mousemove_relative", "--", "-1", "0"}},
	},
	event.KindKeyDown: {
		{name: "xdotool", args: []string{"key", "shift"}},
	},
}

// ydotool takes raw Linux key codes; 42 is KEY_LEFTSHIFT.
var ydotoolSteps = map[event.Kind][]commandStep{
	event.KindMouseMove: {
		{name: "ydotool", args: []string{"mousemove", "--", "1", "0"}},
		{name: "ydotool", args: []string{"mousemove", "--", "-1", "0"}},
	},
	event.KindKeyDown: {
		{name: "ydotool", args: []string{"key", "42:1", "42:0"}},
	},
}

// The mouse move is posted at the current pointer location, so the pointer
// does not travel.
const jxaMouseMove = `
ObjC.import('CoreGraphics');
var here = $.CGEventGetLocation($.CGEventCreate(null));
var move = $.CGEventCreateMouseEvent(null, $.kCGEventMouseMoved, here, $.kCGMouseButtonLeft);
$.CGEventPost($.kCGHIDEventTap, move);
`

// 0x38 is the Shift virtual key code.
const jxaShiftKey = `
ObjC.import('CoreGraphics');
$.CGEventPost($.kCGHIDEventTap, $.CGEventCreateKeyboardEvent(null, 0x38, true));
delay(0.01);
$.CGEventPost($.kCGHIDEventTap, $.CGEventCreateKeyboardEvent(null, 0x38, false));
`

var macOSSteps = map[event.Kind][]commandStep{
	event.KindMouseMove: {
		{name: "osascript", args: []string{"-l", "JavaScript", "-e", jxaMouseMove}},
	},
	event.KindKeyDown: {
		{name: "osascript", args: []string{"-l", "JavaScript", "-e", jxaShiftKey}},
	},
}

func (c *Command) Name() string { return c.name }

// Dispatch runs the tool invocations that reproduce ev.
func (c *Command) Dispatch(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNoDocument
	}

	kind := event.Kind(ev.Type())
	steps, ok := c.steps[kind]
	if !ok {
		return fmt.Errorf("%s: no action for %s events", c.name, kind)
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	for _, st := range steps {
		out, err := c.run(runCtx, st.name, st.args...)
		if err != nil {
			if c.hint != "" {
				return fmt.Errorf("%s %s: %w. %s", c.name, kind, err, c.hint)
			}
			return fmt.Errorf("%s %s: %w", c.name, kind, err)
		}
		if out != "" {
			c.log.Debug().Str("tool", st.name).Str("output", out).Msg("tool output")
		}
	}
	return nil
}

// Close stops further dispatch. The tools hold no state between calls.
func (c *Command) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Display server types.
const (
	displayServerWayland = "wayland"
	displayServerX11     = "x11"
	displayServerUnknown = "unknown"
)

// displayServer detects the session's display server from the environment.
func displayServer() string {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return displayServerWayland
	}
	sessionType := strings.ToLower(os.Getenv("XDG_SESSION_TYPE"))
	if sessionType == displayServerWayland {
		return displayServerWayland
	}
	if os.Getenv("DISPLAY") != "" || sessionType == displayServerX11 {
		return displayServerX11
	}
	return displayServerUnknown
}
