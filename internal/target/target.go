// Package target provides the places synthetic events are dispatched to.
package target

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

var (
	// ErrNoDocument is returned when the document an event should be
	// dispatched on no longer exists.
	ErrNoDocument = errors.New("no active document")

	// ErrUnsupported is returned for targets this platform cannot provide.
	ErrUnsupported = errors.New("target unsupported on this platform")

	// ErrUnknownTarget is returned for an unrecognised target name.
	ErrUnknownTarget = errors.New("unknown target")
)

// Target names accepted by New.
const (
	NameAuto     = "auto"
	NameDocument = "document"
	NameBrowser  = "browser"
	NameUinput   = "uinput"
	NameYdotool  = "ydotool"
	NameXdotool  = "xdotool"
	NameMacOS    = "macos"
)

// Names lists every target name.
var Names = []string{NameAuto, NameDocument, NameBrowser, NameUinput, NameYdotool, NameXdotool, NameMacOS}

// Dispatcher delivers synthetic events to whatever watches for user input.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, ev event.Event) error
	Close() error
}

// Options selects and configures a dispatcher.
type Options struct {
	Name    string
	Browser BrowserOptions
}

// New builds the dispatcher named in opts. An empty name means auto.
func New(ctx context.Context, opts Options, log zerolog.Logger) (Dispatcher, error) {
	log = log.With().Str("component", "target").Logger()
	return newNamed(ctx, strings.ToLower(strings.TrimSpace(opts.Name)), opts, log)
}

func newNamed(ctx context.Context, name string, opts Options, log zerolog.Logger) (Dispatcher, error) {
	switch name {
	case "", NameAuto:
		return firstAvailable(ctx, autoOrder(runtime.GOOS), opts, log)
	case NameDocument:
		return NewDocument(), nil
	case NameBrowser:
		b, err := NewBrowser(ctx, opts.Browser, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case NameUinput:
		u, err := NewUinput(log)
		if err != nil {
			return nil, err
		}
		return u, nil
	case NameYdotool:
		c, err := NewYdotool(log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameXdotool:
		c, err := NewXdotool(log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameMacOS:
		c, err := NewMacOS(log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w %q (valid: %s)", ErrUnknownTarget, opts.Name, strings.Join(Names, ", "))
	}
}

// autoOrder lists the OS-level targets tried for auto, best first.
func autoOrder(goos string) []string {
	switch goos {
	case "darwin":
		return []string{NameMacOS}
	case "linux":
		return []string{NameUinput, NameYdotool, NameXdotool}
	default:
		return nil
	}
}

// firstAvailable returns the first target in names that can be created.
func firstAvailable(ctx context.Context, names []string, opts Options, log zerolog.Logger) (Dispatcher, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no automatic input target on %s, use --target browser: %w", runtime.GOOS, ErrUnsupported)
	}

	var errs []error
	for _, name := range names {
		d, err := newNamed(ctx, name, opts, log)
		if err == nil {
			log.Info().Str("target", name).Msg("selected input target")
			return d, nil
		}
		log.Debug().Err(err).Str("target", name).Msg("input target unavailable")
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, fmt.Errorf("no input target available: %w", errors.Join(errs...))
}
