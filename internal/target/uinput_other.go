//go:build !linux

package target

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

// Uinput is only available on Linux.
type Uinput struct{}

// NewUinput always fails outside Linux.
func NewUinput(log zerolog.Logger) (*Uinput, error) {
	return nil, fmt.Errorf("uinput on %s: %w", runtime.GOOS, ErrUnsupported)
}

func (u *Uinput) Name() string { return NameUinput }

func (u *Uinput) Dispatch(ctx context.Context, ev event.Event) error {
	return ErrUnsupported
}

func (u *Uinput) Close() error { return nil }
