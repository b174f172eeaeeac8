//go:build linux

package target

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

// uinput constants.
const (
	uinputDevicePath = "/dev/uinput"
	uinputBusTypeUSB = 0x03
	uinputVendorID   = 0x1234
	uinputProductID  = 0x5679
	uinputDeviceName = "idle-suppressor"

	// Linux input event types and codes
	evSyn        = 0x00
	evKey        = 0x01
	evRel        = 0x02
	relX         = 0x00
	relY         = 0x01
	keyLeftShift = 42

	// uinput ioctl commands
	uiSetEvbit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeybit  = 0x40045565 // _IOW('U', 101, int)
	uiSetRelbit  = 0x40045566 // _IOW('U', 102, int)
	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
)

type uinputUserDev struct {
	Name [80]byte
	ID   struct {
		Bustype uint16
		Vendor  uint16
		Product uint16
		Version uint16
	}
	FFEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Uinput dispatches events through a virtual input device, so the display
// server and every idle detector above it see hardware-like activity.
type Uinput struct {
	mu   sync.Mutex
	log  zerolog.Logger
	file *os.File
}

// NewUinput creates the virtual device.
func NewUinput(log zerolog.Logger) (*Uinput, error) {
	if err := checkUinputAccess(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(uinputDevicePath, os.O_WRONLY|unix.O_NONBLOCK, 0o660)
	if err != nil {
		return nil, fmt.Errorf("open uinput device: %w", err)
	}
	u := &Uinput{log: log, file: f}

	if err := u.enableCapabilities(); err != nil {
		u.file.Close()
		return nil, fmt.Errorf("enable uinput capabilities: %w", err)
	}
	if err := u.createDevice(); err != nil {
		u.file.Close()
		return nil, fmt.Errorf("create uinput device: %w", err)
	}

	log.Info().Str("device", uinputDeviceName).Msg("uinput device created")
	return u, nil
}

func checkUinputAccess() error {
	if _, err := os.Stat(uinputDevicePath); os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist; load the module with: sudo modprobe uinput", uinputDevicePath)
	}
	if err := unix.Access(uinputDevicePath, unix.W_OK); err != nil {
		return fmt.Errorf("no write access to %s: %w\n\nTo fix:\n"+
			"1. Add user to input group: sudo usermod -aG input $USER (then logout/login)\n"+
			"2. Or create a udev rule: echo 'KERNEL==\"uinput\", MODE=\"0664\", GROUP=\"input\"' | sudo tee /etc/udev/rules.d/99-uinput.rules",
			uinputDevicePath, err)
	}
	return nil
}

func (u *Uinput) fd() int {
	return int(u.file.Fd())
}

func (u *Uinput) enableCapabilities() error {
	bits := []struct {
		req   uint
		value int
	}{
		{uiSetEvbit, evRel},
		{uiSetRelbit, relX},
		{uiSetRelbit, relY},
		{uiSetEvbit, evKey},
		{uiSetKeybit, keyLeftShift},
	}
	for _, b := range bits {
		if err := unix.IoctlSetInt(u.fd(), b.req, b.value); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uinput) createDevice() error {
	var dev uinputUserDev
	copy(dev.Name[:], uinputDeviceName)
	dev.ID.Bustype = uinputBusTypeUSB
	dev.ID.Vendor = uinputVendorID
	dev.ID.Product = uinputProductID

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		return err
	}
	if _, err := u.file.Write(buf.Bytes()); err != nil {
		return err
	}
	return unix.IoctlSetInt(u.fd(), uiDevCreate, 0)
}

func (u *Uinput) Name() string { return NameUinput }

// Dispatch translates ev into kernel input events. A mousemove becomes a
// one-pixel nudge and its return, so the pointer ends where it started; a
// Shift keydown becomes a press and release.
func (u *Uinput) Dispatch(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var seq []inputEvent
	switch e := ev.(type) {
	case event.MouseEvent:
		seq = []inputEvent{
			{Type: evRel, Code: relX, Value: 1},
			{Type: evSyn},
			{Type: evRel, Code: relX, Value: -1},
			{Type: evSyn},
		}
	case event.KeyboardEvent:
		if e.Key() != "Shift" {
			return fmt.Errorf("uinput: unsupported key %q", e.Key())
		}
		seq = []inputEvent{
			{Type: evKey, Code: keyLeftShift, Value: 1},
			{Type: evSyn},
			{Type: evKey, Code: keyLeftShift, Value: 0},
			{Type: evSyn},
		}
	default:
		return fmt.Errorf("uinput: unsupported event %s", ev.Type())
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.file == nil {
		return ErrNoDocument
	}
	for _, ie := range seq {
		if err := u.write(ie); err != nil {
			return fmt.Errorf("uinput: write %s: %w", ev.Type(), err)
		}
	}
	return nil
}

func (u *Uinput) write(ie inputEvent) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &ie); err != nil {
		return err
	}
	_, err := u.file.Write(buf.Bytes())
	return err
}

// Close destroys the virtual device.
func (u *Uinput) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.file == nil {
		return nil
	}
	if err := unix.IoctlSetInt(u.fd(), uiDevDestroy, 0); err != nil {
		u.log.Warn().Err(err).Msg("uinput device destroy failed")
	}
	err := u.file.Close()
	u.file = nil
	return err
}
