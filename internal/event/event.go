// Package event defines the synthetic input events dispatched to keep an
// idle detector from firing.
package event

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which synthetic event a timer produces.
type Kind string

const (
	KindMouseMove Kind = "mousemove"
	KindKeyDown   Kind = "keydown"
)

// Kinds lists every supported kind in registration order.
var Kinds = []Kind{KindMouseMove, KindKeyDown}

func (k Kind) String() string {
	return string(k)
}

// Event is a synthetic input event. Implementations are immutable values:
// every accessor returns a copy and nothing can change a field after
// construction.
type Event interface {
	// Type is the DOM event type, e.g. "mousemove".
	Type() string
	Bubbles() bool
	Cancelable() bool
	// Interface is the DOM constructor used to build the event in a page.
	Interface() string
	// Init returns the event init dictionary, freshly allocated per call.
	Init() map[string]any
}

// MouseEvent is a pointer-move event.
type MouseEvent struct {
	typ        string
	bubbles    bool
	cancelable bool
	clientX    int
	clientY    int
}

// NewMouseMove builds the fixed mousemove event at client position (0, 0).
func NewMouseMove() MouseEvent {
	return MouseEvent{
		typ:        string(KindMouseMove),
		bubbles:    true,
		cancelable: true,
	}
}

func (e MouseEvent) Type() string      { return e.typ }
func (e MouseEvent) Bubbles() bool     { return e.bubbles }
func (e MouseEvent) Cancelable() bool  { return e.cancelable }
func (e MouseEvent) Interface() string { return "MouseEvent" }
func (e MouseEvent) ClientX() int      { return e.clientX }
func (e MouseEvent) ClientY() int      { return e.clientY }

func (e MouseEvent) Init() map[string]any {
	return map[string]any{
		"bubbles":    e.bubbles,
		"cancelable": e.cancelable,
		"clientX":    e.clientX,
		"clientY":    e.clientY,
	}
}

// KeyboardEvent is a key-down event.
type KeyboardEvent struct {
	typ        string
	bubbles    bool
	cancelable bool
	key        string
}

// NewShiftKeyDown builds the fixed keydown event for the Shift key.
func NewShiftKeyDown() KeyboardEvent {
	return KeyboardEvent{
		typ:        string(KindKeyDown),
		bubbles:    true,
		cancelable: true,
		key:        "Shift",
	}
}

func (e KeyboardEvent) Type() string      { return e.typ }
func (e KeyboardEvent) Bubbles() bool     { return e.bubbles }
func (e KeyboardEvent) Cancelable() bool  { return e.cancelable }
func (e KeyboardEvent) Interface() string { return "KeyboardEvent" }
func (e KeyboardEvent) Key() string       { return e.key }

func (e KeyboardEvent) Init() map[string]any {
	return map[string]any{
		"bubbles":    e.bubbles,
		"cancelable": e.cancelable,
		"key":        e.key,
	}
}

// New returns a fresh event of the given kind.
func New(kind Kind) (Event, error) {
	switch kind {
	case KindMouseMove:
		return NewMouseMove(), nil
	case KindKeyDown:
		return NewShiftKeyDown(), nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", string(kind))
	}
}

// ParseKind maps a kind name to a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", name)
}

// Script renders a JavaScript expression that dispatches ev on the page's
// document. It evaluates to "dispatched", "cancelled" or "no-document".
func Script(ev Event) (string, error) {
	typ, err := json.Marshal(ev.Type())
	if err != nil {
		return "", fmt.Errorf("encode event type: %w", err)
	}
	init, err := json.Marshal(ev.Init())
	if err != nil {
		return "", fmt.Errorf("encode event init: %w", err)
	}
	return fmt.Sprintf(`(() => {
	if (typeof document === "undefined" || document === null) {
		return "no-document";
	}
	const ev = new %s(%s, %s);
	return document.dispatchEvent(ev) ? "dispatched" : "cancelled";
})()`, ev.Interface(), typ, init), nil
}
