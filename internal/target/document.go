package target

import (
	"context"
	"sync"

	"github.com/stigoleg/idle-suppressor/internal/event"
)

// Listener receives dispatched events.
type Listener func(ev event.Event)

type registration struct {
	id int
	fn Listener
}

// Document is an in-process event target. Listeners registered for an event
// type are called synchronously, in registration order, for each dispatch.
type Document struct {
	mu        sync.Mutex
	dispatch  sync.Mutex
	listeners map[string][]registration
	nextID    int
	closed    bool
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{listeners: make(map[string][]registration)}
}

func (d *Document) Name() string { return NameDocument }

// AddEventListener registers fn for events of the given type and returns a
// function that removes it.
func (d *Document) AddEventListener(typ string, fn Listener) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[typ] = append(d.listeners[typ], registration{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		regs := d.listeners[typ]
		for i, r := range regs {
			if r.id == id {
				d.listeners[typ] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers ev to the listeners for its type. Dispatches are
// serialized.
func (d *Document) Dispatch(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrNoDocument
	}
	regs := append([]registration(nil), d.listeners[ev.Type()]...)
	d.mu.Unlock()

	d.dispatch.Lock()
	defer d.dispatch.Unlock()
	for _, r := range regs {
		r.fn(ev)
	}
	return nil
}

// Close tears the document down. Later dispatches fail with ErrNoDocument.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.listeners = make(map[string][]registration)
	return nil
}
