// Package scheduler runs repeating timers whose callbacks execute one at a
// time on a single loop, the way a page's event loop runs setInterval
// callbacks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidPeriod is returned when a timer is registered with a
	// non-positive period.
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")

	// ErrStopped is returned when registering on a stopped scheduler.
	ErrStopped = errors.New("scheduler: stopped")
)

// queueSize bounds how many fired callbacks may wait for the loop.
const queueSize = 16

// ID identifies a registered timer.
type ID uint64

// Callback is run on the loop each time its timer fires. A returned error
// aborts only that run; the timer stays scheduled.
type Callback func(ctx context.Context) error

// Timer describes a registered timer.
type Timer struct {
	ID       ID
	Name     string
	Period   time.Duration
	NextFire time.Time
	Fired    uint64
}

type entry struct {
	Timer
	fn     Callback
	ticker clockwork.Ticker
	done   chan struct{}
}

type task struct {
	id ID
	at time.Time
}

// Scheduler owns a set of repeating timers.
type Scheduler struct {
	clock clockwork.Clock
	log   zerolog.Logger

	mu      sync.Mutex
	timers  map[ID]*entry
	nextID  ID
	started bool
	stopped bool

	queue  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler driven by clock. A nil clock uses the real one.
func New(clock clockwork.Clock, log zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		log:    log.With().Str("component", "scheduler").Logger(),
		timers: make(map[ID]*entry),
		queue:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register schedules fn to run every period, first firing one full period
// from now.
func (s *Scheduler) Register(name string, period time.Duration, fn Callback) (ID, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: %s has period %v", ErrInvalidPeriod, name, period)
	}
	if fn == nil {
		return 0, fmt.Errorf("scheduler: nil callback for %s", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrStopped
	}

	s.nextID++
	e := &entry{
		Timer: Timer{
			ID:       s.nextID,
			Name:     name,
			Period:   period,
			NextFire: s.clock.Now().Add(period),
		},
		fn:     fn,
		ticker: s.clock.NewTicker(period),
		done:   make(chan struct{}),
	}
	s.timers[e.ID] = e

	s.wg.Add(1)
	go s.watch(e)

	s.log.Debug().Str("timer", name).Dur("period", period).Uint64("id", uint64(e.ID)).Msg("registered")
	return e.ID, nil
}

// watch forwards ticks of one timer onto the run queue.
func (s *Scheduler) watch(e *entry) {
	defer s.wg.Done()
	defer e.ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-e.done:
			return
		case at := <-e.ticker.Chan():
			s.mu.Lock()
			e.NextFire = at.Add(e.Period)
			s.mu.Unlock()

			select {
			case s.queue <- task{id: e.ID, at: at}:
			case <-s.ctx.Done():
				return
			case <-e.done:
				return
			}
		}
	}
}

// Cancel removes a timer. It reports whether the timer was registered.
// A firing already queued for a cancelled timer is dropped.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	close(e.done)
	s.log.Debug().Str("timer", e.Name).Uint64("id", uint64(id)).Msg("cancelled")
	return true
}

// Start launches the loop. Firings that happened before Start wait in the
// queue. Calling Start more than once is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.queue:
			s.run(t)
		}
	}
}

func (s *Scheduler) run(t task) {
	s.mu.Lock()
	e, ok := s.timers[t.id]
	if ok {
		e.Fired++
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("timer", e.Name).Interface("panic", r).Msg("callback panicked")
		}
	}()

	if err := e.fn(s.ctx); err != nil {
		s.log.Warn().Err(err).Str("timer", e.Name).Time("at", t.at).Msg("callback failed")
	}
}

// Stop cancels every timer and waits for the loop to exit. A callback in
// progress has its context cancelled and Stop waits for it to return. The
// scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, e := range s.timers {
		delete(s.timers, id)
		close(e.done)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Debug().Msg("stopped")
}

// Timers returns a snapshot of the registered timers ordered by ID.
func (s *Scheduler) Timers() []Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Timer, 0, len(s.timers))
	for _, e := range s.timers {
		out = append(out, e.Timer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextFire returns when the timer is next due to fire.
func (s *Scheduler) NextFire(id ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[id]
	if !ok {
		return time.Time{}, false
	}
	return e.NextFire, true
}
