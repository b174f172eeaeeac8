// Package suppressor keeps an idle detector from firing by dispatching
// synthetic mousemove and keydown events on a fixed period.
package suppressor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/stigoleg/idle-suppressor/internal/event"
	"github.com/stigoleg/idle-suppressor/internal/scheduler"
	"github.com/stigoleg/idle-suppressor/internal/target"
)

// ErrAlreadyRunning is returned when starting a running suppressor.
var ErrAlreadyRunning = errors.New("idle suppressor already running")

const defaultStopTimeout = 5 * time.Second

// Health represents the runtime health of event dispatch.
type Health int

const (
	HealthUnknown Health = iota
	HealthOK
	HealthFailed
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthFailed:
		return "failing"
	default:
		return "unknown"
	}
}

// Options configures a Suppressor.
type Options struct {
	// Interval between events of each kind. Zero uses 15 minutes.
	Interval time.Duration

	// Kinds to dispatch. Empty means every kind.
	Kinds []event.Kind

	Clock       clockwork.Clock
	Logger      zerolog.Logger
	StopTimeout time.Duration
}

// Stats is a snapshot of dispatch activity since construction.
type Stats struct {
	Dispatched   map[event.Kind]uint64
	Failures     uint64
	LastDispatch time.Time
	LastError    string
}

// Suppressor registers one repeating timer per event kind and dispatches a
// freshly built event to its target each time a timer fires.
type Suppressor struct {
	mu      sync.Mutex
	running bool
	target  target.Dispatcher
	clock   clockwork.Clock
	log     zerolog.Logger
	baseLog zerolog.Logger

	interval    time.Duration
	kinds       []event.Kind
	stopTimeout time.Duration

	sched   *scheduler.Scheduler
	timers  map[event.Kind]scheduler.ID
	timer   clockwork.Timer
	endTime time.Time
	cleanup *CleanupManager

	statsMu      sync.Mutex
	dispatched   map[event.Kind]uint64
	failures     uint64
	lastDispatch time.Time
	lastError    string

	// consecutive dispatch failures (atomic for thread-safety)
	failCount int64
	// set once any dispatch has been attempted
	attempted int32
}

// New creates a suppressor dispatching to t.
func New(t target.Dispatcher, opts Options) (*Suppressor, error) {
	if t == nil {
		return nil, errors.New("suppressor: nil target")
	}

	interval := opts.Interval
	if interval == 0 {
		interval = 15 * time.Minute
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: %v", scheduler.ErrInvalidPeriod, interval)
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = event.Kinds
	}
	seen := make(map[event.Kind]bool, len(kinds))
	for _, k := range kinds {
		if _, err := event.New(k); err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("suppressor: duplicate event kind %s", k)
		}
		seen[k] = true
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	log := opts.Logger.With().Str("component", "suppressor").Logger()
	s := &Suppressor{
		target:      t,
		clock:       clock,
		log:         log,
		baseLog:     opts.Logger,
		interval:    interval,
		kinds:       append([]event.Kind(nil), kinds...),
		stopTimeout: stopTimeout,
		cleanup:     NewCleanupManager(stopTimeout, opts.Logger),
		dispatched:  make(map[event.Kind]uint64, len(kinds)),
	}
	s.cleanup.RegisterFunc("target "+t.Name(), t.Close)
	return s, nil
}

// IsRunning returns whether timers are currently scheduled.
func (s *Suppressor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the period of each timer.
func (s *Suppressor) Interval() time.Duration {
	return s.interval
}

// Kinds returns the dispatched event kinds.
func (s *Suppressor) Kinds() []event.Kind {
	return append([]event.Kind(nil), s.kinds...)
}

// TargetName returns the name of the dispatch target.
func (s *Suppressor) TargetName() string {
	return s.target.Name()
}

// StartIndefinite schedules the timers until Stop is called.
func (s *Suppressor) StartIndefinite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		return err
	}
	s.log.Info().Dur("interval", s.interval).Str("target", s.target.Name()).Msg("started (indefinite)")
	return nil
}

// StartTimed schedules the timers and stops them after d.
func (s *Suppressor) StartTimed(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		return err
	}

	s.endTime = s.clock.Now().Add(d)
	sched := s.sched
	s.timer = s.clock.AfterFunc(d, func() {
		s.expire(sched)
	})

	s.log.Info().Dur("interval", s.interval).Str("target", s.target.Name()).Dur("timed", d).Msg("started")
	return nil
}

// StartUntil schedules the timers and stops them at the wall-clock time t.
func (s *Suppressor) StartUntil(t time.Time) error {
	return s.StartTimed(t.Sub(s.clock.Now()))
}

func (s *Suppressor) startLocked() error {
	if s.running {
		return ErrAlreadyRunning
	}

	sched := scheduler.New(s.clock, s.baseLog)
	timers := make(map[event.Kind]scheduler.ID, len(s.kinds))
	for _, kind := range s.kinds {
		id, err := sched.Register(kind.String(), s.interval, func(ctx context.Context) error {
			return s.fire(ctx, kind)
		})
		if err != nil {
			sched.Stop()
			return err
		}
		timers[kind] = id
	}
	sched.Start()

	s.sched = sched
	s.timers = timers
	s.endTime = time.Time{}
	s.running = true
	return nil
}

// expire stops the session started with sched, unless it has already been
// replaced.
func (s *Suppressor) expire(sched *scheduler.Scheduler) {
	s.mu.Lock()
	detached := s.detachLocked(sched)
	s.mu.Unlock()
	if detached == nil {
		return
	}

	s.log.Info().Msg("session ended")
	if err := s.waitStopped(detached, s.stopTimeout); err != nil {
		s.log.Warn().Err(err).Msg("stop after session end failed")
	}
}

// fire builds a fresh event and hands it to the target.
func (s *Suppressor) fire(ctx context.Context, kind event.Kind) error {
	ev, err := event.New(kind)
	if err != nil {
		return err
	}

	atomic.StoreInt32(&s.attempted, 1)
	if err := s.target.Dispatch(ctx, ev); err != nil {
		s.recordFailure(err)
		return fmt.Errorf("dispatch %s: %w", ev.Type(), err)
	}

	s.recordSuccess(kind)
	s.log.Debug().Str("type", ev.Type()).Msg("dispatched")
	return nil
}

func (s *Suppressor) recordSuccess(kind event.Kind) {
	atomic.StoreInt64(&s.failCount, 0)

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.dispatched[kind]++
	s.lastDispatch = s.clock.Now()
}

func (s *Suppressor) recordFailure(err error) {
	atomic.AddInt64(&s.failCount, 1)

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.failures++
	s.lastError = err.Error()
}

// Stop cancels the timers.
func (s *Suppressor) Stop() error {
	return s.StopWithTimeout(0)
}

// StopWithTimeout cancels the timers. A dispatch in progress has its context
// cancelled; StopWithTimeout waits at most timeout for it to return.
func (s *Suppressor) StopWithTimeout(timeout time.Duration) error {
	s.mu.Lock()
	sched := s.detachLocked(nil)
	s.mu.Unlock()
	if sched == nil {
		return nil
	}
	return s.waitStopped(sched, timeout)
}

// detachLocked ends the current session and returns its scheduler. When
// expected is non-nil the session is only ended if it is still the one
// started with expected. It returns nil when nothing was detached.
func (s *Suppressor) detachLocked(expected *scheduler.Scheduler) *scheduler.Scheduler {
	if !s.running {
		return nil
	}
	if expected != nil && s.sched != expected {
		return nil
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	sched := s.sched
	s.sched = nil
	s.timers = nil
	s.endTime = time.Time{}
	s.running = false
	return sched
}

// waitStopped stops a detached scheduler, bounded by timeout.
func (s *Suppressor) waitStopped(sched *scheduler.Scheduler, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.stopTimeout
	}

	// Stop the scheduler without holding the lock (may wait on a dispatch)
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-done:
		s.log.Info().Msg("stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn().Dur("timeout", timeout).Msg("stop timeout exceeded")
		return ctx.Err()
	}
}

// Close stops the suppressor and releases the target.
func (s *Suppressor) Close() error {
	stopErr := s.Stop()
	errs := append([]error{stopErr}, s.cleanup.Execute()...)
	return errors.Join(errs...)
}

// TimeRemaining returns the remaining duration for timed sessions.
func (s *Suppressor) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.endTime.IsZero() {
		return 0
	}

	remaining := s.endTime.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextFire returns when the next event of kind is due.
func (s *Suppressor) NextFire(kind event.Kind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}, false
	}
	id, ok := s.timers[kind]
	if !ok {
		return time.Time{}, false
	}
	return s.sched.NextFire(id)
}

// Stats returns a snapshot of dispatch counters.
func (s *Suppressor) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	dispatched := make(map[event.Kind]uint64, len(s.dispatched))
	for k, v := range s.dispatched {
		dispatched[k] = v
	}
	return Stats{
		Dispatched:   dispatched,
		Failures:     s.failures,
		LastDispatch: s.lastDispatch,
		LastError:    s.lastError,
	}
}

// Health reports whether the most recent dispatch succeeded.
func (s *Suppressor) Health() Health {
	if atomic.LoadInt32(&s.attempted) == 0 {
		return HealthUnknown
	}
	if atomic.LoadInt64(&s.failCount) > 0 {
		return HealthFailed
	}
	return HealthOK
}
