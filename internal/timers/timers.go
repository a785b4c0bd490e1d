// Package timers implements tick-driven timers. Durations are expressed in
// ticks of an external clock; the owner calls Manager.Tick once per quantum.
package timers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

// ID identifies a timer within its manager.
type ID uint64

// State is the lifecycle state of a Timer.
type State uint8

const (
	StateIdle State = iota
	StateArmed
	// StateExpired means the timer expired and its callback is waiting to
	// run on the timer's executor.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// MetricsRecorder receives timer activity. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	SetTimersArmed(n int)
	IncTimerExpired()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = logging.OrNoop(l) }
}

// WithMetrics sets the manager's metrics recorder.
func WithMetrics(r MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// armEntry is one arm cycle of a timer in the expiry list. Stopping or
// re-arming bumps the timer's generation, which makes older entries stale;
// they are skipped lazily when reached.
type armEntry struct {
	timer  *Timer
	gen    uint64
	expiry uint64
}

// Manager owns a set of timers and advances them on Tick.
type Manager struct {
	log     logging.Logger
	metrics MetricsRecorder

	mu      sync.Mutex
	now     uint64
	counter uint64
	armed   int
	entries []armEntry // ordered by expiry, then arm order
}

// NewManager returns a manager at tick zero.
func NewManager(opts ...Option) *Manager {
	m := &Manager{log: logging.Noop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create returns an idle timer whose callbacks run on the goroutine calling
// Tick.
func (m *Manager) Create() *Timer {
	return m.CreateOn(nil)
}

// CreateOn returns an idle timer whose callbacks are dispatched to exec.
func (m *Manager) CreateOn(exec executor.Executor) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return &Timer{m: m, id: ID(m.counter), exec: exec}
}

// Now returns the number of ticks elapsed.
func (m *Manager) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Armed returns the number of armed timers.
func (m *Manager) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

type firing struct {
	timer *Timer
	gen   uint64
}

// Tick advances time by one tick and fires every timer that expires on it.
func (m *Manager) Tick() {
	m.mu.Lock()
	m.now++
	var due []firing
	for len(m.entries) > 0 {
		e := m.entries[0]
		if e.expiry > m.now {
			break
		}
		m.entries = m.entries[1:]
		t := e.timer
		if t.gen != e.gen || t.state != StateArmed {
			continue
		}
		if t.period > 0 {
			m.insertLocked(t, m.now+uint64(t.period))
		} else {
			t.state = StateExpired
			m.armed--
		}
		due = append(due, firing{timer: t, gen: e.gen})
	}
	armed := m.armed
	m.mu.Unlock()

	if len(due) == 0 {
		return
	}
	if m.metrics != nil {
		m.metrics.SetTimersArmed(armed)
	}
	// Callbacks run outside the lock so they can re-arm or stop timers.
	for _, f := range due {
		f := f
		if f.timer.exec == nil {
			f.timer.fire(f.gen)
			continue
		}
		if !f.timer.exec.Execute(func() { f.timer.fire(f.gen) }) {
			m.log.Warn(context.Background(), "timer callback dropped: executor refused it",
				logging.Uint64("timer_id", uint64(f.timer.id)),
			)
		}
	}
}

// insertLocked adds an arm cycle keeping entries ordered by expiry, then by
// arm order. Caller must hold m.mu.
func (m *Manager) insertLocked(t *Timer, expiry uint64) {
	e := armEntry{timer: t, gen: t.gen, expiry: expiry}
	idx := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].expiry > expiry
	})
	m.entries = append(m.entries, armEntry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = e
}

func (m *Manager) reportArmed() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetTimersArmed(m.Armed())
}

// Timer is a single-shot or periodic timer owned by a Manager.
type Timer struct {
	m    *Manager
	id   ID
	exec executor.Executor

	// guarded by m.mu
	state  State
	gen    uint64
	period uint32
	cb     func()
}

// ID returns the timer's identifier.
func (t *Timer) ID() ID { return t.id }

// Set arms the timer to call cb on exactly the ticks-th subsequent Tick. A
// zero duration fires on the next tick. Setting an armed timer restarts it.
func (t *Timer) Set(ticks uint32, cb func()) {
	t.arm(ticks, 0, cb)
}

// SetPeriodic arms the timer to call cb every ticks ticks until stopped.
func (t *Timer) SetPeriodic(ticks uint32, cb func()) {
	if ticks == 0 {
		ticks = 1
	}
	t.arm(ticks, ticks, cb)
}

func (t *Timer) arm(ticks, period uint32, cb func()) {
	if ticks == 0 {
		ticks = 1
	}
	m := t.m
	m.mu.Lock()
	if t.state == StateArmed {
		m.armed--
	}
	t.gen++
	t.state = StateArmed
	t.period = period
	t.cb = cb
	m.armed++
	m.insertLocked(t, m.now+uint64(ticks))
	m.mu.Unlock()
	m.reportArmed()
}

// Stop disarms the timer. A callback already handed to the timer's executor
// but not yet run is suppressed.
func (t *Timer) Stop() {
	m := t.m
	m.mu.Lock()
	if t.state == StateIdle {
		m.mu.Unlock()
		return
	}
	if t.state == StateArmed {
		m.armed--
	}
	t.gen++
	t.state = StateIdle
	t.cb = nil
	m.mu.Unlock()
	m.reportArmed()
}

// IsRunning reports whether the timer is armed or its expiry is still being
// delivered.
func (t *Timer) IsRunning() bool {
	return t.State() != StateIdle
}

// State returns the timer's state.
func (t *Timer) State() State {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.state
}

func (t *Timer) fire(gen uint64) {
	m := t.m
	m.mu.Lock()
	if t.gen != gen {
		// Stopped or re-armed after expiry.
		m.mu.Unlock()
		return
	}
	if t.state == StateExpired {
		t.state = StateIdle
	}
	cb := t.cb
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncTimerExpired()
	}
	if cb != nil {
		cb()
	}
}

// TicksFor converts d to ticks of the given quantum, rounding up.
func TicksFor(d, quantum time.Duration) uint32 {
	if quantum <= 0 || d <= 0 {
		return 0
	}
	n := (d + quantum - 1) / quantum
	return uint32(n)
}
