// Package scheduler runs tasks per UE. Every UE slot owns a control loop: a
// bounded FIFO of pending tasks plus at most one running task. Tasks of one
// UE run strictly one after another in submission order; tasks of different
// UEs are independent.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/invariant"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/timers"
	"github.com/signalsfoundry/gnb-controlplane/internal/ue"
)

// DefaultQueueDepth is the number of pending tasks a control loop accepts
// besides the running one.
const DefaultQueueDepth = 16

// ErrQueueFull is returned by Schedule when the UE's control loop is full.
var ErrQueueFull = errors.New("scheduler: control loop queue is full")

// MetricsRecorder receives scheduler activity. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	SetTasksPending(n int)
	IncQueueFull()
	IncTaskCompleted(outcome string)
}

// Option configures a TaskScheduler.
type Option func(*TaskScheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l logging.Logger) Option {
	return func(s *TaskScheduler) { s.log = logging.OrNoop(l) }
}

// WithMetrics sets the scheduler's metrics recorder.
func WithMetrics(r MetricsRecorder) Option {
	return func(s *TaskScheduler) { s.metrics = r }
}

// WithTimers makes MakeTimer create timers from m with callbacks dispatched
// to ctrl.
func WithTimers(m *timers.Manager, ctrl executor.Executor) Option {
	return func(s *TaskScheduler) {
		s.timers = m
		s.ctrl = ctrl
	}
}

// TaskScheduler owns one control loop per UE slot.
type TaskScheduler struct {
	log     logging.Logger
	metrics MetricsRecorder
	timers  *timers.Manager
	ctrl    executor.Executor

	depth   int
	loops   []controlLoop
	pending atomic.Int64
}

type controlLoop struct {
	mu      sync.Mutex
	running *async.Task
	queue   []*async.Task
	// driving is set while a goroutine is starting tasks of this loop.
	// Promotions that happen meanwhile are handed to it instead of starting
	// a nested drive.
	driving bool
	handoff *async.Task
}

// New creates count control loops accepting depth pending tasks each. A
// non-positive depth selects DefaultQueueDepth.
func New(count, depth int, opts ...Option) *TaskScheduler {
	invariant.Checkf(count >= 0, "scheduler: negative UE count %d", count)
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	s := &TaskScheduler{
		log:   logging.Noop(),
		depth: depth,
		loops: make([]controlLoop, count),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timers == nil {
		s.timers = timers.NewManager()
	}
	if s.ctrl == nil {
		s.ctrl = executor.Inline
	}
	return s
}

// Capacity returns the number of control loops.
func (s *TaskScheduler) Capacity() int { return len(s.loops) }

// QueueDepth returns the per-loop pending capacity.
func (s *TaskScheduler) QueueDepth() int { return s.depth }

func (s *TaskScheduler) loop(idx ue.Index) *controlLoop {
	invariant.Checkf(idx.Valid() && int64(idx) < int64(len(s.loops)),
		"scheduler: %s outside [0, %d)", idx, len(s.loops))
	return &s.loops[idx]
}

// Schedule submits task to the control loop of idx. The task starts right
// away when the loop is idle, otherwise it waits behind the tasks already
// submitted. ErrQueueFull is returned when depth tasks are already waiting;
// the task is then left untouched. Scheduling a task that is not pending, or
// an index outside the arena, is a programming error.
func (s *TaskScheduler) Schedule(idx ue.Index, task *async.Task) error {
	invariant.Check(task != nil, "scheduler: nil task")
	l := s.loop(idx)
	invariant.Checkf(task.State() == async.StatePending,
		"scheduler: task %q scheduled in state %s", task.Name(), task.State())

	l.mu.Lock()
	if l.running != nil {
		if len(l.queue) >= s.depth {
			l.mu.Unlock()
			if s.metrics != nil {
				s.metrics.IncQueueFull()
			}
			s.log.Warn(context.Background(), "ue control loop full, task rejected",
				logging.Uint64("ue_index", uint64(idx)),
				logging.String("task", task.Name()),
				logging.Int("depth", s.depth),
			)
			return ErrQueueFull
		}
		l.queue = append(l.queue, task)
		l.mu.Unlock()
		s.reportPending(1)
		return nil
	}
	l.running = task
	if l.driving {
		l.handoff = task
		l.mu.Unlock()
		return nil
	}
	l.driving = true
	l.mu.Unlock()

	s.drive(idx, l, task)
	return nil
}

// drive starts task and any task promoted while doing so. It returns once the
// running task suspended or the loop ran dry.
func (s *TaskScheduler) drive(idx ue.Index, l *controlLoop, task *async.Task) {
	for task != nil {
		t := task
		t.OnComplete(func(done *async.Task) { s.completed(idx, l, done) })
		if t.State() == async.StatePending {
			s.log.Debug(t.Context(), "ue task started",
				logging.Uint64("ue_index", uint64(idx)),
				logging.String("task", t.Name()),
			)
			t.Start()
		}

		l.mu.Lock()
		task = l.handoff
		l.handoff = nil
		if task == nil {
			l.driving = false
		}
		l.mu.Unlock()
	}
}

// completed clears the running slot and promotes the next pending task in the
// same critical section, so no observer can see two running tasks.
func (s *TaskScheduler) completed(idx ue.Index, l *controlLoop, done *async.Task) {
	l.mu.Lock()
	invariant.Checkf(l.running == done, "scheduler: completion of %q which is not running on %s", done.Name(), idx)
	l.running = nil
	var next *async.Task
	if len(l.queue) > 0 {
		next = l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.running = next
	}
	startHere := false
	if next != nil {
		if l.driving {
			l.handoff = next
		} else {
			l.driving = true
			startHere = true
		}
	}
	l.mu.Unlock()

	if next != nil {
		s.reportPending(-1)
	}
	if s.metrics != nil {
		s.metrics.IncTaskCompleted(done.State().String())
	}
	s.log.Debug(done.Context(), "ue task finished",
		logging.Uint64("ue_index", uint64(idx)),
		logging.String("task", done.Name()),
		logging.String("state", done.State().String()),
	)
	if startHere {
		s.drive(idx, l, next)
	}
}

// ClearPendingTasks cancels every task of idx that has not started yet and
// returns how many were dropped. The running task is unaffected.
func (s *TaskScheduler) ClearPendingTasks(idx ue.Index) int {
	l := s.loop(idx)
	l.mu.Lock()
	dropped := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, t := range dropped {
		t.Cancel()
	}
	if n := len(dropped); n > 0 {
		s.reportPending(-n)
		s.log.Info(context.Background(), "cleared pending ue tasks",
			logging.Uint64("ue_index", uint64(idx)),
			logging.Int("count", n),
		)
	}
	return len(dropped)
}

// Pending returns the number of tasks of idx waiting to run.
func (s *TaskScheduler) Pending(idx ue.Index) int {
	l := s.loop(idx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Running returns the running task of idx, or nil.
func (s *TaskScheduler) Running(idx ue.Index) *async.Task {
	l := s.loop(idx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// MakeTimer returns a timer whose callbacks run on the control executor.
func (s *TaskScheduler) MakeTimer() *timers.Timer {
	return s.timers.CreateOn(s.ctrl)
}

// Timers returns the timer manager backing MakeTimer.
func (s *TaskScheduler) Timers() *timers.Manager { return s.timers }

func (s *TaskScheduler) reportPending(delta int) {
	n := s.pending.Add(int64(delta))
	if s.metrics != nil {
		s.metrics.SetTasksPending(int(n))
	}
}
