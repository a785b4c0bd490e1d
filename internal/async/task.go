// Package async implements resumable tasks. A Task is a chain of Steps; a
// step either finishes the task or suspends it on an Awaitable, naming the
// step to run once the awaitable resolves. A suspended task holds no
// goroutine: it is resumed on whichever goroutine resolves what it awaits.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/invariant"
)

// ErrCancelled is the error of a task that was cancelled.
var ErrCancelled = errors.New("async: task cancelled")

// State is the lifecycle state of a Task.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateSuspended
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Result is the outcome of an awaited operation, and of a finished task.
type Result struct {
	Value any
	Err   error
}

// Step is one segment of a task. in is the resolution of whatever the task
// awaited before this step; the first step receives a zero Result.
type Step func(in Result) Next

type nextKind uint8

const (
	nextReturn nextKind = iota + 1
	nextFail
	nextAwait
)

// Next is what a step asks the task to do once it returns.
type Next struct {
	kind  nextKind
	value any
	err   error
	await Awaitable
	then  Step
}

// Return completes the task successfully with v.
func Return(v any) Next { return Next{kind: nextReturn, value: v} }

// Fail completes the task with err.
func Fail(err error) Next {
	invariant.Check(err != nil, "async: Fail called with nil error")
	return Next{kind: nextFail, err: err}
}

// Await suspends the task on a and runs then with its resolution.
func Await(a Awaitable, then Step) Next {
	invariant.Check(a != nil, "async: Await on nil awaitable")
	invariant.Check(then != nil, "async: Await with nil continuation")
	return Next{kind: nextAwait, await: a, then: then}
}

type waiter struct {
	id uint64
	fn func(Result)
}

// Task is a resumable computation.
type Task struct {
	name string
	ctx  context.Context

	mu        sync.Mutex
	state     State
	step      Step
	result    Result
	cancelReq bool
	// gen identifies the current suspension; resumes carrying an older
	// generation are stale and dropped.
	gen     uint64
	release func()
	driving bool
	handoff *Result
	waiters []waiter
	nextID  uint64
	done    chan struct{}
}

// New returns a pending task that runs first when started.
func New(name string, first Step) *Task {
	return NewWithContext(context.Background(), name, first)
}

// NewWithContext is New with a context that travels with the task (for
// logging and tracing; the task does not watch it for cancellation).
func NewWithContext(ctx context.Context, name string, first Step) *Task {
	invariant.Check(first != nil, "async: task without a first step")
	if ctx == nil {
		ctx = context.Background()
	}
	return &Task{
		name: name,
		ctx:  ctx,
		step: first,
		done: make(chan struct{}),
	}
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Context returns the task's context.
func (t *Task) Context() context.Context { return t.ctx }

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Start runs the task until its first suspension or completion. Starting a
// task twice is a programming error.
func (t *Task) Start() {
	t.mu.Lock()
	invariant.Checkf(t.state == StatePending, "async: start of task %q in state %s", t.name, t.state)
	t.state = StateRunning
	t.driving = true
	t.mu.Unlock()
	t.drive(Result{})
}

// Cancel requests cancellation and reports whether the task was not already
// finished. A pending task is cancelled without running any step. A suspended
// task is cancelled at once and what it awaited is released. A running task
// is cancelled at its next suspension point.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	switch t.state {
	case StatePending:
		t.finishLocked(StateCancelled, Result{Err: ErrCancelled})
		t.mu.Unlock()
		t.notify()
		return true
	case StateSuspended:
		rel := t.release
		t.release = nil
		t.gen++
		t.finishLocked(StateCancelled, Result{Err: ErrCancelled})
		t.mu.Unlock()
		if rel != nil {
			rel()
		}
		t.notify()
		return true
	case StateRunning:
		t.cancelReq = true
		t.mu.Unlock()
		return true
	default:
		t.mu.Unlock()
		return false
	}
}

// OnComplete registers fn to run once the task finishes. If the task already
// finished, fn runs immediately. Callbacks run in registration order on the
// goroutine that finished the task.
func (t *Task) OnComplete(fn func(*Task)) {
	t.subscribe(func(Result) { fn(t) })
}

// Result returns the value and error of a finished task. Calling it before
// the task finished is a programming error.
func (t *Task) Result() (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	invariant.Checkf(t.state.Done(), "async: result of unfinished task %q (%s)", t.name, t.state)
	return t.result.Value, t.result.Err
}

// Subscribe lets a task await another task. Awaiting a pending task starts it;
// releasing the subscription before the child finished cancels the child.
func (t *Task) Subscribe(resume func(Result)) func() {
	id, pending := t.subscribe(resume)
	if pending {
		t.startIfPending()
	}
	return func() {
		t.unsubscribe(id)
		t.Cancel()
	}
}

func (t *Task) subscribe(fn func(Result)) (id uint64, pending bool) {
	t.mu.Lock()
	if t.state.Done() {
		r := t.result
		t.mu.Unlock()
		fn(r)
		return 0, false
	}
	t.nextID++
	id = t.nextID
	t.waiters = append(t.waiters, waiter{id: id, fn: fn})
	pending = t.state == StatePending
	t.mu.Unlock()
	return id, pending
}

func (t *Task) unsubscribe(id uint64) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, w := range t.waiters {
		if w.id == id {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

func (t *Task) startIfPending() {
	t.mu.Lock()
	if t.state != StatePending {
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.driving = true
	t.mu.Unlock()
	t.drive(Result{})
}

// drive runs steps until the task finishes or parks on an awaitable that did
// not resolve synchronously. Synchronous resolutions are handed back to the
// loop instead of recursing.
func (t *Task) drive(in Result) {
	for {
		t.mu.Lock()
		step := t.step
		t.mu.Unlock()

		next := step(in)

		switch next.kind {
		case nextReturn:
			t.complete(StateSucceeded, Result{Value: next.value})
			return
		case nextFail:
			t.complete(StateFailed, Result{Err: next.err})
			return
		case nextAwait:
		default:
			invariant.Violatef("async: step of task %q returned an empty Next", t.name)
			return
		}

		t.mu.Lock()
		if t.cancelReq {
			t.mu.Unlock()
			t.complete(StateCancelled, Result{Err: ErrCancelled})
			return
		}
		t.step = next.then
		t.gen++
		gen := t.gen
		t.state = StateSuspended
		t.mu.Unlock()

		release := next.await.Subscribe(func(r Result) { t.wake(gen, r) })

		t.mu.Lock()
		if t.handoff != nil {
			in = *t.handoff
			t.handoff = nil
			t.mu.Unlock()
			continue
		}
		if t.state == StateSuspended && t.gen == gen {
			t.release = release
			t.driving = false
			t.mu.Unlock()
			return
		}
		// Cancelled while subscribing.
		t.driving = false
		t.mu.Unlock()
		if release != nil {
			release()
		}
		return
	}
}

func (t *Task) wake(gen uint64, r Result) {
	t.mu.Lock()
	if t.state != StateSuspended || t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.release = nil
	t.state = StateRunning
	if t.driving {
		t.handoff = &r
		t.mu.Unlock()
		return
	}
	t.driving = true
	t.mu.Unlock()
	t.drive(r)
}

func (t *Task) complete(state State, r Result) {
	t.mu.Lock()
	t.driving = false
	t.finishLocked(state, r)
	t.mu.Unlock()
	t.notify()
}

func (t *Task) finishLocked(state State, r Result) {
	t.state = state
	t.result = r
	t.step = nil
	close(t.done)
}

func (t *Task) notify() {
	t.mu.Lock()
	ws := t.waiters
	t.waiters = nil
	r := t.result
	t.mu.Unlock()
	for _, w := range ws {
		w.fn(r)
	}
}

// Value extracts a typed value from r.
func Value[T any](r Result) (T, error) {
	var zero T
	if r.Err != nil {
		return zero, r.Err
	}
	if r.Value == nil {
		return zero, nil
	}
	v, ok := r.Value.(T)
	if !ok {
		return zero, fmt.Errorf("async: result is %T, not %T", r.Value, zero)
	}
	return v, nil
}

// ResultAs returns the typed result of a finished task.
func ResultAs[T any](t *Task) (T, error) {
	v, err := t.Result()
	return Value[T](Result{Value: v, Err: err})
}
