package async

import (
	"errors"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
)

var (
	// ErrTimedOut resolves a WithTimeout await whose timer expired first.
	ErrTimedOut = errors.New("async: await timed out")
	// ErrNotDispatched resolves a Dispatch await the executor refused.
	ErrNotDispatched = errors.New("async: executor refused continuation")
)

// Awaitable is anything a task can suspend on.
//
// Subscribe arranges for resume to be called at most once, when the awaitable
// resolves; it may call resume before returning. The returned function
// withdraws the subscription and releases what backs it (a timer, a pending
// transaction, a child task). Calling it after resolution is harmless.
type Awaitable interface {
	Subscribe(resume func(Result)) (release func())
}

// AwaitableFunc adapts a function to Awaitable.
type AwaitableFunc func(resume func(Result)) func()

func (f AwaitableFunc) Subscribe(resume func(Result)) func() { return f(resume) }

func noop() {}

// Ready is an awaitable that resolves immediately with r.
func Ready(r Result) Awaitable {
	return AwaitableFunc(func(resume func(Result)) func() {
		resume(r)
		return noop
	})
}

// Dispatch hops to exec: the awaiting task resumes on exec. The resolution
// carries no value; a refused hop resolves with ErrNotDispatched.
func Dispatch(exec executor.Executor) Awaitable {
	return AwaitableFunc(func(resume func(Result)) func() {
		if !exec.Execute(func() { resume(Result{}) }) {
			resume(Result{Err: ErrNotDispatched})
		}
		return noop
	})
}

// Timer is what Sleep and WithTimeout need from a timer.
type Timer interface {
	Set(ticks uint32, callback func())
	Stop()
}

// Sleep resolves after the given number of ticks of t.
func Sleep(t Timer, ticks uint32) Awaitable {
	return AwaitableFunc(func(resume func(Result)) func() {
		t.Set(ticks, func() { resume(Result{}) })
		return t.Stop
	})
}

// WithTimeout resolves with a's resolution, or with ErrTimedOut if t expires
// first. Whichever side loses is released.
func WithTimeout(a Awaitable, t Timer, ticks uint32) Awaitable {
	return AwaitableFunc(func(resume func(Result)) func() {
		var (
			mu       sync.Mutex
			resolved bool
			inner    func()
		)
		settle := func() bool {
			mu.Lock()
			defer mu.Unlock()
			if resolved {
				return false
			}
			resolved = true
			return true
		}

		t.Set(ticks, func() {
			if !settle() {
				return
			}
			mu.Lock()
			rel := inner
			mu.Unlock()
			if rel != nil {
				rel()
			}
			resume(Result{Err: ErrTimedOut})
		})

		rel := a.Subscribe(func(r Result) {
			if !settle() {
				return
			}
			t.Stop()
			resume(r)
		})
		mu.Lock()
		inner = rel
		mu.Unlock()

		return func() {
			t.Stop()
			rel()
		}
	})
}

// Trigger is a one-shot event set from outside a task.
type Trigger struct {
	mu      sync.Mutex
	fired   bool
	result  Result
	waiters []waiter
	nextID  uint64
}

// NewTrigger returns an unfired trigger.
func NewTrigger() *Trigger { return &Trigger{} }

// Set fires the trigger with v. Only the first Set or SetError has effect; it
// reports whether this call fired the trigger.
func (tr *Trigger) Set(v any) bool { return tr.fire(Result{Value: v}) }

// SetError fires the trigger with err.
func (tr *Trigger) SetError(err error) bool { return tr.fire(Result{Err: err}) }

// Fired reports whether the trigger fired.
func (tr *Trigger) Fired() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.fired
}

func (tr *Trigger) fire(r Result) bool {
	tr.mu.Lock()
	if tr.fired {
		tr.mu.Unlock()
		return false
	}
	tr.fired = true
	tr.result = r
	ws := tr.waiters
	tr.waiters = nil
	tr.mu.Unlock()
	for _, w := range ws {
		w.fn(r)
	}
	return true
}

func (tr *Trigger) Subscribe(resume func(Result)) func() {
	tr.mu.Lock()
	if tr.fired {
		r := tr.result
		tr.mu.Unlock()
		resume(r)
		return noop
	}
	tr.nextID++
	id := tr.nextID
	tr.waiters = append(tr.waiters, waiter{id: id, fn: resume})
	tr.mu.Unlock()
	return func() {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		for i, w := range tr.waiters {
			if w.id == id {
				tr.waiters = append(tr.waiters[:i], tr.waiters[i+1:]...)
				return
			}
		}
	}
}
