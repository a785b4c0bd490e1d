package async

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/invariant"
)

// fakeTimer fires only when the test calls expire.
type fakeTimer struct {
	armed   bool
	ticks   uint32
	cb      func()
	stopped int
}

func (f *fakeTimer) Set(ticks uint32, cb func()) {
	f.armed = true
	f.ticks = ticks
	f.cb = cb
}

func (f *fakeTimer) Stop() {
	f.armed = false
	f.stopped++
}

func (f *fakeTimer) expire() {
	if !f.armed {
		return
	}
	f.armed = false
	f.cb()
}

func TestTaskReturnsValue(t *testing.T) {
	task := New("answer", func(Result) Next { return Return(42) })
	if task.State() != StatePending {
		t.Fatalf("new task state = %s", task.State())
	}
	task.Start()

	if task.State() != StateSucceeded {
		t.Fatalf("state = %s, want succeeded", task.State())
	}
	v, err := ResultAs[int](task)
	if err != nil || v != 42 {
		t.Fatalf("ResultAs = %v, %v", v, err)
	}
	select {
	case <-task.Done():
	default:
		t.Fatalf("Done channel not closed")
	}
}

func TestTaskFailure(t *testing.T) {
	boom := errors.New("boom")
	task := New("fail", func(Result) Next { return Fail(boom) })
	task.Start()
	if task.State() != StateFailed {
		t.Fatalf("state = %s", task.State())
	}
	if _, err := task.Result(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartTwiceIsViolation(t *testing.T) {
	var violations int
	prev := invariant.SetHandler(invariant.HandlerFunc(func(v invariant.ViolationError) {
		violations++
		panic(v)
	}))
	defer invariant.SetHandler(prev)

	trig := NewTrigger()
	task := New("once", func(Result) Next {
		return Await(trig, func(Result) Next { return Return(nil) })
	})
	task.Start()
	func() {
		defer func() { _ = recover() }()
		task.Start()
	}()
	if violations == 0 {
		t.Fatalf("second Start was not reported")
	}
}

func TestEmptyNextIsViolation(t *testing.T) {
	var got []string
	prev := invariant.SetHandler(invariant.HandlerFunc(func(v invariant.ViolationError) {
		got = append(got, v.Statement)
	}))
	defer invariant.SetHandler(prev)

	task := New("broken", func(Result) Next { return Next{} })
	task.Start()

	if len(got) != 1 || !strings.Contains(got[0], `"broken"`) || !strings.Contains(got[0], "empty Next") {
		t.Fatalf("violations = %q", got)
	}
	if task.State().Done() {
		t.Fatalf("task finished after an empty Next: %s", task.State())
	}
}

func TestAwaitTriggerSuspendsAndResumes(t *testing.T) {
	trig := NewTrigger()
	var steps []string
	task := New("wait", func(Result) Next {
		steps = append(steps, "first")
		return Await(trig, func(in Result) Next {
			steps = append(steps, "second")
			return Return(in.Value)
		})
	})
	task.Start()

	if task.State() != StateSuspended {
		t.Fatalf("state = %s, want suspended", task.State())
	}
	trig.Set("resp")
	if task.State() != StateSucceeded {
		t.Fatalf("state = %s, want succeeded", task.State())
	}
	if v, _ := ResultAs[string](task); v != "resp" {
		t.Fatalf("result = %q", v)
	}
	if len(steps) != 2 {
		t.Fatalf("steps = %v", steps)
	}
}

func TestNestedTasksCompose(t *testing.T) {
	trig := NewTrigger()
	child := New("child", func(Result) Next {
		return Await(trig, func(in Result) Next {
			n, _ := Value[int](in)
			return Return(n * 2)
		})
	})
	parent := New("parent", func(Result) Next {
		return Await(child, func(in Result) Next {
			n, err := Value[int](in)
			if err != nil {
				return Fail(err)
			}
			return Return(n + 1)
		})
	})

	parent.Start()
	if child.State() != StateSuspended {
		t.Fatalf("awaiting a pending child should start it, child state = %s", child.State())
	}
	trig.Set(20)

	if v, err := ResultAs[int](parent); err != nil || v != 41 {
		t.Fatalf("parent result = %v, %v", v, err)
	}
}

func TestCancelPendingRunsNoSteps(t *testing.T) {
	ran := false
	task := New("never", func(Result) Next { ran = true; return Return(nil) })

	var completed bool
	task.OnComplete(func(*Task) { completed = true })

	if !task.Cancel() {
		t.Fatalf("Cancel on pending task returned false")
	}
	if ran {
		t.Fatalf("cancelled pending task ran a step")
	}
	if task.State() != StateCancelled || !completed {
		t.Fatalf("state = %s completed = %v", task.State(), completed)
	}
	if _, err := task.Result(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelSuspendedReleasesTimer(t *testing.T) {
	timer := &fakeTimer{}
	resumed := false
	task := New("sleep", func(Result) Next {
		return Await(Sleep(timer, 10), func(Result) Next {
			resumed = true
			return Return(nil)
		})
	})
	task.Start()
	if !timer.armed || timer.ticks != 10 {
		t.Fatalf("timer not armed for 10 ticks: %+v", timer)
	}

	task.Cancel()
	if timer.armed || timer.stopped == 0 {
		t.Fatalf("timer still armed after cancel")
	}
	timer.expire()
	if resumed {
		t.Fatalf("cancelled task resumed")
	}
	if task.State() != StateCancelled {
		t.Fatalf("state = %s", task.State())
	}
}

func TestCancelRunningHonoredAtNextSuspension(t *testing.T) {
	trig := NewTrigger()
	var self *Task
	secondRan := false
	self = New("self-cancel", func(Result) Next {
		self.Cancel()
		return Await(trig, func(Result) Next {
			secondRan = true
			return Return(nil)
		})
	})
	self.Start()

	if self.State() != StateCancelled {
		t.Fatalf("state = %s, want cancelled", self.State())
	}
	trig.Set(nil)
	if secondRan {
		t.Fatalf("step after cancellation point ran")
	}
}

func TestCancelParentCancelsChild(t *testing.T) {
	trig := NewTrigger()
	child := New("child", func(Result) Next {
		return Await(trig, func(Result) Next { return Return(nil) })
	})
	parent := New("parent", func(Result) Next {
		return Await(child, func(Result) Next { return Return(nil) })
	})
	parent.Start()
	parent.Cancel()

	if child.State() != StateCancelled {
		t.Fatalf("child state = %s, want cancelled", child.State())
	}
}

func TestSynchronousResolutionsDoNotRecurse(t *testing.T) {
	const rounds = 100000
	n := 0
	var loop Step
	loop = func(Result) Next {
		n++
		if n == rounds {
			return Return(n)
		}
		return Await(Ready(Result{}), loop)
	}
	task := New("loop", loop)
	task.Start()
	if v, _ := ResultAs[int](task); v != rounds {
		t.Fatalf("result = %d", v)
	}
}

func TestDispatchResumesOnExecutor(t *testing.T) {
	exec := executor.NewManual()
	var where []string
	task := New("hop", func(Result) Next {
		where = append(where, "caller")
		return Await(Dispatch(exec), func(in Result) Next {
			if in.Err != nil {
				return Fail(in.Err)
			}
			where = append(where, "executor")
			return Return(nil)
		})
	})
	task.Start()
	if task.State() != StateSuspended || len(where) != 1 {
		t.Fatalf("task should wait for the executor, state = %s", task.State())
	}
	exec.RunPending()
	if task.State() != StateSucceeded || len(where) != 2 {
		t.Fatalf("state = %s where = %v", task.State(), where)
	}
}

func TestDispatchRefused(t *testing.T) {
	exec := executor.NewManual()
	exec.Refuse(true)
	task := New("refused", func(Result) Next {
		return Await(Dispatch(exec), func(in Result) Next { return Fail(in.Err) })
	})
	task.Start()
	if _, err := task.Result(); !errors.Is(err, ErrNotDispatched) {
		t.Fatalf("err = %v", err)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	timer := &fakeTimer{}
	trig := NewTrigger()
	task := New("guarded", func(Result) Next {
		return Await(WithTimeout(trig, timer, 5), func(in Result) Next {
			if in.Err != nil {
				return Fail(in.Err)
			}
			return Return(in.Value)
		})
	})
	task.Start()
	timer.expire()

	if _, err := task.Result(); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want timeout", err)
	}
	// A late trigger changes nothing.
	trig.Set("late")
	if task.State() != StateFailed {
		t.Fatalf("state = %s", task.State())
	}
}

func TestWithTimeoutInnerWins(t *testing.T) {
	timer := &fakeTimer{}
	trig := NewTrigger()
	task := New("guarded", func(Result) Next {
		return Await(WithTimeout(trig, timer, 5), func(in Result) Next { return Return(in.Value) })
	})
	task.Start()
	trig.Set("on time")

	if v, _ := ResultAs[string](task); v != "on time" {
		t.Fatalf("result = %q", v)
	}
	if timer.armed {
		t.Fatalf("guard timer left armed")
	}
}

func TestValueTypeMismatch(t *testing.T) {
	if _, err := Value[int](Result{Value: "x"}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
