package timers

import (
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
)

type countingMetrics struct {
	mu      sync.Mutex
	armed   int
	expired int
}

func (c *countingMetrics) SetTimersArmed(n int) {
	c.mu.Lock()
	c.armed = n
	c.mu.Unlock()
}

func (c *countingMetrics) IncTimerExpired() {
	c.mu.Lock()
	c.expired++
	c.mu.Unlock()
}

func TestTimerFiresOnExactTick(t *testing.T) {
	for _, d := range []uint32{1, 2, 7, 40} {
		m := NewManager()
		timer := m.Create()
		firedAt := uint64(0)
		timer.Set(d, func() { firedAt = m.Now() })

		for i := uint32(1); i < d; i++ {
			m.Tick()
			if firedAt != 0 {
				t.Fatalf("D=%d: fired early at tick %d", d, firedAt)
			}
			if !timer.IsRunning() {
				t.Fatalf("D=%d: timer not running before expiry", d)
			}
		}
		m.Tick()
		if firedAt != uint64(d) {
			t.Fatalf("D=%d: fired at tick %d", d, firedAt)
		}
		if timer.State() != StateIdle {
			t.Fatalf("D=%d: state after firing = %s", d, timer.State())
		}
	}
}

func TestZeroDurationFiresOnNextTick(t *testing.T) {
	m := NewManager()
	fired := 0
	m.Create().Set(0, func() { fired++ })
	m.Tick()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestStopPreventsFiring(t *testing.T) {
	m := NewManager()
	timer := m.Create()
	fired := false
	timer.Set(3, func() { fired = true })
	m.Tick()
	timer.Stop()
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if m.Armed() != 0 {
		t.Fatalf("armed = %d after stop", m.Armed())
	}
}

func TestStopAfterExpiryBeforeDispatchSuppressesCallback(t *testing.T) {
	m := NewManager()
	exec := executor.NewManual()
	timer := m.CreateOn(exec)
	fired := false
	timer.Set(1, func() { fired = true })

	m.Tick()
	if timer.State() != StateExpired {
		t.Fatalf("state = %s, want expired", timer.State())
	}
	if exec.Len() != 1 {
		t.Fatalf("callback not handed to executor")
	}
	timer.Stop()
	exec.RunPending()
	if fired {
		t.Fatalf("callback ran after stop")
	}
}

func TestRearmRestartsTimer(t *testing.T) {
	m := NewManager()
	timer := m.Create()
	var fired []uint64
	timer.Set(2, func() { fired = append(fired, m.Now()) })
	m.Tick()
	timer.Set(3, func() { fired = append(fired, m.Now()) })
	for i := 0; i < 6; i++ {
		m.Tick()
	}
	if len(fired) != 1 || fired[0] != 4 {
		t.Fatalf("fired = %v, want [4]", fired)
	}
}

func TestPeriodicTimer(t *testing.T) {
	m := NewManager()
	timer := m.Create()
	var fired []uint64
	timer.SetPeriodic(3, func() { fired = append(fired, m.Now()) })
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	timer.Stop()
	for i := 0; i < 10; i++ {
		m.Tick()
	}
	want := []uint64{3, 6, 9}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired = %v, want %v", fired, want)
		}
	}
}

func TestCallbacksFireInExpiryOrder(t *testing.T) {
	m := NewManager()
	var order []string
	m.Create().Set(2, func() { order = append(order, "b") })
	m.Create().Set(1, func() { order = append(order, "a") })
	m.Create().Set(2, func() { order = append(order, "c") })
	m.Tick()
	m.Tick()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v", order)
	}
}

func TestCallbackMayRearm(t *testing.T) {
	m := NewManager()
	timer := m.Create()
	count := 0
	var cb func()
	cb = func() {
		count++
		if count < 3 {
			timer.Set(1, cb)
		}
	}
	timer.Set(1, cb)
	for i := 0; i < 5; i++ {
		m.Tick()
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestMetricsRecorder(t *testing.T) {
	rec := &countingMetrics{}
	m := NewManager(WithMetrics(rec))
	m.Create().Set(1, func() {})
	m.Create().Set(5, func() {})
	if rec.armed != 2 {
		t.Fatalf("armed = %d, want 2", rec.armed)
	}
	m.Tick()
	if rec.armed != 1 || rec.expired != 1 {
		t.Fatalf("armed = %d expired = %d", rec.armed, rec.expired)
	}
}

func TestTicksFor(t *testing.T) {
	cases := []struct {
		d, q time.Duration
		want uint32
	}{
		{time.Second, time.Millisecond, 1000},
		{1500 * time.Microsecond, time.Millisecond, 2},
		{0, time.Millisecond, 0},
		{time.Second, 0, 0},
	}
	for _, c := range cases {
		if got := TicksFor(c.d, c.q); got != c.want {
			t.Fatalf("TicksFor(%v, %v) = %d, want %d", c.d, c.q, got, c.want)
		}
	}
}
