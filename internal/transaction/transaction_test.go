package transaction

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
)

type missCounter map[string]int

func (m missCounter) IncCorrelationMiss(protocol string) { m[protocol]++ }

func awaitTask(txn async.Awaitable) *async.Task {
	task := async.New("await", func(async.Result) async.Next {
		return async.Await(txn, func(in async.Result) async.Next {
			if in.Err != nil {
				return async.Fail(in.Err)
			}
			return async.Return(in.Value)
		})
	})
	task.Start()
	return task
}

func TestDeliverResolvesMatchingTransaction(t *testing.T) {
	m := NewManager[uint32]("e1ap", nil, nil)
	txn, err := m.Begin(7)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	task := awaitTask(txn)

	if !m.Deliver(7, "resp") {
		t.Fatalf("Deliver reported a miss")
	}
	if v, _ := async.ResultAs[string](task); v != "resp" {
		t.Fatalf("result = %q", v)
	}
	if m.Outstanding() != 0 {
		t.Fatalf("transaction still outstanding")
	}
}

func TestDeliverBeforeAwait(t *testing.T) {
	m := NewManager[uint32]("f1ap", nil, nil)
	txn, _ := m.Begin(1)
	m.Deliver(1, 99)
	task := awaitTask(txn)
	if v, _ := async.ResultAs[int](task); v != 99 {
		t.Fatalf("result = %d", v)
	}
}

func TestUnmatchedResponseIsCountedAndDropped(t *testing.T) {
	misses := missCounter{}
	m := NewManager[uint32]("e1ap", nil, misses)
	if m.Deliver(3, "stray") {
		t.Fatalf("Deliver of stray response reported success")
	}
	if misses["e1ap"] != 1 {
		t.Fatalf("misses = %v", misses)
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	m := NewManager[uint32]("f1ap", nil, nil)
	if _, err := m.Begin(1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := m.Begin(1); !errors.Is(err, ErrKeyInUse) {
		t.Fatalf("second Begin = %v", err)
	}
}

func TestCancelledWaiterReleasesKey(t *testing.T) {
	misses := missCounter{}
	m := NewManager[uint32]("e1ap", nil, misses)
	txn, _ := m.Begin(4)
	task := awaitTask(txn)
	task.Cancel()

	if m.Has(4) {
		t.Fatalf("cancelled transaction still outstanding")
	}
	if m.Deliver(4, "late") {
		t.Fatalf("late response should be a miss")
	}
	if misses["e1ap"] != 1 {
		t.Fatalf("misses = %v", misses)
	}
}

func TestAbortAll(t *testing.T) {
	m := NewManager[uint32]("f1ap", nil, nil)
	a, _ := m.Begin(1)
	b, _ := m.Begin(2)
	ta, tb := awaitTask(a), awaitTask(b)

	if n := m.AbortAll(); n != 2 {
		t.Fatalf("AbortAll = %d", n)
	}
	for _, task := range []*async.Task{ta, tb} {
		if _, err := task.Result(); !errors.Is(err, ErrAborted) {
			t.Fatalf("err = %v", err)
		}
	}
}

func TestAbortWithoutOutstandingIsNotAMiss(t *testing.T) {
	misses := missCounter{}
	m := NewManager[uint32]("e1ap", nil, misses)
	txn, _ := m.Begin(5)
	task := awaitTask(txn)
	if !m.Deliver(5, "resp") {
		t.Fatalf("Deliver of matched response failed")
	}
	if task.State() != async.StateSucceeded {
		t.Fatalf("state = %s", task.State())
	}
	if m.Abort(5, nil) {
		t.Fatalf("Abort of resolved transaction reported success")
	}
	if m.Abort(6, nil) {
		t.Fatalf("Abort of unknown key reported success")
	}
	if len(misses) != 0 {
		t.Fatalf("misses = %v, want none", misses)
	}
}

func TestCloseForgetsTransaction(t *testing.T) {
	m := NewManager[uint32]("f1ap", nil, nil)
	txn, _ := m.Begin(9)
	txn.Close()
	if m.Has(9) {
		t.Fatalf("closed transaction still outstanding")
	}
	if _, err := m.Begin(9); err != nil {
		t.Fatalf("key not reusable after Close: %v", err)
	}
}

func TestIDPoolSkipsInUse(t *testing.T) {
	p := NewIDPool(4)
	used := map[uint32]bool{1: true}
	inUse := func(id uint32) bool { return used[id] }

	var got []uint32
	for i := 0; i < 5; i++ {
		id, ok := p.Next(inUse)
		if !ok {
			t.Fatalf("pool exhausted early")
		}
		got = append(got, id)
	}
	want := []uint32{0, 2, 3, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}

	if _, ok := p.Next(func(uint32) bool { return true }); ok {
		t.Fatalf("pool should be exhausted")
	}
}
