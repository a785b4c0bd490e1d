package executor

import "sync"

// Manual queues tasks until the test drains it. It gives tests full control
// over when a hop to another execution context takes effect.
type Manual struct {
	mu      sync.Mutex
	pending []func()
	refuse  bool
}

// NewManual returns an empty manual executor.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) Execute(task func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse {
		return false
	}
	m.pending = append(m.pending, task)
	return true
}

// Refuse makes subsequent Execute calls report false.
func (m *Manual) Refuse(refuse bool) {
	m.mu.Lock()
	m.refuse = refuse
	m.mu.Unlock()
}

// Len returns the number of queued tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RunOne runs the oldest queued task and reports whether there was one.
func (m *Manual) RunOne() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	task := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	task()
	return true
}

// RunPending runs queued tasks, including ones queued while draining, until
// the queue is empty. It returns the number of tasks run.
func (m *Manual) RunPending() int {
	n := 0
	for m.RunOne() {
		n++
	}
	return n
}
