// Package transaction correlates outgoing requests with their responses.
// A procedure opens a transaction under a key before it sends the request,
// then awaits it; the protocol handler delivers responses by key.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

var (
	// ErrKeyInUse is returned by Begin when a transaction with the same key
	// is outstanding.
	ErrKeyInUse = errors.New("transaction: key already in use")
	// ErrAborted resolves transactions closed by Abort or AbortAll.
	ErrAborted = errors.New("transaction: aborted")
)

// MissRecorder counts responses that matched no outstanding transaction.
type MissRecorder interface {
	IncCorrelationMiss(protocol string)
}

// Manager tracks outstanding transactions keyed by K.
type Manager[K comparable] struct {
	name    string
	log     logging.Logger
	metrics MissRecorder

	mu          sync.Mutex
	outstanding map[K]*Transaction[K]
}

// NewManager returns a manager. name labels logs and metrics (for example
// "f1ap" or "e1ap").
func NewManager[K comparable](name string, log logging.Logger, metrics MissRecorder) *Manager[K] {
	return &Manager[K]{
		name:        name,
		log:         logging.OrNoop(log).With(logging.String("protocol", name)),
		metrics:     metrics,
		outstanding: make(map[K]*Transaction[K]),
	}
}

// Begin opens a transaction under key.
func (m *Manager[K]) Begin(key K) (*Transaction[K], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.outstanding[key]; ok {
		return nil, fmt.Errorf("%w: %v", ErrKeyInUse, key)
	}
	t := &Transaction[K]{m: m, key: key}
	m.outstanding[key] = t
	return t, nil
}

// Deliver resolves the transaction under key with resp. It reports false,
// and logs the miss, when no transaction is outstanding under key.
func (m *Manager[K]) Deliver(key K, resp any) bool {
	if m.resolve(key, resp, nil) {
		return true
	}
	m.log.Warn(context.Background(), "response matches no outstanding transaction, dropped",
		logging.Any("key", key),
		logging.String("response", fmt.Sprintf("%T", resp)),
	)
	if m.metrics != nil {
		m.metrics.IncCorrelationMiss(m.name)
	}
	return false
}

// Abort resolves the transaction under key with err. It reports false when
// nothing is outstanding under key, which is not a correlation miss.
func (m *Manager[K]) Abort(key K, err error) bool {
	if err == nil {
		err = ErrAborted
	}
	return m.resolve(key, nil, err)
}

// AbortAll resolves every outstanding transaction with ErrAborted.
func (m *Manager[K]) AbortAll() int {
	m.mu.Lock()
	pending := make([]*Transaction[K], 0, len(m.outstanding))
	for k, t := range m.outstanding {
		pending = append(pending, t)
		delete(m.outstanding, k)
	}
	m.mu.Unlock()
	for _, t := range pending {
		t.resolve(nil, ErrAborted)
	}
	return len(pending)
}

// Outstanding returns the number of open transactions.
func (m *Manager[K]) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outstanding)
}

func (m *Manager[K]) resolve(key K, resp any, err error) bool {
	m.mu.Lock()
	t, ok := m.outstanding[key]
	if ok {
		delete(m.outstanding, key)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	t.resolve(resp, err)
	return true
}

func (m *Manager[K]) forget(t *Transaction[K]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.outstanding[t.key]; ok && cur == t {
		delete(m.outstanding, t.key)
	}
}

// Transaction is one outstanding request. It is an awaitable: it resolves
// with the delivered response, or with the abort error.
type Transaction[K comparable] struct {
	m   *Manager[K]
	key K

	mu       sync.Mutex
	done     bool
	resp     any
	err      error
	resume   func(async.Result)
	released bool
}

// Key returns the transaction's key.
func (t *Transaction[K]) Key() K { return t.key }

func (t *Transaction[K]) resolve(resp any, err error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.resp, t.err = resp, err
	resume := t.resume
	t.resume = nil
	t.mu.Unlock()
	if resume != nil {
		resume(async.Result{Value: resp, Err: err})
	}
}

// Subscribe registers resume for the resolution, calling it at once if the
// transaction already resolved. The returned release closes the transaction
// if it is still open, so a late response becomes a correlation miss.
func (t *Transaction[K]) Subscribe(resume func(async.Result)) func() {
	t.mu.Lock()
	if t.done {
		r := async.Result{Value: t.resp, Err: t.err}
		t.mu.Unlock()
		resume(r)
		return func() {}
	}
	t.resume = resume
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		if t.released || t.done {
			t.mu.Unlock()
			return
		}
		t.released = true
		t.resume = nil
		t.mu.Unlock()
		t.m.forget(t)
	}
}

// Close abandons the transaction without resolving it, for instance when the
// request could not be sent.
func (t *Transaction[K]) Close() {
	t.mu.Lock()
	if t.released || t.done {
		t.mu.Unlock()
		return
	}
	t.released = true
	t.resume = nil
	t.mu.Unlock()
	t.m.forget(t)
}

// Has reports whether a transaction is outstanding under key.
func (m *Manager[K]) Has(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.outstanding[key]
	return ok
}

// IDPool hands out protocol transaction identifiers in [0, size) round robin.
type IDPool struct {
	mu   sync.Mutex
	next uint32
	size uint32
}

// NewIDPool returns a pool of size identifiers.
func NewIDPool(size uint32) *IDPool {
	if size == 0 {
		size = 1
	}
	return &IDPool{size: size}
}

// Next returns the next identifier for which inUse reports false, or false
// when every identifier is in use.
func (p *IDPool) Next(inUse func(uint32) bool) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := uint32(0); i < p.size; i++ {
		id := (p.next + i) % p.size
		if inUse != nil && inUse(id) {
			continue
		}
		p.next = (id + 1) % p.size
		return id, true
	}
	return 0, false
}
