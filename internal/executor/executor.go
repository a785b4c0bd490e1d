// Package executor provides sequential work acceptors. Every executor runs the
// functions it accepts one at a time and in submission order.
package executor

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

// Executor accepts work for sequential execution. Execute reports false when
// the work was not accepted (queue full or executor stopped).
type Executor interface {
	Execute(task func()) bool
}

// Func adapts a function to Executor.
type Func func(task func()) bool

func (f Func) Execute(task func()) bool { return f(task) }

// Inline runs every task immediately on the calling goroutine.
var Inline Executor = Func(func(task func()) bool {
	task()
	return true
})

// Worker is an executor backed by a single goroutine draining a bounded
// queue.
type Worker struct {
	name  string
	log   logging.Logger
	queue chan func()

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker starts a worker with the given queue capacity.
func NewWorker(name string, queueSize int, log logging.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		name:   name,
		log:    logging.OrNoop(log).With(logging.String("executor", name)),
		queue:  make(chan func(), queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// Execute enqueues task without blocking.
func (w *Worker) Execute(task func()) bool {
	if task == nil {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.queue <- task:
		return true
	default:
		w.log.Warn(context.Background(), "executor queue is full", logging.Int("capacity", cap(w.queue)))
		return false
	}
}

// Len reports the number of queued tasks.
func (w *Worker) Len() int { return len(w.queue) }

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case task, ok := <-w.queue:
			if !ok {
				return
			}
			w.invoke(task)
		}
	}
}

func (w *Worker) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error(context.Background(), "executor task panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			panic(r)
		}
	}()
	task()
}

// Stop discards queued tasks, waits for the current one and stops the worker.
func (w *Worker) Stop() {
	if !w.markStopped() {
		<-w.done
		return
	}
cleanup:
	for {
		select {
		case <-w.queue:
		default:
			break cleanup
		}
	}
	w.cancel()
	<-w.done
}

// StopWait stops accepting work and waits until every queued task ran.
func (w *Worker) StopWait() {
	if w.markStopped() {
		close(w.queue)
	}
	<-w.done
}

func (w *Worker) markStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.stopped = true
	return true
}
