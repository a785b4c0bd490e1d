// Package invariant reports programming errors. A violated invariant is never
// a runtime condition the caller can recover from: the default handler panics.
package invariant

import (
	"fmt"
	"sync"
)

// ViolationError is the value passed to the violation handler (and, by
// default, to panic).
type ViolationError struct {
	Statement string
}

func (err ViolationError) Error() string {
	return "invariant violation: " + err.Statement
}

// ViolationHandler decides what happens when an invariant is violated.
type ViolationHandler interface {
	Handle(ViolationError)
}

// HandlerFunc adapts a function to ViolationHandler.
type HandlerFunc func(ViolationError)

func (f HandlerFunc) Handle(err ViolationError) { f(err) }

type panicHandler struct{}

func (panicHandler) Handle(err ViolationError) { panic(err) }

var std = struct {
	mu      sync.RWMutex
	handler ViolationHandler
}{
	handler: panicHandler{},
}

// Check reports a violation when cond is false.
func Check(cond bool, statement string) {
	if !cond {
		Violate(statement)
	}
}

// Checkf is Check with a formatted statement. The arguments are only
// formatted on failure.
func Checkf(cond bool, format string, args ...any) {
	if !cond {
		Violatef(format, args...)
	}
}

// Violate unconditionally reports a violation.
func Violate(statement string) {
	std.mu.RLock()
	h := std.handler
	std.mu.RUnlock()
	h.Handle(ViolationError{Statement: statement})
}

// Violatef is Violate with a formatted statement.
func Violatef(format string, args ...any) {
	Violate(fmt.Sprintf(format, args...))
}

// SetHandler swaps the violation handler and returns the previous one. Passing
// nil restores the panicking default.
func SetHandler(h ViolationHandler) ViolationHandler {
	if h == nil {
		h = panicHandler{}
	}
	std.mu.Lock()
	defer std.mu.Unlock()
	prev := std.handler
	std.handler = h
	return prev
}
