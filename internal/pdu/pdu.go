// Package pdu defines the boundary between procedures and the transport that
// carries protocol messages to and from peer network functions.
package pdu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/gnb-controlplane/internal/invariant"
)

// ErrUnknownMessage is returned for message types no one registered.
var ErrUnknownMessage = errors.New("pdu: unknown message type")

// Message is a protocol message. MessageType names it on the wire, for
// example "e1ap.BearerContextSetupRequest".
type Message interface {
	MessageType() string
}

// Notifier sends messages to the peer.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Handler consumes messages received from the peer.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Registry maps message type names to constructors, for decoding.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Message
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Message)}
}

// Register adds constructors. Registering a type name twice is a programming
// error.
func (r *Registry) Register(factories ...func() Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range factories {
		name := f().MessageType()
		_, dup := r.factories[name]
		invariant.Checkf(!dup, "pdu: message type %q registered twice", name)
		r.factories[name] = f
	}
}

// New returns a zero message of the named type.
func (r *Registry) New(name string) (Message, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, name)
	}
	return f(), nil
}

// Types lists the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
