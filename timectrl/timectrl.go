// Package timectrl drives the control plane's notion of time. A
// TimeController advances a clock by a fixed quantum and notifies listeners
// on every step; timer managers hang off those listeners.
package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock gives read access to controller time.
type Clock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Quantum.
	Accelerated
)

// ParseMode maps "realtime" and "accelerated" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "realtime", "real-time":
		return RealTime, nil
	case "accelerated":
		return Accelerated, nil
	default:
		return RealTime, fmt.Errorf("timectrl: unknown mode %q", s)
	}
}

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController drives time and notifies registered listeners. Listeners
// run on the goroutine that advances time, in registration order.
type TimeController struct {
	mu      sync.RWMutex
	start   time.Time
	quantum time.Duration
	mode    Mode

	current   time.Time
	steps     uint64
	listeners []func(time.Time)
}

// NewTimeController constructs a controller. The quantum must be positive.
func NewTimeController(start time.Time, quantum time.Duration, mode Mode) (*TimeController, error) {
	if quantum <= 0 {
		return nil, fmt.Errorf("timectrl: quantum must be positive, got %s", quantum)
	}
	return &TimeController{
		start:   start,
		quantum: quantum,
		mode:    mode,
		current: start,
	}, nil
}

// Now returns the current controller time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// Quantum is the amount of time one step advances.
func (tc *TimeController) Quantum() time.Duration { return tc.quantum }

// Steps returns how many steps have run.
func (tc *TimeController) Steps() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// AddListener registers a callback invoked on every step.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances time by one quantum and notifies the listeners.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.current = tc.current.Add(tc.quantum)
	tc.steps++
	now := tc.current
	listeners := tc.listeners
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Run steps until ctx is done or, when duration is positive, until duration
// of controller time has elapsed. It returns nil in both cases.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	var elapsed time.Duration
	done := func() bool { return duration > 0 && elapsed >= duration }

	if tc.mode == Accelerated {
		for !done() {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			tc.Step()
			elapsed += tc.quantum
		}
		return nil
	}

	ticker := time.NewTicker(tc.quantum)
	defer ticker.Stop()
	for !done() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tc.Step()
			elapsed += tc.quantum
		}
	}
	return nil
}

// Start runs the controller for the specified duration in a separate
// goroutine. It returns a channel that is closed when the controller
// finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(ctx, duration)
	}()
	return done
}
