// Package ue holds UE identity: the bounded index that addresses per-UE slots
// and the repository that allocates and releases those slots.
package ue

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Index addresses a UE slot. Valid indices are below the configured UE count.
type Index uint32

// InvalidIndex marks the absence of a UE.
const InvalidIndex Index = math.MaxUint32

// Valid reports whether i is not InvalidIndex.
func (i Index) Valid() bool { return i != InvalidIndex }

func (i Index) String() string {
	if !i.Valid() {
		return "ue=invalid"
	}
	return fmt.Sprintf("ue=%d", uint32(i))
}

var (
	// ErrUnknownUE is returned for indices that are not allocated.
	ErrUnknownUE = errors.New("ue: unknown or released UE")
	// ErrNoFreeIndex is returned when every slot is in use.
	ErrNoFreeIndex = errors.New("ue: no free UE index")
)

// Repository allocates UE indices and stores a per-UE context value.
type Repository[C any] struct {
	mu    sync.Mutex
	slots []slot[C]
	next  int
	count int
}

type slot[C any] struct {
	used bool
	ctx  C
}

// NewRepository returns a repository with capacity slots.
func NewRepository[C any](capacity int) *Repository[C] {
	if capacity < 0 {
		capacity = 0
	}
	return &Repository[C]{slots: make([]slot[C], capacity)}
}

// Capacity returns the number of slots.
func (r *Repository[C]) Capacity() int { return len(r.slots) }

// Len returns the number of allocated UEs.
func (r *Repository[C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Allocate reserves the lowest free index at or after the last allocation,
// wrapping around, and stores ctx in it.
func (r *Repository[C]) Allocate(ctx C) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.slots)
	for i := 0; i < n; i++ {
		idx := (r.next + i) % n
		if r.slots[idx].used {
			continue
		}
		r.slots[idx] = slot[C]{used: true, ctx: ctx}
		r.next = (idx + 1) % n
		r.count++
		return Index(idx), nil
	}
	return InvalidIndex, ErrNoFreeIndex
}

// Get returns the context stored for idx.
func (r *Repository[C]) Get(idx Index) (C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero C
	if int64(idx) >= int64(len(r.slots)) || !r.slots[idx].used {
		return zero, fmt.Errorf("%w: %s", ErrUnknownUE, idx)
	}
	return r.slots[idx].ctx, nil
}

// Update replaces the context stored for idx.
func (r *Repository[C]) Update(idx Index, fn func(C) C) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int64(idx) >= int64(len(r.slots)) || !r.slots[idx].used {
		return fmt.Errorf("%w: %s", ErrUnknownUE, idx)
	}
	r.slots[idx].ctx = fn(r.slots[idx].ctx)
	return nil
}

// Contains reports whether idx is allocated.
func (r *Repository[C]) Contains(idx Index) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(idx) < int64(len(r.slots)) && r.slots[idx].used
}

// Release frees idx. Releasing an unknown index is an error.
func (r *Repository[C]) Release(idx Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int64(idx) >= int64(len(r.slots)) || !r.slots[idx].used {
		return fmt.Errorf("%w: %s", ErrUnknownUE, idx)
	}
	r.slots[idx] = slot[C]{}
	r.count--
	return nil
}
