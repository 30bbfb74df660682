package arena

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// SafeAllocator is a mutex-protected wrapper around an Allocator for
// concurrent access. Arena and GrowingArena carry no locking of their own.
//
// Reset and Release hold the lock while destructors run. Allocate panics
// during that window instead of waiting for the lock, so a destructor that
// allocates through the same SafeAllocator fails like it would on the wrapped
// allocator rather than deadlocking.
type SafeAllocator struct {
	mu          sync.Mutex
	tearingDown atomic.Bool
	a           Allocator
}

// NewSafeAllocator wraps a so that every call is serialized.
func NewSafeAllocator(a Allocator) *SafeAllocator {
	return &SafeAllocator{a: a}
}

// NewSafeGrowingArena creates a GrowingArena wrapped in a SafeAllocator.
func NewSafeGrowingArena(minSize int, opts ...Option) (*SafeAllocator, error) {
	g, err := NewGrowingArena(minSize, opts...)
	if err != nil {
		return nil, err
	}
	return NewSafeAllocator(g), nil
}

// Allocate thread-safely forwards to the wrapped allocator.
func (s *SafeAllocator) Allocate(size, alignment uintptr, destroy Destructor) (unsafe.Pointer, error) {
	if s.tearingDown.Load() {
		panic("arena: allocation during teardown")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocate(size, alignment, destroy)
}

// Reset thread-safely resets the wrapped allocator if it supports it.
// Construct writes the value after Allocate returns, so callers must make sure
// no other goroutine is still constructing into the allocator.
func (s *SafeAllocator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.a.(interface{ Reset() error }); ok {
		s.tearingDown.Store(true)
		defer s.tearingDown.Store(false)
		return r.Reset()
	}
	return nil
}

// Release thread-safely releases the wrapped allocator if it supports it.
func (s *SafeAllocator) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.a.(interface{ Release() error }); ok {
		s.tearingDown.Store(true)
		defer s.tearingDown.Store(false)
		return r.Release()
	}
	return nil
}

// Stats thread-safely returns the wrapped allocator's stats, or the zero Stats
// if it keeps none.
func (s *SafeAllocator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.a.(interface{ Stats() Stats }); ok {
		return st.Stats()
	}
	return Stats{}
}
