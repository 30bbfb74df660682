// Package arena implements bump-pointer arenas whose slots carry destructors.
//
// # Overview
//
// An Arena is a single fixed-capacity buffer. Each allocation appends a slot
// to it: a small header followed by the aligned payload. Headers link the
// slots in creation order, and each one remembers the Destructor registered
// for its payload. Tearing the arena down walks that list and calls every
// destructor exactly once, in the order the objects were constructed.
//
// A GrowingArena is an ordered set of Arenas. It allocates from the newest
// arena and, when that one is full, appends an arena at least twice as large
// and big enough for the request. Nothing is ever moved, so pointers stay
// valid until the set is released.
//
// This is useful for:
//
//   - Building many short-lived objects of unrelated types and dropping them together
//   - Deterministic cleanup order without relying on finalizers
//   - Keeping allocation off the garbage-collected heap's hot path
//
// # Basic Usage
//
//	g, err := arena.NewGrowingArena(0) // default minimum size
//	if err != nil {
//		return err
//	}
//	defer g.Release() // runs destructors in construction order
//
//	p, err := arena.Construct(g, Point{X: 1, Y: 2})
//	if err != nil {
//		return err // out of memory; nothing was constructed
//	}
//
// # Destructors
//
// Construct registers Destroy as the destructor of any T whose pointer type
// implements Destroyer. ConstructWith takes an explicit function instead. Any
// other allocator that implements Allocator works with the same helpers.
//
// # Restrictions
//
//   - Payloads live in memory the garbage collector does not scan, so only
//     pointer-free types (numbers, bools, arrays and structs of those) can be
//     constructed. Other types are rejected with ErrPointerType.
//   - There is no per-object free. Use Reset or Release.
//   - Arena and GrowingArena are not goroutine-safe. Wrap them in a
//     SafeAllocator to share them.
//
// # Errors
//
// ErrExhausted means an Arena had no room left; a GrowingArena handles it by
// growing. ErrBufferAllocation means a new arena buffer could not be obtained,
// for example because a WithMaxBytes budget was reached.
package arena
