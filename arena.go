package arena

import (
	"iter"
	"math/bits"
	"unsafe"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/pavanmanishd/slotarena/internal/layout"
)

type state uint8

const (
	stateActive state = iota
	stateTearingDown
	stateReleased
)

// Arena is a single fixed-capacity buffer that bump-allocates slots and threads
// them into a list for teardown. Not goroutine-safe; see SafeAllocator.
type Arena struct {
	buf      []byte
	capacity uintptr
	cursor   uintptr
	head     uint32 // first header offset, or layout.NoSlot
	last     uint32 // most recent header offset, or layout.NoSlot
	destroy  []Destructor
	state    state
	opts     options
}

// SlotInfo describes one live allocation.
type SlotInfo struct {
	Offset uintptr // payload offset within the arena buffer
	Size   uintptr
	Align  uintptr
}

// NewArena creates an Arena holding capacity bytes.
// If capacity <= 0, DefaultCapacity is used.
func NewArena(capacity int, opts ...Option) (*Arena, error) {
	return newArena(capacity, newOptions(opts))
}

func newArena(capacity int, o options) (*Arena, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxCapacity {
		o.metrics.bufferFailed()
		return nil, errors.Wrapf(ErrBufferAllocation, "capacity %d exceeds maximum %d", capacity, MaxCapacity)
	}
	size := capacity + layout.Slack
	buf, err := o.source(size)
	if err != nil {
		o.metrics.bufferFailed()
		return nil, errors.Wrapf(ErrBufferAllocation, "allocating %d bytes: %v", size, err)
	}
	if len(buf) < size {
		o.metrics.bufferFailed()
		return nil, errors.Wrapf(ErrBufferAllocation, "buffer source returned %d bytes, want %d", len(buf), size)
	}
	if layout.Base(buf)%MaxAlign != 0 {
		o.metrics.bufferFailed()
		return nil, errors.Wrapf(ErrBufferAllocation, "buffer is not %d-byte aligned", MaxAlign)
	}
	o.metrics.capacityChanged(capacity)
	return &Arena{
		buf:      buf,
		capacity: uintptr(capacity),
		head:     layout.NoSlot,
		last:     layout.NoSlot,
		opts:     o,
	}, nil
}

// Allocate reserves size bytes aligned to alignment and records destroy to be
// called with the returned address at teardown. destroy may be nil.
//
// It returns ErrExhausted if the request does not fit; the arena is left
// untouched in that case.
func (a *Arena) Allocate(size, alignment uintptr, destroy Destructor) (unsafe.Pointer, error) {
	a.panicIfUnusable()
	if !layout.IsPowerOfTwo(alignment) {
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	header, payload, ok := layout.Place(layout.Base(a.buf), a.cursor, a.capacity, size, alignment)
	if !ok {
		a.opts.metrics.exhausted()
		return nil, ErrExhausted
	}

	layout.PutHeader(a.buf, header, layout.Header{
		Next:  layout.NoSlot,
		Index: uint32(len(a.destroy)),
		Size:  uint32(size),
		Shift: uint32(bits.TrailingZeros64(uint64(alignment))),
	})
	a.destroy = append(a.destroy, destroy)
	if a.last == layout.NoSlot {
		a.head = uint32(header)
	} else {
		layout.SetNext(a.buf, uintptr(a.last), uint32(header))
	}
	a.last = uint32(header)
	a.cursor = payload + size

	a.opts.metrics.allocated(size)
	return layout.Pointer(a.buf, payload), nil
}

// fits reports whether Allocate(size, alignment, ...) would succeed.
func (a *Arena) fits(size, alignment uintptr) bool {
	_, _, ok := layout.Place(layout.Base(a.buf), a.cursor, a.capacity, size, alignment)
	return ok
}

// RemainingCapacity returns the largest payload that could still fit at
// alignment 1: the free bytes minus one header.
func (a *Arena) RemainingCapacity() int {
	if a.state == stateReleased {
		return 0
	}
	free := a.capacity - a.cursor
	if free < HeaderSize {
		return 0
	}
	return int(free - HeaderSize)
}

// Reset runs every destructor in construction order, then rewinds the arena so
// its buffer can be reused. Errors from panicking destructors are combined and
// returned after all destructors have run.
func (a *Arena) Reset() error {
	a.panicIfUnusable()
	a.state = stateTearingDown
	err := a.runDestructors()
	clear(a.destroy)
	a.destroy = a.destroy[:0]
	a.cursor = 0
	a.head, a.last = layout.NoSlot, layout.NoSlot
	a.state = stateActive
	return err
}

// Release runs every destructor in construction order and drops the buffer.
// The arena is unusable afterwards; further allocations panic. Calling Release
// again is a no-op.
func (a *Arena) Release() error {
	if a.state != stateActive {
		return nil
	}
	a.state = stateTearingDown
	err := a.runDestructors()
	if err != nil {
		level.Warn(a.opts.logger).Log("msg", "arena destructors failed", "err", err)
	}
	a.opts.metrics.capacityChanged(-int(a.capacity))
	a.buf = nil
	a.destroy = nil
	a.cursor = 0
	a.head, a.last = layout.NoSlot, layout.NoSlot
	a.state = stateReleased
	return err
}

func (a *Arena) runDestructors() error {
	var merr *multierror.Error
	for off := a.head; off != layout.NoSlot; {
		h := layout.ReadHeader(a.buf, uintptr(off))
		if fn := a.destroy[h.Index]; fn != nil {
			if err := a.callDestructor(fn, uintptr(off)+HeaderSize, h.Index); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		off = h.Next
	}
	return merr.ErrorOrNil()
}

func (a *Arena) callDestructor(fn Destructor, payload uintptr, index uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.opts.metrics.destructorPanicked()
			err = errors.Errorf("destructor of slot %d panicked: %v", index, r)
		}
	}()
	a.opts.metrics.destructorRun()
	fn(layout.Pointer(a.buf, payload))
	return nil
}

// Slots yields every live allocation in construction order.
func (a *Arena) Slots() iter.Seq[SlotInfo] {
	return func(yield func(SlotInfo) bool) {
		if a.state == stateReleased {
			return
		}
		for off := a.head; off != layout.NoSlot; {
			h := layout.ReadHeader(a.buf, uintptr(off))
			info := SlotInfo{
				Offset: uintptr(off) + HeaderSize,
				Size:   uintptr(h.Size),
				Align:  uintptr(1) << h.Shift,
			}
			if !yield(info) {
				return
			}
			off = h.Next
		}
	}
}

// Capacity returns the arena's capacity in bytes, or 0 once released.
func (a *Arena) Capacity() int {
	if a.state == stateReleased {
		return 0
	}
	return int(a.capacity)
}

// SizeInUse returns the number of bytes consumed, including headers and padding.
func (a *Arena) SizeInUse() int {
	return int(a.cursor)
}

// NumSlots returns the number of live allocations.
func (a *Arena) NumSlots() int {
	return len(a.destroy)
}

// Empty reports whether nothing has been allocated since creation or Reset.
func (a *Arena) Empty() bool {
	return a.head == layout.NoSlot
}

// Stats returns a snapshot of the arena's usage.
func (a *Arena) Stats() Stats {
	s := Stats{
		SizeInUse: a.SizeInUse(),
		Capacity:  a.Capacity(),
		Remaining: a.RemainingCapacity(),
		NumSlots:  a.NumSlots(),
	}
	if a.state != stateReleased {
		s.NumArenas = 1
	}
	s.Utilization = utilization(s.SizeInUse, s.Capacity)
	return s
}

func (a *Arena) panicIfUnusable() {
	switch a.state {
	case stateTearingDown:
		panic("arena: allocation during teardown")
	case stateReleased:
		panic("arena: use after Release()")
	}
}
