package arena

import (
	"unsafe"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/pavanmanishd/slotarena/internal/layout"
)

// maxGrowthCapacity is the largest power of two a single arena may have.
// Geometric growth saturates here.
const maxGrowthCapacity = 1 << 30

// GrowingArena is an ordered set of Arenas. It allocates from the most recent
// arena and appends a new, larger one when that arena is full. Earlier arenas
// are never allocated from again. Not goroutine-safe; see SafeAllocator.
//
// Pointers handed out stay valid until Release, since no arena ever moves.
type GrowingArena struct {
	arenas      []*Arena
	total       int // summed capacity of arenas
	tearingDown bool
	released    bool
	opts        options
}

// NewGrowingArena creates a GrowingArena whose first arena holds at least one
// allocation of minSize bytes. If minSize <= 0, DefaultMinGrowingCapacity is used.
func NewGrowingArena(minSize int, opts ...Option) (*GrowingArena, error) {
	if minSize <= 0 {
		minSize = DefaultMinGrowingCapacity
	}
	g := &GrowingArena{opts: newOptions(opts)}
	if _, err := g.grow(uint64(MinSizeFor(uintptr(minSize)))); err != nil {
		return nil, err
	}
	return g, nil
}

// Allocate behaves like Arena.Allocate, except that running out of room in the
// current arena is not an error: a new arena large enough for the request and
// at least twice the size of the current one is created and the request is
// retried there once. Errors wrapping ErrBufferAllocation mean that new arena
// could not be created; the set is unchanged in that case.
func (g *GrowingArena) Allocate(size, alignment uintptr, destroy Destructor) (unsafe.Pointer, error) {
	g.panicIfUnusable()
	last := g.current()
	p, err := last.Allocate(size, alignment, destroy)
	if err == nil || !errors.Is(err, ErrExhausted) {
		return p, err
	}
	next, err := g.grow(g.nextCapacity(last, size, alignment))
	if err != nil {
		return nil, err
	}
	return next.Allocate(size, alignment, destroy)
}

// EnsureCapacity grows the set ahead of time so that the next
// Allocate(size, alignment, ...) is served without growth.
func (g *GrowingArena) EnsureCapacity(size, alignment uintptr) error {
	g.panicIfUnusable()
	if !layout.IsPowerOfTwo(alignment) {
		return errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	last := g.current()
	if last.fits(size, alignment) {
		return nil
	}
	_, err := g.grow(g.nextCapacity(last, size, alignment))
	return err
}

// nextCapacity sizes the arena that follows last. The slack added by
// minSizeForAlignment covers the header and the worst-case padding for this
// alignment, so the retry in Allocate always fits.
func (g *GrowingArena) nextCapacity(last *Arena, size, alignment uintptr) uint64 {
	need := minSizeForAlignment(size, alignment)
	if need == 0 {
		return 0
	}
	return max(need, min(NextPowerOf2(uint64(last.Capacity())), maxGrowthCapacity))
}

func (g *GrowingArena) grow(capacity uint64) (*Arena, error) {
	if capacity == 0 || capacity > MaxCapacity {
		g.opts.metrics.bufferFailed()
		return nil, errors.Wrapf(ErrBufferAllocation, "arena capacity out of range (maximum %d)", MaxCapacity)
	}
	if g.opts.maxBytes > 0 && g.total+int(capacity) > g.opts.maxBytes {
		g.opts.metrics.bufferFailed()
		level.Warn(g.opts.logger).Log("msg", "arena byte budget exhausted", "capacity", capacity, "total", g.total, "max_bytes", g.opts.maxBytes)
		return nil, errors.Wrapf(ErrBufferAllocation, "arena of %d bytes would exceed budget of %d (in use %d)", capacity, g.opts.maxBytes, g.total)
	}
	a, err := newArena(int(capacity), g.opts)
	if err != nil {
		level.Warn(g.opts.logger).Log("msg", "failed to create arena", "capacity", capacity, "err", err)
		return nil, err
	}
	g.arenas = append(g.arenas, a)
	g.total += a.Capacity()
	if len(g.arenas) > 1 {
		g.opts.metrics.grew()
		level.Debug(g.opts.logger).Log("msg", "arena set grew", "capacity", capacity, "arenas", len(g.arenas))
	}
	return a, nil
}

// Reset runs every destructor in arena creation order, then keeps only the
// last (largest) arena, rewound for reuse.
func (g *GrowingArena) Reset() error {
	g.panicIfUnusable()
	g.tearingDown = true
	defer func() { g.tearingDown = false }()

	var merr *multierror.Error
	last := g.current()
	for _, a := range g.arenas[:len(g.arenas)-1] {
		if err := a.Release(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := last.Reset(); err != nil {
		merr = multierror.Append(merr, err)
	}
	clear(g.arenas[1:])
	g.arenas = append(g.arenas[:0], last)
	g.total = last.Capacity()
	return merr.ErrorOrNil()
}

// Release tears down every arena in creation order, so destructors run in
// global construction order. Calling Release again is a no-op.
func (g *GrowingArena) Release() error {
	if g.released || g.tearingDown {
		return nil
	}
	g.released = true
	g.tearingDown = true
	defer func() { g.tearingDown = false }()

	var merr *multierror.Error
	for _, a := range g.arenas {
		if err := a.Release(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	g.arenas = nil
	g.total = 0
	return merr.ErrorOrNil()
}

// NumArenas returns the number of arenas in the set.
func (g *GrowingArena) NumArenas() int {
	return len(g.arenas)
}

// Capacity returns the summed capacity of all arenas.
func (g *GrowingArena) Capacity() int {
	return g.total
}

// SizeInUse returns the bytes consumed across all arenas.
func (g *GrowingArena) SizeInUse() int {
	sum := 0
	for _, a := range g.arenas {
		sum += a.SizeInUse()
	}
	return sum
}

// NumSlots returns the number of live allocations across all arenas.
func (g *GrowingArena) NumSlots() int {
	sum := 0
	for _, a := range g.arenas {
		sum += a.NumSlots()
	}
	return sum
}

// Stats returns a snapshot of the set's usage.
func (g *GrowingArena) Stats() Stats {
	s := Stats{
		SizeInUse: g.SizeInUse(),
		Capacity:  g.Capacity(),
		NumArenas: g.NumArenas(),
		NumSlots:  g.NumSlots(),
	}
	if len(g.arenas) > 0 {
		s.Remaining = g.current().RemainingCapacity()
	}
	s.Utilization = utilization(s.SizeInUse, s.Capacity)
	return s
}

// ArenaStats returns a snapshot per arena, in creation order.
func (g *GrowingArena) ArenaStats() []Stats {
	out := make([]Stats, 0, len(g.arenas))
	for _, a := range g.arenas {
		out = append(out, a.Stats())
	}
	return out
}

func (g *GrowingArena) current() *Arena {
	return g.arenas[len(g.arenas)-1]
}

func (g *GrowingArena) panicIfUnusable() {
	switch {
	case g.tearingDown:
		panic("arena: allocation during teardown")
	case g.released:
		panic("arena: use after Release()")
	}
}
