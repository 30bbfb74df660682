package arena

import (
	"math/bits"

	"github.com/pavanmanishd/slotarena/internal/layout"
)

const (
	// DefaultCapacity is the capacity of an Arena created with capacity <= 0 (64 KiB).
	DefaultCapacity = 1 << 16

	// DefaultMinGrowingCapacity is the minimum size used by NewGrowingArena
	// when minSize <= 0. The first arena rounds it up to a power of two.
	DefaultMinGrowingCapacity = 4084

	// MaxCapacity is the largest capacity a single Arena may have.
	MaxCapacity = layout.MaxCapacity

	// HeaderSize is the per-allocation bookkeeping overhead in bytes.
	HeaderSize = layout.HeaderSize

	// MaxAlign is the largest alignment that MinSizeFor accounts for. Every Go
	// type's alignment is at most MaxAlign.
	MaxAlign = layout.MaxAlign
)

// MinSizeFor returns the smallest power-of-two arena capacity that can hold a
// single allocation of size bytes at any alignment up to MaxAlign.
// It returns 0 if no such capacity is representable.
func MinSizeFor(size uintptr) uintptr {
	return uintptr(minSizeForAlignment(size, MaxAlign))
}

// minSizeForAlignment is MinSizeFor generalized to alignments above MaxAlign.
func minSizeForAlignment(size, alignment uintptr) uint64 {
	slack := uint64(max(alignment, MaxAlign)) - 1
	n := uint64(size) + HeaderSize
	if n < uint64(size) || n+slack < n {
		return 0
	}
	return PowerOf2Ceil(n + slack)
}

// NextPowerOf2 returns the smallest power of two strictly greater than n, or 0
// if that overflows.
func NextPowerOf2(n uint64) uint64 {
	if n >= 1<<63 {
		return 0
	}
	return 1 << bits.Len64(n)
}

// PowerOf2Ceil returns the smallest power of two greater than or equal to n.
// It returns 0 for n == 0 and on overflow.
func PowerOf2Ceil(n uint64) uint64 {
	if n == 0 || n > 1<<63 {
		return 0
	}
	return 1 << bits.Len64(n-1)
}
