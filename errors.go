package arena

import "github.com/pkg/errors"

var (
	// ErrExhausted is returned when an Arena has no room left for a request.
	// A GrowingArena recovers from it by creating a new arena.
	ErrExhausted = errors.New("arena: allocation exhausted")

	// ErrBufferAllocation is returned when the backing buffer of a new arena
	// cannot be obtained. It is never retried.
	ErrBufferAllocation = errors.New("arena: buffer allocation failed")

	// ErrInvalidAlignment is returned for an alignment that is not a power of two.
	ErrInvalidAlignment = errors.New("arena: alignment must be a power of two")

	// ErrPointerType is returned when constructing a type that holds Go pointers,
	// which cannot live in memory the garbage collector does not scan.
	ErrPointerType = errors.New("arena: type contains pointers")
)
