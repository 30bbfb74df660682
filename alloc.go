package arena

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// Destructor is called with the address of an allocation when its arena is
// torn down. It is the only place an arena learns anything about the type
// stored in a slot.
type Destructor func(p unsafe.Pointer)

// Allocator is implemented by Arena, GrowingArena and SafeAllocator.
type Allocator interface {
	// Allocate reserves size bytes aligned to alignment, which must be a power
	// of two. destroy, if not nil, runs on the returned address at teardown.
	// On error no storage is reserved.
	Allocate(size, alignment uintptr, destroy Destructor) (unsafe.Pointer, error)
}

// Destroyer is implemented by types that need cleanup at arena teardown.
// Construct registers Destroy for any T whose pointer type implements it.
type Destroyer interface {
	Destroy()
}

// Construct copies v into storage obtained from a and returns a pointer to it.
// If *T implements Destroyer, Destroy is called on the value at teardown.
//
// T must not contain Go pointers (including strings, slices, maps and
// interfaces), otherwise ErrPointerType is returned. If a cannot provide
// storage its error is returned and nothing is constructed.
func Construct[T any](a Allocator, v T) (*T, error) {
	return construct(a, v, destructorFor[T]())
}

// ConstructWith is like Construct but runs destroy at teardown instead of
// a Destroy method. destroy may be nil.
func ConstructWith[T any](a Allocator, v T, destroy func(*T)) (*T, error) {
	var fn Destructor
	if destroy != nil {
		fn = func(p unsafe.Pointer) {
			destroy((*T)(p))
		}
	}
	return construct(a, v, fn)
}

// New returns a pointer to a zero T stored in a.
func New[T any](a Allocator) (*T, error) {
	var zero T
	return Construct(a, zero)
}

// MakeSlice allocates n zeroed elements of T as a single allocation.
// If *T implements Destroyer, Destroy runs on each element in index order at
// teardown. Returns nil, nil if n <= 0.
func MakeSlice[T any](a Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := checkPointerFree[T](); err != nil {
		return nil, err
	}
	var zero T
	elem := unsafe.Sizeof(zero)
	size := elem * uintptr(n)
	if elem != 0 && uintptr(n) > ^uintptr(0)/elem {
		// Unrepresentable; the allocator reports it as its own failure kind.
		size = ^uintptr(0)
	}

	var destroy Destructor
	if _, ok := any((*T)(nil)).(Destroyer); ok {
		destroy = func(p unsafe.Pointer) {
			s := unsafe.Slice((*T)(p), n)
			for i := range s {
				any(&s[i]).(Destroyer).Destroy()
			}
		}
	}

	p, err := a.Allocate(size, unsafe.Alignof(zero), destroy)
	if err != nil {
		return nil, err
	}
	s := unsafe.Slice((*T)(p), n)
	clear(s)
	return s, nil
}

func construct[T any](a Allocator, v T, destroy Destructor) (*T, error) {
	if err := checkPointerFree[T](); err != nil {
		return nil, err
	}
	p, err := a.Allocate(unsafe.Sizeof(v), unsafe.Alignof(v), destroy)
	if err != nil {
		return nil, err
	}
	ptr := (*T)(p)
	*ptr = v
	return ptr, nil
}

func destructorFor[T any]() Destructor {
	if _, ok := any((*T)(nil)).(Destroyer); !ok {
		return nil
	}
	return func(p unsafe.Pointer) {
		any((*T)(p)).(Destroyer).Destroy()
	}
}

// pointerFree caches hasPointers per type.
var pointerFree sync.Map // reflect.Type -> bool

func checkPointerFree[T any]() error {
	t := reflect.TypeFor[T]()
	free, ok := pointerFree.Load(t)
	if !ok {
		free, _ = pointerFree.LoadOrStore(t, !hasPointers(t))
	}
	if !free.(bool) {
		return errors.Wrapf(ErrPointerType, "cannot place %s in an arena", t)
	}
	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
