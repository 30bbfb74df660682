package layout

import (
	"encoding/binary"
	"math"
	"unsafe"
)

const (
	// HeaderSize is the size of a slot header in bytes.
	HeaderSize = 16

	// MaxAlign is the alignment of every buffer returned by NewBuffer and the
	// largest alignment any Go type requires.
	MaxAlign = 8

	// Slack is the number of bytes allocated past a buffer's capacity so that a
	// zero-size payload placed at the very end still points into the buffer.
	Slack = MaxAlign

	// MaxCapacity bounds a single buffer so offsets always fit in a header field.
	MaxCapacity = math.MaxInt32

	// NoSlot marks the absence of a next slot.
	NoSlot uint32 = math.MaxUint32
)

const (
	nextOff  = 0
	indexOff = 4
	sizeOff  = 8
	shiftOff = 12
)

// Header is the decoded form of a slot header.
type Header struct {
	Next  uint32 // offset of the next header, or NoSlot
	Index uint32 // ordinal of the slot, indexes the destructor table
	Size  uint32
	Shift uint32 // log2 of the payload alignment
}

// PutHeader encodes h at off.
func PutHeader(buf []byte, off uintptr, h Header) {
	b := buf[off : off+HeaderSize]
	binary.LittleEndian.PutUint32(b[nextOff:], h.Next)
	binary.LittleEndian.PutUint32(b[indexOff:], h.Index)
	binary.LittleEndian.PutUint32(b[sizeOff:], h.Size)
	binary.LittleEndian.PutUint32(b[shiftOff:], h.Shift)
}

// ReadHeader decodes the header at off.
func ReadHeader(buf []byte, off uintptr) Header {
	b := buf[off : off+HeaderSize]
	return Header{
		Next:  binary.LittleEndian.Uint32(b[nextOff:]),
		Index: binary.LittleEndian.Uint32(b[indexOff:]),
		Size:  binary.LittleEndian.Uint32(b[sizeOff:]),
		Shift: binary.LittleEndian.Uint32(b[shiftOff:]),
	}
}

// SetNext patches only the next field of the header at off.
func SetNext(buf []byte, off uintptr, next uint32) {
	binary.LittleEndian.PutUint32(buf[off+nextOff:], next)
}

// IsPowerOfTwo reports whether x is a non-zero power of two.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && x&(x-1) == 0
}

// AlignUp rounds x up to a multiple of align, which must be a power of two.
// ok is false if the result does not fit in a uintptr.
func AlignUp(x, align uintptr) (uintptr, bool) {
	mask := align - 1
	up := x + mask
	if up < x {
		return 0, false
	}
	return up &^ mask, true
}

// Place computes where a slot of the given size and alignment goes in a
// buffer whose first byte lives at address base, with the first free byte at
// cursor. Alignment is applied to the real address, not to the offset.
// ok is false when the slot would end past capacity.
func Place(base, cursor, capacity, size, align uintptr) (header, payload uintptr, ok bool) {
	if cursor > capacity {
		return 0, 0, false
	}
	addr, ok := AlignUp(base+cursor+HeaderSize, align)
	if !ok {
		return 0, 0, false
	}
	payload = addr - base
	if payload > capacity || size > capacity-payload {
		return 0, 0, false
	}
	return payload - HeaderSize, payload, true
}

// NewBuffer allocates size bytes plus Slack, aligned to MaxAlign.
func NewBuffer(size int) []byte {
	words := make([]uint64, (size+Slack+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), len(words)*8)
}

// Base returns the address of the first byte of buf.
func Base(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

// Pointer returns a pointer to the byte at off. off may equal len(buf)-Slack.
func Pointer(buf []byte, off uintptr) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), off)
}
