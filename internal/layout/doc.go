// Package layout owns the byte-level layout of arena slots.
//
// A slot is a fixed-size header immediately followed by its payload. Padding
// needed to align the payload is placed before the header, so the payload of a
// slot is always found at header offset + HeaderSize:
//
//	| pad | next | index | size | shift | payload ... | pad | next | ...
//	      ^ header                      ^ payload
//
// Headers refer to each other by buffer offset, never by address. Every piece
// of offset arithmetic used by the arena lives here.
package layout
