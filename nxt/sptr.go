package nxt

import "unsafe"

// Sptr is a shared-memory pointer. The daemon maps a segment at different
// addresses in different processes, so request structures store each field as
// an offset relative to the location of the pointer slot itself. Base is the
// address of that slot in this process; Offset is the stored value.
type Sptr struct {
	Base   unsafe.Pointer
	Offset uint32
}

// Resolve returns the length bytes addressed by Base+Offset. The returned
// slice aliases shared memory and is only valid while the owning request is
// in flight. A nil Base or zero length resolves to nil.
func (p Sptr) Resolve(length uint32) []byte {
	if p.Base == nil || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(p.Base, p.Offset)), length)
}

// String resolves the pointer and copies the bytes into a Go string. The
// bytes are trusted as-is; no UTF-8 validation is performed.
func (p Sptr) String(length uint32) string {
	return string(p.Resolve(length))
}
