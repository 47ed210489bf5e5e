// Package block implements boundary-tag arithmetic over a raw, externally
// owned byte region. Every function here is a contract, not a runtime
// check: callers must have already established that the address they pass
// in points at a well-formed block header (or, for PrecedingFree, that the
// preceding block really is free). Misuse is undefined behavior, exactly
// as in the allocator this package supports — the unsafe pointer
// arithmetic is isolated here so the rest of the module never touches a
// raw address directly.
package block

import "unsafe"

const (
	// Word is the size, in bytes, of a header/footer/list-pointer slot.
	// This module targets 64-bit hosts only, where Word equals Align, so
	// the head-slot padding concern noted for 32-bit targets never
	// arises (see DESIGN.md).
	Word = 8

	// Align is the allocator's alignment granularity. All block sizes,
	// and therefore all payload addresses, are multiples of Align.
	Align = 8

	// MinBlock is the smallest legal block: header + next + prev + footer,
	// already a multiple of Align.
	MinBlock = 4 * Word

	// usedBit marks a block as currently allocated.
	usedBit = uintptr(1)
	// prevUsedBit mirrors whether the block immediately preceding this
	// one in memory is allocated.
	prevUsedBit = uintptr(2)

	flagMask = usedBit | prevUsedBit
	sizeMask = ^uintptr(Align - 1)
)

func readWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr)) //nolint:gosec
}

func writeWord(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v //nolint:gosec
}

// AlignUp rounds n up to the nearest multiple of Align.
func AlignUp(n uintptr) uintptr {
	return (n + Align - 1) &^ (Align - 1)
}

// SizeOf returns the size encoded in B's header word.
func SizeOf(b uintptr) uintptr {
	return readWord(b) & sizeMask
}

// IsUsed reports whether B is currently allocated.
func IsUsed(b uintptr) bool {
	return readWord(b)&usedBit != 0
}

// IsPrevUsed reports whether the block immediately preceding B in memory
// is allocated.
func IsPrevUsed(b uintptr) bool {
	return readWord(b)&prevUsedBit != 0
}

// SetUsed updates B's USED flag in place, leaving size and PREV_USED
// untouched.
func SetUsed(b uintptr, used bool) {
	w := readWord(b) &^ usedBit
	if used {
		w |= usedBit
	}
	writeWord(b, w)
}

// SetPrevUsed updates B's PREV_USED flag in place, leaving size and USED
// untouched.
func SetPrevUsed(b uintptr, used bool) {
	w := readWord(b) &^ prevUsedBit
	if used {
		w |= prevUsedBit
	}
	writeWord(b, w)
}

// SetHeader writes a complete header word for B: the given size plus the
// given USED/PREV_USED flags. Callers that only need to flip a single
// flag should prefer SetUsed/SetPrevUsed, which preserve the rest of the
// word unconditionally.
func SetHeader(b uintptr, size uintptr, used, prevUsed bool) {
	w := size & sizeMask
	if used {
		w |= usedBit
	}
	if prevUsed {
		w |= prevUsedBit
	}
	writeWord(b, w)
}

// FooterOf returns the address of B's footer word. Only free blocks carry
// a meaningful footer; the word is there for every block that has at
// least MinBlock bytes, but used blocks treat it as ordinary payload.
func FooterOf(b uintptr) uintptr {
	return b + SizeOf(b) - Word
}

// WriteFooter copies B's header word into its footer slot. Call this only
// on free blocks — on a used block it would stomp on payload bytes.
func WriteFooter(b uintptr) {
	writeWord(FooterOf(b), readWord(b))
}

// Following returns the address of the block immediately after B in
// memory (which may be the end-of-heap sentinel).
func Following(b uintptr) uintptr {
	return b + SizeOf(b)
}

// PrecedingFree returns the address of the free block immediately before
// B in memory. The caller must have already checked !IsPrevUsed(b); this
// function reads B's predecessor's footer (at b-Word) to recover its
// size, which is why a used predecessor — with no footer — cannot be
// looked up this way.
func PrecedingFree(b uintptr) uintptr {
	footer := readWord(b - Word)
	size := footer & sizeMask
	return b - size
}

// PayloadOf returns the address handed back to callers of Allocate.
func PayloadOf(b uintptr) uintptr {
	return b + Word
}

// BlockOf recovers a block's header address from a payload address
// previously returned by PayloadOf.
func BlockOf(payload uintptr) uintptr {
	return payload - Word
}
