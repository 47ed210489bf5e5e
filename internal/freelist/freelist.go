// Package freelist implements the allocator's explicit, intrusive,
// doubly-linked free list. There is no separate node type: the next/prev
// pointers are stored inside the free block's own payload words (offsets
// Word and 2*Word from the block's header, per the heap's block layout),
// and the list's root lives in the heap's head slot. Every function here
// assumes the block(s) it touches are well-formed free blocks; like
// package block, these are contracts, not runtime checks.
package freelist

import (
	"unsafe"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/block"
)

// null represents the absence of a block address. Zero is never a valid
// block address in this allocator, since the head slot itself occupies
// the heap's first Word bytes.
const null = uintptr(0)

func readPtr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr)) //nolint:gosec
}

func writePtr(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v //nolint:gosec
}

func nextSlot(b uintptr) uintptr { return b + block.Word }
func prevSlot(b uintptr) uintptr { return b + 2*block.Word }

// List is a free list rooted at a fixed head-slot address. The head slot
// is the first Word bytes of the heap; List never allocates, so its zero
// value is unusable — construct one with New.
type List struct {
	headSlot uintptr
}

// New returns a List rooted at headSlot. headSlot must point at a Word
// that either already holds a valid free-list head (possibly null) or
// has been zeroed (zero is the null head).
func New(headSlot uintptr) *List {
	return &List{headSlot: headSlot}
}

// Head returns the address of the block at the head of the list, or 0 if
// the list is empty.
func (l *List) Head() uintptr {
	return readPtr(l.headSlot)
}

func (l *List) setHead(b uintptr) {
	writePtr(l.headSlot, b)
}

// Next returns B's next pointer (0 if B is the tail).
func Next(b uintptr) uintptr { return readPtr(nextSlot(b)) }

// Prev returns B's prev pointer (0 if B is the head).
func Prev(b uintptr) uintptr { return readPtr(prevSlot(b)) }

func setNext(b, v uintptr) { writePtr(nextSlot(b), v) }
func setPrev(b, v uintptr) { writePtr(prevSlot(b), v) }

// Insert head-inserts B: B becomes the new head, the previous head (if
// any) points back to B, and B's own prev becomes null. This is a LIFO
// discipline by construction — the most recently inserted block is always
// the first one First Fit will see.
func (l *List) Insert(b uintptr) {
	old := l.Head()
	setPrev(b, null)
	setNext(b, old)
	if old != null {
		setPrev(old, b)
	}
	l.setHead(b)
}

// Unlink removes B from the list. B must currently be a member of the
// list; unlinking a block that isn't linked is undefined behavior.
func (l *List) Unlink(b uintptr) {
	p := Prev(b)
	n := Next(b)
	if p != null {
		setNext(p, n)
	} else {
		l.setHead(n)
	}
	if n != null {
		setPrev(n, p)
	}
}

// FirstFit scans the list from the head and returns the first block whose
// size is at least n, or 0 if none qualifies. Scan order is insertion
// order (LIFO): recently freed blocks are found first.
func (l *List) FirstFit(n uintptr) uintptr {
	for cur := l.Head(); cur != null; cur = Next(cur) {
		if block.SizeOf(cur) >= n {
			return cur
		}
	}
	return null
}

// Len walks the list and counts its members. O(n); intended for
// diagnostics and invariant checking, not the allocation hot path.
func (l *List) Len() int {
	n := 0
	for cur := l.Head(); cur != null; cur = Next(cur) {
		n++
	}
	return n
}

// Blocks returns every block address currently on the list, in scan
// order. Intended for invariant checking (Check verifies this set against
// the set of free blocks found by walking the heap directly).
func (l *List) Blocks() []uintptr {
	var out []uintptr
	for cur := l.Head(); cur != null; cur = Next(cur) {
		out = append(out, cur)
	}
	return out
}
