// Package heap implements the allocator's core engine: the on-heap block
// layout, the explicit free list, first-fit placement, splitting, and
// immediate bidirectional coalescing. It consumes a heapsim.Simulator for
// the backing memory and exposes Init (via New), Allocate, Free, Check,
// and Stats.
//
// The engine is single-threaded by design (see SPEC_FULL.md §9
// Non-goals): callers must not invoke Allocate or Free concurrently on
// the same Heap.
package heap

import (
	"fmt"
	"unsafe"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/block"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/freelist"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/heapsim"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/herrors"
)

// Stats reports allocator-wide counters, mirroring the shape (if not the
// full breadth) of the teacher's AllocatorStats/PoolStats.
type Stats struct {
	Allocations     uint64
	Frees           uint64
	BytesRequested  uint64 // sum of sizes passed to Allocate, pre-rounding
	BytesInUse      uintptr
	PeakBytesInUse  uintptr
	BytesFree       uintptr
	FreeListLength  int
	HeapBytesTotal  uintptr
	GrowCount       uint64
}

// Heap is the allocation engine. Construct one with New, never with a
// composite literal: New performs the equivalent of the spec's init()
// step, which must run exactly once before any other call.
type Heap struct {
	sim      heapsim.Simulator
	list     *freelist.List
	headSlot uintptr

	autoCheck bool

	stats Stats
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithAutoCheck makes every Allocate/Free call end with an internal
// Check(), panicking on the first invariant violation. It exists purely
// as a debugging aid (it makes every call O(heap size) instead of
// O(free-list length)) and is off by default.
func WithAutoCheck(enabled bool) Option {
	return func(h *Heap) { h.autoCheck = enabled }
}

// New creates a Heap on top of sim and performs the equivalent of the
// spec's init(): it asks sim to grow by exactly enough to host the head
// slot, one minimum-size free block, and the sentinel, turns every byte
// the simulator committed (after its page rounding) between the head slot
// and the sentinel into a single free block, then wires up the free list.
// New must be called exactly once per Simulator.
func New(sim heapsim.Simulator, opts ...Option) (*Heap, error) {
	if unsafe.Sizeof(uintptr(0)) != block.Word {
		return nil, herrors.InvalidArgument("heap requires a 64-bit host (Word must equal 8)")
	}

	h := &Heap{sim: sim}
	for _, opt := range opts {
		opt(h)
	}

	base, err := sim.Grow(block.Word + block.MinBlock + block.Word)
	if err != nil {
		return nil, fmt.Errorf("heap: init: %w", err)
	}

	low := sim.Low()
	if base != low {
		return nil, herrors.InvalidArgument("simulator's first Grow must return Low()")
	}

	total := sim.High() - low + 1
	bSize := total - 2*block.Word

	h.headSlot = low
	h.list = freelist.New(low)

	b := low + block.Word
	block.SetHeader(b, bSize, false, true) // no predecessor: treat as used
	block.WriteFooter(b)

	sentinel := low + total - block.Word
	block.SetHeader(sentinel, 0, true, false)

	h.list.Insert(b)
	h.stats.HeapBytesTotal = total
	h.stats.BytesFree = bSize

	return h, nil
}

// requiredSize converts a caller-requested payload size into the block
// size that must be found or carved: room for the header plus the
// payload, rounded up to alignment, and never smaller than MinBlock.
func requiredSize(size uintptr) uintptr {
	req := block.AlignUp(size + block.Word)
	if req < block.MinBlock {
		req = block.MinBlock
	}
	return req
}

// Allocate returns a pointer to size freshly usable bytes, or nil (with a
// nil error) if size is zero. It fails only if the simulator cannot grow
// the heap any further.
func (h *Heap) Allocate(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}

	req := requiredSize(size)

	b := h.list.FirstFit(req)
	if b == 0 {
		if err := h.growHeap(req); err != nil {
			return nil, err
		}
		b = h.list.FirstFit(req)
		if b == 0 {
			return nil, herrors.Exhaustion(req)
		}
	}

	h.list.Unlink(b)

	full := block.SizeOf(b)
	prevUsed := block.IsPrevUsed(b)

	if full-req >= block.MinBlock {
		block.SetHeader(b, req, true, prevUsed)

		s := b + req
		block.SetHeader(s, full-req, false, true)
		block.WriteFooter(s)
		h.list.Insert(s)

		h.stats.BytesFree -= req
	} else {
		block.SetUsed(b, true)
		f := b + full
		block.SetPrevUsed(f, true)

		h.stats.BytesFree -= full
	}

	h.stats.Allocations++
	h.stats.BytesRequested += uint64(size)
	h.stats.BytesInUse += block.SizeOf(b)
	if h.stats.BytesInUse > h.stats.PeakBytesInUse {
		h.stats.PeakBytesInUse = h.stats.BytesInUse
	}

	if h.autoCheck {
		if err := h.Check(); err != nil {
			panic(err)
		}
	}

	return unsafe.Pointer(block.PayloadOf(b)), nil
}

// Free releases a block previously returned by Allocate. Freeing nil is a
// safe no-op; double-freeing or freeing a foreign pointer is undefined
// behavior, per the allocator's contract. Free makes a best-effort check
// for the common accidents (misaligned pointers, pointers outside the
// heap, pointers into an already-free block) and panics with a
// *herrors.HeapError rather than corrupting the heap; it cannot catch
// every way a caller might hand it garbage.
func (h *Heap) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr := uintptr(ptr)
	if err := h.checkPointer(addr); err != nil {
		panic(err)
	}

	b := block.BlockOf(addr)
	size := block.SizeOf(b)

	block.SetUsed(b, false)
	block.WriteFooter(b)

	f := b + size
	block.SetPrevUsed(f, false)

	h.list.Insert(b)
	h.coalesce(b)

	h.stats.Frees++
	h.stats.BytesInUse -= size
	h.stats.BytesFree += size

	if h.autoCheck {
		if err := h.Check(); err != nil {
			panic(err)
		}
	}
}

// checkPointer makes a cheap best-effort check that addr looks like a
// payload pointer this heap could have handed out: aligned, inside the
// block region between the head slot and the sentinel, and pointing at
// a block currently marked in-use. It cannot detect every form of
// corruption (an address that happens to satisfy all three checks but
// was never returned by Allocate will still slip through).
func (h *Heap) checkPointer(addr uintptr) error {
	if addr%block.Align != 0 {
		return herrors.Corrupt(fmt.Sprintf("pointer %#x is not aligned to %d bytes", addr, block.Align))
	}

	low, high := h.sim.Low(), h.sim.High()
	sentinel := high + 1 - block.Word
	b := block.BlockOf(addr)

	if b < low+block.Word || b+block.Word > sentinel {
		return herrors.Corrupt(fmt.Sprintf("pointer %#x does not fall within the heap's block region [%#x,%#x)", addr, low+block.Word, sentinel))
	}
	if !block.IsUsed(b) {
		return herrors.Corrupt(fmt.Sprintf("pointer %#x refers to a block that is not marked in-use", addr))
	}
	return nil
}

// coalesce merges B with any free neighbors, in both directions, until
// none remain. Per I4 this chain is bounded: at most one free neighbor on
// each side, since the heap never contains two adjacent free blocks
// before this call runs.
func (h *Heap) coalesce(b uintptr) {
	origSize := block.SizeOf(b)
	size := origSize
	current := b

	for !block.IsPrevUsed(current) {
		p := block.PrecedingFree(current)
		h.list.Unlink(p)
		size += block.SizeOf(p)
		current = p
	}

	for {
		n := current + size
		if block.IsUsed(n) {
			break
		}
		h.list.Unlink(n)
		size += block.SizeOf(n)
	}

	if current != b || size != origSize {
		h.list.Unlink(b)
		block.SetHeader(current, size, false, true)
		block.WriteFooter(current)
		h.list.Insert(current)
	}
}

// growHeap extends the backing simulator by enough pages to host req
// bytes, folds the new region into a single free block, and coalesces it
// with the heap's previous tail if that tail was free.
func (h *Heap) growHeap(req uintptr) error {
	pageSize := h.sim.PageSize()
	pages := (req + pageSize - 1) / pageSize
	base, err := h.sim.Grow(pages * pageSize)
	if err != nil {
		return herrors.Exhaustion(req)
	}

	newBlock := base - block.Word
	oldPrevUsed := block.IsPrevUsed(newBlock) // reads the old sentinel's flag

	// The new free block reclaims the old sentinel's Word bytes (newBlock
	// starts Word bytes before base) and gives up the same Word bytes to
	// the new sentinel at the far end, so its size is exactly the number
	// of bytes the simulator just committed.
	total := h.sim.High() - base + 1
	block.SetHeader(newBlock, total, false, oldPrevUsed)
	block.WriteFooter(newBlock)

	sentinel := newBlock + total
	block.SetHeader(sentinel, 0, true, false)

	h.list.Insert(newBlock)
	h.coalesce(newBlock)

	h.stats.HeapBytesTotal += total
	h.stats.BytesFree += total
	h.stats.GrowCount++

	return nil
}

// Stats returns a snapshot of the heap's bookkeeping counters.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.FreeListLength = h.list.Len()
	return s
}

// Low returns the heap's lowest address (the start of the head slot).
func (h *Heap) Low() uintptr { return h.sim.Low() }

// High returns the heap's current highest address (the sentinel's last
// byte).
func (h *Heap) High() uintptr { return h.sim.High() }
