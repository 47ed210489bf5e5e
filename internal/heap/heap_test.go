package heap

import (
	"testing"
	"unsafe"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/heapsim"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/herrors"
)

func newTestHeap(t *testing.T, capacity, pageSize uintptr) *Heap {
	t.Helper()
	sim := heapsim.NewSlice(capacity, pageSize)
	h, err := New(sim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func write(ptr unsafe.Pointer, n int, fill byte) {
	buf := unsafe.Slice((*byte)(ptr), n)
	for i := range buf {
		buf[i] = fill
	}
}

func verify(t *testing.T, ptr unsafe.Pointer, n int, want byte) {
	t.Helper()
	buf := unsafe.Slice((*byte)(ptr), n)
	for i, v := range buf {
		if v != want {
			t.Fatalf("byte %d: got %d, want %d", i, v, want)
		}
	}
}

func TestInitProducesCheckableHeap(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)
	if err := h.Check(); err != nil {
		t.Fatalf("Check after Init: %v", err)
	}
	if got := h.Stats().FreeListLength; got != 1 {
		t.Fatalf("expected a single free block after Init, got free list length %d", got)
	}
}

func TestAllocateZeroReturnsNil(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)
	ptr, err := h.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0): %v", err)
	}
	if ptr != nil {
		t.Fatalf("Allocate(0) = %p, want nil", ptr)
	}
}

func TestAllocateWriteReadRoundTrip(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	ptr, err := h.Allocate(100)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ptr == nil {
		t.Fatal("Allocate(100) returned nil")
	}

	write(ptr, 100, 0xAB)
	verify(t, ptr, 100, 0xAB)

	if err := h.Check(); err != nil {
		t.Fatalf("Check after allocate: %v", err)
	}
}

func TestFreeThenReallocateReusesSpace(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	a, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	h.Free(a)
	if err := h.Check(); err != nil {
		t.Fatalf("Check after free: %v", err)
	}

	b, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate b: %v", err)
	}
	if a != b {
		t.Fatalf("expected reallocation to reuse freed block: a=%p b=%p", a, b)
	}
}

func TestCoalesceMergesAdjacentFreeBlocks(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	a, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	b, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate b: %v", err)
	}
	c, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate c: %v", err)
	}

	h.Free(a)
	h.Free(c)
	if got := h.Stats().FreeListLength; got < 2 {
		t.Fatalf("expected at least two disjoint free blocks before merging b, got %d", got)
	}

	h.Free(b)
	if err := h.Check(); err != nil {
		t.Fatalf("Check after coalescing: %v", err)
	}

	if got := h.Stats().FreeListLength; got != 1 {
		t.Fatalf("expected a, b, c to coalesce into a single free block, got free list length %d", got)
	}
}

func TestAllocateSplitsOversizedBlock(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	before := h.Stats().FreeListLength

	_, err := h.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if err := h.Check(); err != nil {
		t.Fatalf("Check after split: %v", err)
	}
	if got := h.Stats().FreeListLength; got != before {
		t.Fatalf("expected split to leave free list length unchanged (%d), got %d", before, got)
	}
}

func TestAllocateGrowsHeapOnExhaustion(t *testing.T) {
	const pageSize = 4096
	h := newTestHeap(t, 64*pageSize, pageSize)

	var ptrs []unsafe.Pointer
	for i := 0; i < 200; i++ {
		p, err := h.Allocate(64)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}

	if h.Stats().GrowCount == 0 {
		t.Fatal("expected at least one heap growth")
	}
	if err := h.Check(); err != nil {
		t.Fatalf("Check after growth: %v", err)
	}

	for _, p := range ptrs {
		h.Free(p)
	}
	if err := h.Check(); err != nil {
		t.Fatalf("Check after freeing everything: %v", err)
	}
	if got := h.Stats().FreeListLength; got != 1 {
		t.Fatalf("expected full coalescing after freeing everything, got free list length %d", got)
	}
}

func TestExhaustionSurfacesAsError(t *testing.T) {
	h := newTestHeap(t, 4096, 4096)

	var lastErr error
	for i := 0; i < 10000; i++ {
		_, err := h.Allocate(64)
		if err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Fatal("expected Allocate to eventually fail once the backing simulator is exhausted")
	}
}

func TestFreeNilIsNoOp(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)
	h.Free(nil)
	if err := h.Check(); err != nil {
		t.Fatalf("Check after Free(nil): %v", err)
	}
}

func expectCorruptPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Free to panic, it returned normally")
		}
		herr, ok := r.(*herrors.HeapError)
		if !ok {
			t.Fatalf("panic value is %T, want *herrors.HeapError: %v", r, r)
		}
		if herr.Category != herrors.CategoryMemory {
			t.Fatalf("panic category = %s, want %s", herr.Category, herrors.CategoryMemory)
		}
	}()
	fn()
}

func TestFreeOfMisalignedPointerPanics(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	ptr, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	expectCorruptPanic(t, func() {
		h.Free(unsafe.Pointer(uintptr(ptr) + 1))
	})
}

func TestFreeOfOutOfRangePointerPanics(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	ptr, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// 1<<30 is a multiple of the allocator's alignment, so this keeps
	// ptr's alignment while landing far outside the heap's committed
	// range, exercising the bounds check rather than the alignment one.
	expectCorruptPanic(t, func() {
		h.Free(unsafe.Pointer(uintptr(ptr) + 1<<30))
	})
}

func TestDoubleFreePanics(t *testing.T) {
	h := newTestHeap(t, 1<<20, 4096)

	ptr, err := h.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	h.Free(ptr)

	expectCorruptPanic(t, func() {
		h.Free(ptr)
	})
}

func TestManyAllocateFreeInterleavingStaysConsistent(t *testing.T) {
	h := newTestHeap(t, 4<<20, 4096)

	live := make([]unsafe.Pointer, 0, 64)
	sizes := []uintptr{8, 24, 100, 1, 4096, 17, 63}

	for round := 0; round < 50; round++ {
		size := sizes[round%len(sizes)]
		p, err := h.Allocate(size)
		if err != nil {
			t.Fatalf("round %d: Allocate(%d): %v", round, size, err)
		}
		live = append(live, p)

		if round%3 == 0 && len(live) > 0 {
			h.Free(live[0])
			live = live[1:]
		}

		if err := h.Check(); err != nil {
			t.Fatalf("round %d: Check: %v", round, err)
		}
	}

	for _, p := range live {
		h.Free(p)
	}
	if err := h.Check(); err != nil {
		t.Fatalf("final Check: %v", err)
	}
}
