package replay

import (
	"strings"
	"testing"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/heap"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/heapsim"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/tracefmt"
)

func newTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	sim := heapsim.NewSlice(1<<20, 4096)
	h, err := heap.New(sim)
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	return h
}

func TestRunReplaysAllocateAndFree(t *testing.T) {
	h := newTestHeap(t)
	r := NewRunner(h, WithCheckAfterEachOp(true))

	trace := "a x 64\na y 128\nf x\na z 32\nf y\nf z\n"
	dec := tracefmt.NewDecoder(strings.NewReader(trace))

	res, err := r.Run(dec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.LinesProcessed != 6 {
		t.Fatalf("LinesProcessed = %d, want 6", res.LinesProcessed)
	}
	if res.FailedAt != nil {
		t.Fatalf("FailedAt = %+v, want nil", res.FailedAt)
	}
	if got := r.LiveCount(); got != 0 {
		t.Fatalf("LiveCount = %d, want 0 after freeing everything", got)
	}
	if err := h.Check(); err != nil {
		t.Fatalf("final Check: %v", err)
	}
}

func TestRunFailsOnFreeOfUnknownID(t *testing.T) {
	h := newTestHeap(t)
	r := NewRunner(h)

	dec := tracefmt.NewDecoder(strings.NewReader("f ghost\n"))
	res, err := r.Run(dec)
	if err == nil {
		t.Fatal("expected an error freeing an unbound id")
	}
	if res.FailedAt == nil {
		t.Fatal("expected FailedAt to be populated")
	}
}

func TestRunFailsOnDuplicateAllocateID(t *testing.T) {
	h := newTestHeap(t)
	r := NewRunner(h)

	dec := tracefmt.NewDecoder(strings.NewReader("a dup 16\na dup 16\n"))
	_, err := r.Run(dec)
	if err == nil {
		t.Fatal("expected an error rebinding a live id")
	}
}
