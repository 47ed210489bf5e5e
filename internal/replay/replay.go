// Package replay drives a heap.Heap through a decoded trace, binding the
// trace's symbolic ids to the live pointers Allocate hands back so a
// later `f <id>` line frees the right block.
package replay

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/heap"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/herrors"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/tracefmt"
)

// Result summarizes a completed (or aborted) replay.
type Result struct {
	LinesProcessed int
	Allocations    int
	Frees          int
	Stats          heap.Stats
	FailedAt       *tracefmt.Line // nil on success
}

// Runner replays trace lines against a heap.Heap, maintaining the
// id-to-pointer bindings trace files rely on.
type Runner struct {
	h        *heap.Heap
	bindings map[string]unsafe.Pointer
	checkAll bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithCheckAfterEachOp calls h.Check() after every replayed operation,
// turning the first invariant violation into a replay error instead of a
// silently corrupted heap. Expensive; meant for debugging a failing trace.
func WithCheckAfterEachOp(enabled bool) Option {
	return func(r *Runner) { r.checkAll = enabled }
}

// NewRunner returns a Runner that drives h.
func NewRunner(h *heap.Heap, opts ...Option) *Runner {
	r := &Runner{h: h, bindings: make(map[string]unsafe.Pointer)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run decodes every line from dec and applies it in order, stopping at
// the first error. The returned Result is populated even on failure, so
// callers can report how far replay got.
func (r *Runner) Run(dec *tracefmt.Decoder) (Result, error) {
	var res Result

	for {
		line, err := dec.Next()
		if err == io.EOF {
			res.Stats = r.h.Stats()
			return res, nil
		}
		if err != nil {
			res.Stats = r.h.Stats()
			return res, err
		}

		if err := r.apply(line); err != nil {
			res.FailedAt = &line
			res.Stats = r.h.Stats()
			return res, err
		}

		res.LinesProcessed++
		switch line.Op {
		case tracefmt.OpAllocate:
			res.Allocations++
		case tracefmt.OpFree:
			res.Frees++
		}
		if r.checkAll {
			if err := r.h.Check(); err != nil {
				res.FailedAt = &line
				res.Stats = r.h.Stats()
				return res, fmt.Errorf("replay: invariant check failed after line %d: %w", line.SourceNo, err)
			}
		}
	}
}

func (r *Runner) apply(line tracefmt.Line) error {
	switch line.Op {
	case tracefmt.OpAllocate:
		if _, exists := r.bindings[line.ID]; exists {
			return fmt.Errorf("replay: line %d: id %q already bound to a live allocation", line.SourceNo, line.ID)
		}
		ptr, err := r.h.Allocate(line.Size)
		if err != nil {
			return fmt.Errorf("replay: line %d: allocate %q (%d bytes): %w", line.SourceNo, line.ID, line.Size, err)
		}
		r.bindings[line.ID] = ptr
		return nil

	case tracefmt.OpFree:
		ptr, exists := r.bindings[line.ID]
		if !exists {
			return herrors.InvalidArgument(fmt.Sprintf("replay: line %d: id %q has no live allocation to free", line.SourceNo, line.ID))
		}
		r.h.Free(ptr)
		delete(r.bindings, line.ID)
		return nil

	default:
		return fmt.Errorf("replay: line %d: unknown op %v", line.SourceNo, line.Op)
	}
}

// LiveCount returns the number of currently bound, un-freed ids.
func (r *Runner) LiveCount() int { return len(r.bindings) }
