package heap

import (
	"fmt"

	"github.com/ahe360/Explicit-Heap-Allocator/internal/block"
	"github.com/ahe360/Explicit-Heap-Allocator/internal/herrors"
)

// Check walks the entire heap from Low() to the sentinel, verifying
// invariants I1-I7 from SPEC_FULL.md §3, then cross-checks the set of
// free blocks found by that walk against the free list's own membership.
// It is O(heap size) and is meant for tests and debugging, not the
// allocation hot path — see WithAutoCheck.
func (h *Heap) Check() error {
	low := h.sim.Low()
	high := h.sim.High()
	sentinel := high + 1 - block.Word

	walked := make(map[uintptr]bool)
	cur := low + block.Word
	prevUsed := true // I2: the head slot itself counts as "used" space

	for cur < sentinel {
		size := block.SizeOf(cur)
		if size == 0 {
			return herrors.InvariantViolation("I1_ZERO_SIZE",
				fmt.Sprintf("block at %#x has zero size before sentinel", cur))
		}
		if size%block.Align != 0 {
			return herrors.InvariantViolation("I1_MISALIGNED",
				fmt.Sprintf("block at %#x has unaligned size %d", cur, size))
		}
		if size < block.MinBlock {
			return herrors.InvariantViolation("I1_TOO_SMALL",
				fmt.Sprintf("block at %#x has size %d, below MinBlock", cur, size))
		}

		if block.IsPrevUsed(cur) != prevUsed {
			return herrors.InvariantViolation("I2_PREV_USED_MISMATCH",
				fmt.Sprintf("block at %#x has PREV_USED=%v, but preceding block's USED=%v",
					cur, block.IsPrevUsed(cur), prevUsed))
		}

		used := block.IsUsed(cur)
		if !used {
			footer := block.FooterOf(cur)
			if footer >= sentinel {
				return herrors.InvariantViolation("I3_FOOTER_OOB",
					fmt.Sprintf("free block at %#x has footer past heap end", cur))
			}
			if block.SizeOf(footer) != size {
				return herrors.InvariantViolation("I3_FOOTER_MISMATCH",
					fmt.Sprintf("free block at %#x: header size %d, footer size %d",
						cur, size, block.SizeOf(footer)))
			}
			if block.IsUsed(footer) || block.IsPrevUsed(footer) != block.IsPrevUsed(cur) {
				return herrors.InvariantViolation("I3_FOOTER_MISMATCH",
					fmt.Sprintf("free block at %#x: footer flags differ from header flags", cur))
			}
			walked[cur] = true
		}

		if !used && !prevUsed {
			return herrors.InvariantViolation("I4_ADJACENT_FREE",
				fmt.Sprintf("free block at %#x immediately follows another free block", cur))
		}

		prevUsed = used
		cur = block.Following(cur)
	}

	if cur != sentinel {
		return herrors.InvariantViolation("I6_SENTINEL_MISALIGNED",
			fmt.Sprintf("heap walk ended at %#x, expected sentinel at %#x", cur, sentinel))
	}
	if !block.IsUsed(sentinel) {
		return herrors.InvariantViolation("I6_SENTINEL_NOT_USED",
			fmt.Sprintf("sentinel at %#x must report USED", sentinel))
	}

	listed := h.list.Blocks()
	if len(listed) != len(walked) {
		return herrors.InvariantViolation("I5_LIST_SIZE_MISMATCH",
			fmt.Sprintf("free list has %d entries, heap walk found %d free blocks", len(listed), len(walked)))
	}
	for _, b := range listed {
		if !walked[b] {
			return herrors.InvariantViolation("I5_LIST_MEMBER_NOT_FREE",
				fmt.Sprintf("free list contains %#x, but the heap walk did not mark it free", b))
		}
	}

	return nil
}
