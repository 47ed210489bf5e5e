// Package heapsim provides the heap simulator the allocator core
// consumes: the "host" that owns the backing memory and can only ever
// grow it. The allocator treats heapsim as an external collaborator
// (see SPEC_FULL.md §1) and never reaches past the Simulator interface
// into a concrete implementation's internals.
package heapsim

import "github.com/ahe360/Explicit-Heap-Allocator/internal/herrors"

// Simulator is the interface the allocator core consumes. Implementations
// must guarantee that Low() is stable for the lifetime of the simulator,
// that Grow never moves previously returned addresses, and that Grow
// rounds its argument up to a multiple of PageSize before committing
// memory.
type Simulator interface {
	// Low returns the lowest valid heap address. Stable across calls.
	Low() uintptr
	// High returns the current highest valid heap address. Changes after
	// a successful Grow.
	High() uintptr
	// PageSize returns a stable, positive constant.
	PageSize() uintptr
	// Grow extends the heap by at least n bytes (rounded up internally to
	// a multiple of PageSize) and returns the address of the first new
	// byte. It fails only on address-space exhaustion.
	Grow(n uintptr) (uintptr, error)
}

var (
	_ Simulator = (*Slice)(nil)
	_ Simulator = (*Mapped)(nil)
)

func roundUpToPage(n, pageSize uintptr) uintptr {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// errExhausted is shared by every Simulator implementation so callers get
// a consistent error shape regardless of backend.
func errExhausted(n uintptr) error {
	return herrors.Exhaustion(n)
}
