package heapsim

import "unsafe"

// DefaultCapacity mirrors the teacher's arena default (64MB) — large
// enough for realistic trace replay while staying a single fixed
// allocation.
const DefaultCapacity = 64 * 1024 * 1024

// DefaultPageSize matches the common real-world value; tests that care
// about exact page math pass a smaller one explicitly.
const DefaultPageSize = 4096

// Slice is a Go-slice-backed Simulator. It preallocates a single buffer
// of fixed capacity at construction and exposes a monotonically advancing
// "break" into it, so Grow never has to move memory — a Go slice backing
// array that was never reallocated keeps every previously handed-out
// address valid, the same guarantee a real sbrk/mmap heap offers.
type Slice struct {
	buf      []byte
	base     uintptr
	brk      uintptr
	pageSize uintptr
}

// NewSlice creates a Slice simulator with the given total capacity and
// page size. capacity must be large enough for at least one page.
func NewSlice(capacity, pageSize uintptr) *Slice {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	buf := make([]byte, capacity)
	return &Slice{
		buf:      buf,
		base:     uintptr(unsafe.Pointer(&buf[0])),
		pageSize: pageSize,
	}
}

// Low implements Simulator.
func (s *Slice) Low() uintptr { return s.base }

// High implements Simulator.
func (s *Slice) High() uintptr {
	if s.brk == 0 {
		return s.base - 1
	}
	return s.base + s.brk - 1
}

// PageSize implements Simulator.
func (s *Slice) PageSize() uintptr { return s.pageSize }

// Grow implements Simulator.
func (s *Slice) Grow(n uintptr) (uintptr, error) {
	total := roundUpToPage(n, s.pageSize)
	if s.brk+total > uintptr(len(s.buf)) {
		return 0, errExhausted(n)
	}
	addr := s.base + s.brk
	s.brk += total
	return addr, nil
}
