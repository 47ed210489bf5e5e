//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris

package heapsim

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultReserve is the virtual address space Mapped reserves up front.
// Only the pages Grow has committed are ever readable/writable; the rest
// stays PROT_NONE until needed, so reserving a large range costs no real
// memory.
const DefaultReserve = 1 << 30 // 1GiB

// Mapped is a Simulator backed by a real anonymous memory mapping,
// grounded on _examples/cznic-memory/mmap_unix.go's mmap0/unmap pair but
// built on golang.org/x/sys/unix (already in this module's dependency
// set, used the same way by the teacher's internal/runtime/asyncio
// syscall-backed pollers) instead of the deprecated raw syscall package.
// Mapped reserves DefaultReserve bytes of address space as PROT_NONE at
// construction and commits additional pages with Mprotect as Grow is
// called, so the allocator under test sees a real, page-granular heap
// that — like a genuine sbrk/mmap-backed heap — never moves and never
// shrinks.
type Mapped struct {
	region   []byte
	base     uintptr
	brk      uintptr
	pageSize uintptr
}

// NewMapped reserves a Mapped simulator. pageSize defaults to the OS page
// size if zero; reserve defaults to DefaultReserve if zero.
func NewMapped(reserve, pageSize uintptr) (*Mapped, error) {
	if pageSize == 0 {
		pageSize = uintptr(unix.Getpagesize())
	}
	if reserve == 0 {
		reserve = DefaultReserve
	}
	reserve = roundUpToPage(reserve, pageSize)

	region, err := unix.Mmap(-1, 0, int(reserve), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("heapsim: reserve %d bytes: %w", reserve, err)
	}

	return &Mapped{
		region:   region,
		base:     uintptr(unsafe.Pointer(&region[0])),
		pageSize: pageSize,
	}, nil
}

// Low implements Simulator.
func (m *Mapped) Low() uintptr { return m.base }

// High implements Simulator.
func (m *Mapped) High() uintptr {
	if m.brk == 0 {
		return m.base - 1
	}
	return m.base + m.brk - 1
}

// PageSize implements Simulator.
func (m *Mapped) PageSize() uintptr { return m.pageSize }

// Grow implements Simulator.
func (m *Mapped) Grow(n uintptr) (uintptr, error) {
	total := roundUpToPage(n, m.pageSize)
	if m.brk+total > uintptr(len(m.region)) {
		return 0, errExhausted(n)
	}

	committed := m.region[m.brk : m.brk+total]
	if err := unix.Mprotect(committed, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, fmt.Errorf("heapsim: commit %d bytes: %w", total, err)
	}

	addr := m.base + m.brk
	m.brk += total
	return addr, nil
}

// Close releases the reserved mapping. Not part of Simulator: nothing in
// the allocator's contract ever gives memory back, so Close exists purely
// for test and CLI cleanup.
func (m *Mapped) Close() error {
	return unix.Munmap(m.region)
}
