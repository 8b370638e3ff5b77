// Package mmio provides a bounds-checked, volatile 32-bit register window
// over a physical memory range, mapped from userspace through /dev/mem.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is one mapped physical memory region. Created once per physical
// range and shared for the lifetime of the owning driver.
type Window struct {
	base uintptr
	size int

	// mapping is the raw mmap'd slice, page-aligned; ptr is the
	// caller-visible start within it, offset by the base address's
	// distance from the start of its containing page.
	mapping []byte
	ptr     unsafe.Pointer
}

// Create opens /dev/mem and maps [base, base+size) for read/write access.
// size need not be page-aligned; Create adjusts the mapping to cover the
// full pages the range spans.
func Create(base uintptr, size int) (*Window, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem: %w", err)
	}
	// The mapping stays live after the descriptor is closed; keeping it
	// open only for the duration of the mmap call matches devmem.rs,
	// which drops its File as soon as DevMem::new returns.
	defer f.Close()

	pageSize := os.Getpagesize()
	pageOffset := int(base) % pageSize
	mapBase := base - uintptr(pageOffset)
	mapSize := size + pageOffset

	mapping, err := unix.Mmap(int(f.Fd()), int64(mapBase), mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap 0x%x (%d bytes): %w", mapBase, mapSize, err)
	}

	w := &Window{
		base:    base,
		size:    size,
		mapping: mapping,
		ptr:     unsafe.Pointer(&mapping[pageOffset]),
	}
	return w, nil
}

// Base returns the physical base address the window was created with.
func (w *Window) Base() uintptr {
	return w.base
}

// Size returns the user-visible size of the window, in bytes.
func (w *Window) Size() int {
	return w.size
}

// Read32 performs a volatile 32-bit load at the given byte offset. It
// reports false if offset+4 exceeds the window's size instead of touching
// the mapping.
func (w *Window) Read32(offset int) (uint32, bool) {
	if offset < 0 || offset+4 > w.size {
		return 0, false
	}
	reg := (*uint32)(unsafe.Add(w.ptr, offset))
	return atomic.LoadUint32(reg), true
}

// Write32 performs a volatile 32-bit store at the given byte offset. It
// reports false (and does not touch the mapping) if offset+4 exceeds the
// window's size.
func (w *Window) Write32(offset int, value uint32) bool {
	if offset < 0 || offset+4 > w.size {
		return false
	}
	reg := (*uint32)(unsafe.Add(w.ptr, offset))
	atomic.StoreUint32(reg, value)
	return true
}

// Close unmaps the region. The Window must not be used afterwards.
func (w *Window) Close() error {
	if w.mapping == nil {
		return nil
	}
	err := unix.Munmap(w.mapping)
	w.mapping = nil
	w.ptr = nil
	return err
}
