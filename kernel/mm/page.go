// Package mm defines the page and frame types shared by the memory
// management code.
package mm

import (
	"math"
	"vmcore/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve a frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the start of this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains physAddr. Addresses that
// are not page-aligned are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr &^ PageMask) >> PageShift)
}

// FrameAllocatorFn hands out one free, page-aligned physical frame per call.
// Implementations report exhaustion by returning InvalidFrame together with
// a non-nil error.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address of the start of this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page that contains virtAddr. Addresses that are
// not page-aligned are rounded down.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ PageMask) >> PageShift)
}
