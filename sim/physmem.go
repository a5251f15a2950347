package sim

import (
	"fmt"
	"unsafe"
	"vmcore/kernel"
	"vmcore/kernel/mm"

	"golang.org/x/sys/unix"
)

// rawTable is the hardware view of a page table: 512 little-endian 64-bit
// entries.
type rawTable [512]uint64

// physMem emulates physical memory with an anonymous mapping so that every
// frame is page-aligned in the host address space as well.
type physMem struct {
	mem []byte
}

func newPhysMem(frames int) (*physMem, error) {
	mem, err := unix.Mmap(-1,
		0,
		frames*int(mm.PageSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %d frames: %w", frames, err)
	}

	return &physMem{mem: mem}, nil
}

// frames returns the number of frames backed by the arena.
func (p *physMem) frames() int {
	return len(p.mem) / int(mm.PageSize)
}

// contains returns true if the frame is backed by the arena.
func (p *physMem) contains(frame mm.Frame) bool {
	return frame.Valid() && int(frame) < p.frames()
}

// table returns the raw entries stored in the frame at physAddr.
func (p *physMem) table(physAddr uintptr) (*rawTable, *kernel.Error) {
	frame := mm.FrameFromAddress(physAddr)
	if physAddr&mm.PageMask != 0 || !p.contains(frame) {
		return nil, ErrBusError
	}

	return (*rawTable)(unsafe.Pointer(&p.mem[physAddr])), nil
}

// fill sets every byte of frame to value.
func (p *physMem) fill(frame mm.Frame, value byte) {
	start := frame.Address()
	kernel.Memset(uintptr(unsafe.Pointer(&p.mem[start])), value, mm.PageSize)
}

func (p *physMem) close() error {
	if p.mem == nil {
		return nil
	}

	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}
