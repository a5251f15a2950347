// Package sim runs the virtual-memory core against a software model of an
// amd64 machine: physical memory backed by an anonymous host mapping, a frame
// allocator, and an MMU with a TLB that resolves the recursive self-map the
// same way the hardware does.
package sim

import (
	"errors"
	"fmt"
	"vmcore/kernel"
	"vmcore/kernel/mm"
	"vmcore/kernel/mm/vmm"

	"github.com/sirupsen/logrus"
)

const (
	// reservedFrame is never handed out; a frame address of 0 means "no
	// mapping".
	reservedFrame = mm.Frame(0)

	// selfMapSlot is the root table slot that the address space setup
	// points back at the root table.
	selfMapSlot = 511

	// minFrames covers the reserved frame and the root table.
	minFrames = 2
)

var (
	// ErrOutOfMemory is returned by AllocFrame once all frames are in use.
	ErrOutOfMemory = &kernel.Error{Module: "sim", Message: "out of physical memory"}

	// ErrInvalidFrame is returned when freeing a frame that was not
	// allocated.
	ErrInvalidFrame = &kernel.Error{Module: "sim", Message: "frame is not allocated"}

	// ErrPageFault is raised by the MMU when an entry on the walk is not
	// present.
	ErrPageFault = &kernel.Error{Module: "mmu", Message: "page not present"}

	// ErrProtectionFault is raised by the MMU when a user access hits a
	// mapping without the user flag on every level.
	ErrProtectionFault = &kernel.Error{Module: "mmu", Message: "page protection violation"}

	// ErrNonCanonical is raised for addresses inside the non-canonical hole.
	ErrNonCanonical = &kernel.Error{Module: "mmu", Message: "non-canonical address"}

	// ErrBusError is raised when a page walk leaves the physical arena.
	ErrBusError = &kernel.Error{Module: "mmu", Message: "physical address outside of memory"}

	// ErrHalted is returned for scenario ops issued after the machine
	// halted.
	ErrHalted = errors.New("machine halted")
)

// Machine is a simulated single-core amd64 machine with one active address
// space. Machine is not safe for concurrent use.
type Machine struct {
	log      logrus.FieldLogger
	mem      *physMem
	frames   *frameSet
	allocs   int
	rootAddr uintptr

	tlb     [tlbEntries]tlbEntry
	flushes []uintptr

	translator *vmm.Translator
}

// New creates a machine with the requested number of physical frames. Frame 0
// is reserved and the lowest free frame becomes the root table, with its
// self-map slot pointing back at itself. If log is nil the standard logrus
// logger is used.
func New(frames int, log logrus.FieldLogger) (*Machine, error) {
	if frames < minFrames {
		return nil, fmt.Errorf("sim: need at least %d frames; got %d", minFrames, frames)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	mem, err := newPhysMem(frames)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	m := &Machine{
		log:    log,
		mem:    mem,
		frames: newFrameSet(reservedFrame+1, mm.Frame(frames-1)),
	}

	root, _ := m.frames.take()
	m.rootAddr = root.Address()

	// Fresh anonymous memory is zeroed so only the self-map slot needs
	// to be written.
	rootTable, kerr := m.mem.table(m.rootAddr)
	if kerr != nil {
		_ = m.mem.close()
		return nil, fmt.Errorf("sim: %w", kerr)
	}
	rootTable[selfMapSlot] = uint64(m.rootAddr) | uint64(vmm.FlagPresent|vmm.FlagRW)

	m.translator = vmm.NewTranslator(m)

	log.WithFields(logrus.Fields{
		"frames": frames,
		"root":   hexAddr(m.rootAddr),
	}).Debug("created machine")

	return m, nil
}

// Translator returns the translator that edits the machine's address space.
func (m *Machine) Translator() *vmm.Translator {
	return m.translator
}

// RootAddr returns the physical address of the root page table, i.e. the
// value the machine would hold in CR3.
func (m *Machine) RootAddr() uintptr {
	return m.rootAddr
}

// Close releases the memory backing the machine.
func (m *Machine) Close() error {
	if err := m.mem.close(); err != nil {
		return fmt.Errorf("sim: failed to release physical memory: %w", err)
	}
	return nil
}

func hexAddr(addr uintptr) string {
	return fmt.Sprintf("%#x", addr)
}
