package sim

import (
	"unsafe"
	"vmcore/kernel"
	"vmcore/kernel/mm"
	"vmcore/kernel/mm/vmm"

	"github.com/sirupsen/logrus"
)

const (
	// tlbEntries is the number of slots in the direct-mapped TLB.
	tlbEntries = 64

	// entryAddrMask selects bits 12-51 of a page table entry.
	entryAddrMask = uint64(0x000ffffffffff000)

	entryPresent = uint64(vmm.FlagPresent)
	entryUser    = uint64(vmm.FlagUserAccessible)

	// canonicalLow and canonicalHigh bound the hole of non-canonical
	// addresses in a 48-bit address space.
	canonicalLow  = uintptr(1) << 47
	canonicalHigh = ^uintptr(1<<47 - 1)
)

// tlbEntry caches the result of a successful page walk.
type tlbEntry struct {
	valid bool
	page  mm.Page
	frame mm.Frame
	user  bool
}

// Translate resolves virtAddr the way the MMU does for a data access. A
// translation cached by an earlier access is used, permissions included,
// until it is flushed with FlushTLBEntry or an access to it faults. User
// accesses succeed only if the user flag is set on every level of the walk.
func (m *Machine) Translate(virtAddr uintptr, user bool) (uintptr, *kernel.Error) {
	if virtAddr >= canonicalLow && virtAddr < canonicalHigh {
		return 0, ErrNonCanonical
	}

	var (
		page = mm.PageFromAddress(virtAddr)
		slot = &m.tlb[uintptr(page)%tlbEntries]
	)

	if !slot.valid || slot.page != page {
		frame, userOK, err := m.walk(virtAddr)
		if err != nil {
			return 0, err
		}

		*slot = tlbEntry{valid: true, page: page, frame: frame, user: userOK}
	}

	if user && !slot.user {
		// A page fault drops the cached translation for the faulting
		// page.
		slot.valid = false
		return 0, ErrProtectionFault
	}

	return slot.frame.Address() | virtAddr&mm.PageMask, nil
}

// walk performs a 4-level page walk starting at the root table.
func (m *Machine) walk(virtAddr uintptr) (mm.Frame, bool, *kernel.Error) {
	var (
		idx    = vmm.IndicesOf(virtAddr)
		next   = m.rootAddr
		userOK = true
	)

	for level := range idx {
		table, err := m.mem.table(next)
		if err != nil {
			return mm.InvalidFrame, false, err
		}

		pte := table[idx[level]]
		if pte&entryPresent == 0 {
			return mm.InvalidFrame, false, ErrPageFault
		}
		if pte&entryUser == 0 {
			userOK = false
		}
		next = uintptr(pte & entryAddrMask)
	}

	return mm.FrameFromAddress(next), userOK, nil
}

// Table implements vmm.Backend. The self-map address is resolved like any
// other kernel access; Table panics with the translation error if the
// address does not lead to a page table in the arena.
func (m *Machine) Table(tableAddr uintptr) *vmm.PageTable {
	physAddr, err := m.Translate(tableAddr, false)
	if err != nil {
		panic(err)
	}

	table, err := m.mem.table(physAddr)
	if err != nil {
		panic(err)
	}

	return (*vmm.PageTable)(unsafe.Pointer(table))
}

// FlushTLBEntry implements vmm.Backend.
func (m *Machine) FlushTLBEntry(virtAddr uintptr) {
	var (
		page = mm.PageFromAddress(virtAddr)
		slot = &m.tlb[uintptr(page)%tlbEntries]
	)

	if slot.valid && slot.page == page {
		slot.valid = false
	}

	m.flushes = append(m.flushes, page.Address())
	m.log.WithFields(logrus.Fields{"virt": hexAddr(virtAddr)}).Debug("flushed TLB entry")
}

// Flushes returns the page addresses passed to FlushTLBEntry so far.
func (m *Machine) Flushes() []uintptr {
	return append([]uintptr(nil), m.flushes...)
}

// FlushAll drops every cached translation.
func (m *Machine) FlushAll() {
	for i := range m.tlb {
		m.tlb[i].valid = false
	}
}
