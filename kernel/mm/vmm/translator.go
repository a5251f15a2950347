package vmm

import (
	"unsafe"
	"vmcore/kernel"
	"vmcore/kernel/mm"
)

// Backend gives a Translator access to the live page-table hierarchy and to
// the processor's translation cache.
type Backend interface {
	// Table returns the page table that is visible at the supplied
	// self-map address (see TableAddr).
	Table(tableAddr uintptr) *PageTable

	// FlushTLBEntry discards any cached translation for virtAddr on the
	// current core.
	FlushTLBEntry(virtAddr uintptr)
}

// Translator maps, unmaps, queries and re-protects single pages of the
// address space whose root table is reachable through the recursive slot.
//
// A Translator performs no locking. Callers must serialize Map, Unmap and
// MarkUser calls that target the same address space; two concurrent Map calls
// may both observe a missing intermediate table and allocate it twice.
type Translator struct {
	backend Backend
}

// NewTranslator returns a Translator that edits page tables through b.
func NewTranslator(b Backend) *Translator {
	return &Translator{backend: b}
}

// pageTableWalker is invoked by walk for the entry that virtAddr selects at
// each page level. For non-leaf levels, nextTableAddr is the self-map address
// of the table the entry points to. Returning false aborts the walk.
type pageTableWalker func(level Level, pte *pageTableEntry, nextTableAddr uintptr) bool

// walk visits the entries for virtAddr from the root down to the leaf. The
// table of the next level is only dereferenced after walkFn has accepted the
// entry pointing at it, so walkFn must return false for absent entries unless
// it installs a table first.
func (t *Translator) walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		idx   = IndicesOf(virtAddr)
		table = t.backend.Table(tableAddrFor(LevelRoot, idx))
	)

	for level := LevelRoot; ; level++ {
		var nextTableAddr uintptr
		if level < LevelLeaf {
			nextTableAddr = tableAddrFor(level+1, idx)
		}

		if !walkFn(level, &table[idx[level]], nextTableAddr) || level == LevelLeaf {
			return
		}

		table = t.backend.Table(nextTableAddr)
	}
}

// Map establishes a present, writable, kernel-only mapping from the page
// containing virtAddr to the frame containing physAddr, replacing any previous
// mapping. Missing intermediate tables are allocated with allocFn, zeroed and
// linked in as present and writable.
//
// If allocFn fails, Map returns its error without writing the leaf entry.
// Tables allocated before the failure stay linked in; they are zeroed and
// therefore map nothing.
func (t *Translator) Map(allocFn mm.FrameAllocatorFn, virtAddr, physAddr uintptr) *kernel.Error {
	var (
		page = mm.PageFromAddress(virtAddr)
		err  *kernel.Error
	)

	t.walk(page.Address(), func(level Level, pte *pageTableEntry, nextTableAddr uintptr) bool {
		if level == LevelLeaf {
			*pte = makeEntry(physAddr, KernelOnly)
			t.backend.FlushTLBEntry(page.Address())
			return true
		}

		if pte.HasFlags(FlagPresent) {
			return true
		}

		var frame mm.Frame
		if frame, err = allocFn(); err != nil {
			return false
		}

		*pte = makeEntry(frame.Address(), KernelOnly)

		// The new table becomes reachable through nextTableAddr. Flush
		// it before clearing so the writes go to the new frame and not
		// to whatever a stale translation points at.
		t.backend.FlushTLBEntry(nextTableAddr)
		table := t.backend.Table(nextTableAddr)
		kernel.Memset(uintptr(unsafe.Pointer(table)), 0, mm.PageSize)
		return true
	})

	return err
}

// MarkUser grants user-mode access to an existing mapping by setting
// FlagUserAccessible on the root, level-3, level-2 and leaf entries for
// virtAddr. If any of these entries is absent nothing is modified.
//
// MarkUser does not flush the TLB; callers that need the new protection to be
// visible through an already cached translation must flush it themselves.
func (t *Translator) MarkUser(virtAddr uintptr) {
	var (
		path   [pageLevels]*pageTableEntry
		mapped bool
	)

	t.walk(virtAddr, func(level Level, pte *pageTableEntry, _ uintptr) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		path[level] = pte
		mapped = level == LevelLeaf
		return true
	})

	if !mapped {
		return
	}

	for _, pte := range path {
		pte.SetFlags(entryFlags(KernelAndUser, true))
	}
}

// Unmap clears the leaf entry for virtAddr and returns the page-aligned
// physical address it pointed to. Unmap returns 0 if nothing was mapped at
// virtAddr. Intermediate tables are never reclaimed, even if they become
// empty.
func (t *Translator) Unmap(virtAddr uintptr) uintptr {
	var (
		page = mm.PageFromAddress(virtAddr)
		prev pageTableEntry
	)

	t.walk(page.Address(), func(level Level, pte *pageTableEntry, _ uintptr) bool {
		if level == LevelLeaf {
			prev, *pte = *pte, 0
			return true
		}

		return pte.HasFlags(FlagPresent)
	})

	if !prev.HasFlags(FlagPresent) {
		return 0
	}

	t.backend.FlushTLBEntry(page.Address())
	return prev.Address()
}

// Get returns the page-aligned physical address mapped at virtAddr or 0 if
// the address is not mapped.
func (t *Translator) Get(virtAddr uintptr) uintptr {
	leaf, ok := t.leafEntry(virtAddr)
	if !ok {
		return 0
	}

	return leaf.Address()
}

// Protection returns the protection class of the mapping at virtAddr and
// whether such a mapping exists. User access is only reported if every level
// on the path grants it.
func (t *Translator) Protection(virtAddr uintptr) (ProtectionClass, bool) {
	var (
		class  = KernelAndUser
		mapped bool
	)

	t.walk(virtAddr, func(level Level, pte *pageTableEntry, _ uintptr) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if pte.Class() == KernelOnly {
			class = KernelOnly
		}
		mapped = level == LevelLeaf
		return true
	})

	if !mapped {
		return KernelOnly, false
	}
	return class, true
}

// leafEntry returns a copy of the leaf entry for virtAddr if the entries at
// every level, the leaf included, are present.
func (t *Translator) leafEntry(virtAddr uintptr) (pageTableEntry, bool) {
	var (
		leaf   pageTableEntry
		mapped bool
	)

	t.walk(virtAddr, func(level Level, pte *pageTableEntry, _ uintptr) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		leaf = *pte
		mapped = level == LevelLeaf
		return true
	})

	return leaf, mapped
}
