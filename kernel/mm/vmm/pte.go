package vmm

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uintptr

// ProtectionClass describes who may access a mapped page.
type ProtectionClass uint8

const (
	// KernelOnly pages can only be accessed by ring-0 code.
	KernelOnly ProtectionClass = iota

	// KernelAndUser pages can also be accessed by user-mode code.
	KernelAndUser
)

// String implements fmt.Stringer.
func (c ProtectionClass) String() string {
	if c == KernelAndUser {
		return "kernel+user"
	}
	return "kernel"
}

// entryFlags returns the flag bits stored for an entry with the given
// protection class and presence. The encoding is the same at every page
// level; an absent entry is always stored as 0.
func entryFlags(class ProtectionClass, present bool) PageTableEntryFlag {
	if !present {
		return 0
	}

	flags := FlagPresent | FlagRW
	if class == KernelAndUser {
		flags |= FlagUserAccessible
	}
	return flags
}

// makeEntry returns the entry pointing at the page-aligned physical address
// physAddr with the given protection class.
func makeEntry(physAddr uintptr, class ProtectionClass) pageTableEntry {
	pte := pageTableEntry(physAddr & ptePhysPageMask)
	pte.SetFlags(entryFlags(class, true))
	return pte
}

// PageTable is the in-memory layout of a page table at any level. It
// occupies exactly one frame.
type PageTable [entriesPerTable]pageTableEntry

// pageTableEntry describes a page table entry. These entries encode
// a physical frame address and a set of flags.
type pageTableEntry uintptr

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uintptr(pte) & uintptr(flags)) == uintptr(flags)
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (pageTableEntry)(uintptr(*pte) | uintptr(flags))
}

// Address returns the page-aligned physical address that this entry points to.
func (pte pageTableEntry) Address() uintptr {
	return uintptr(pte) & ptePhysPageMask
}

// Class returns the protection class encoded in this entry.
func (pte pageTableEntry) Class() ProtectionClass {
	if pte.HasFlags(FlagUserAccessible) {
		return KernelAndUser
	}
	return KernelOnly
}
