package vmm

const (
	// pageLevels indicates the number of page levels supported by the amd64 architecture.
	pageLevels = 4

	// entriesPerTable is the number of entries in a page table at any level.
	entriesPerTable = 512

	// ptePhysPageMask is a mask that allows us to extract the physical memory
	// address pointed to by a page table entry. For this particular architecture,
	// bits 12-51 contain the physical memory address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// recursiveIndex is the root table slot that points back at the root
	// table itself. Following it once more for every page level lets the
	// MMU land on a page table instead of a data page.
	recursiveIndex = entriesPerTable - 1

	// canonicalSignBit is the highest implemented virtual address bit;
	// bits above it must be copies of it.
	canonicalSignBit = uintptr(1) << 47

	// canonicalHighBits covers the address bits that are sign-extended
	// from canonicalSignBit.
	canonicalHighBits = ^uintptr(1<<48 - 1)
)

var (
	// pageLevelBits defines the number of virtual address bits that correspond to each
	// page level. For the amd64 architecture each PageLevel uses 9 bits which amounts to
	// 512 entries for each page level.
	pageLevelBits = [pageLevels]uint8{
		9,
		9,
		9,
		9,
	}

	// pageLevelShifts defines the shift required to access each page table component
	// of a virtual address.
	pageLevelShifts = [pageLevels]uint8{
		39,
		30,
		21,
		12,
	}
)

const (
	// FlagPresent is set when the entry points to a frame or table.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to. This core always sets it
	// together with FlagPresent.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page. The
	// MMU only grants user access if every level on the path has it set.
	FlagUserAccessible
)
