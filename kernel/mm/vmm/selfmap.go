package vmm

// Level identifies one stage of the 4-level translation hierarchy.
type Level uint8

const (
	// LevelRoot is the top-most table (P4). Its frame is allocated when the
	// address space is created and is always present.
	LevelRoot Level = iota

	// Level3 tables (PDPT) are pointed to by root entries.
	Level3

	// Level2 tables (PD) are pointed to by level-3 entries.
	Level2

	// LevelLeaf tables (PT) hold the entries that map data frames.
	LevelLeaf
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelRoot:
		return "root"
	case Level3:
		return "level3"
	case Level2:
		return "level2"
	case LevelLeaf:
		return "leaf"
	default:
		return "invalid"
	}
}

// Indices holds the table index that a virtual address selects at every
// page level, root first.
type Indices [pageLevels]uintptr

// IndicesOf splits virtAddr into its four 9-bit table indices. The 12-bit page
// offset and the sign-extension bits are ignored.
func IndicesOf(virtAddr uintptr) Indices {
	var idx Indices
	for level := 0; level < pageLevels; level++ {
		idx[level] = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
	}
	return idx
}

// TableAddr returns the virtual address through which the page table at the
// requested level is visible via the recursive root slot. The indices select
// the path from the root to that table and must contain at least one index
// per level above it (none for LevelRoot); extra indices are ignored.
//
// Every level that is not selected by an index is replaced by recursiveIndex,
// so the MMU follows the root's self-map slot (4 - level) times and the
// remaining indices walk down to the requested table:
//
//	root:          0xffff_ffff_ffff_f000
//	level3(i4):    0xffff_ffff_ffe0_0000 | i4<<12
//	level2(i4,i3): 0xffff_ffff_c000_0000 | i4<<21 | i3<<12
//	leaf(i4,i3,i2) 0xffff_ff80_0000_0000 | i4<<30 | i3<<21 | i2<<12
func TableAddr(level Level, indices ...uintptr) uintptr {
	var (
		addr      uintptr
		recursive = pageLevels - int(level)
	)

	for slot := 0; slot < pageLevels; slot++ {
		component := uintptr(recursiveIndex)
		if slot >= recursive {
			component = indices[slot-recursive] & (entriesPerTable - 1)
		}
		addr |= component << pageLevelShifts[slot]
	}

	if addr&canonicalSignBit != 0 {
		addr |= canonicalHighBits
	}

	return addr
}

// tableAddrFor returns the self-map address of the table at level that lies
// on the translation path of virtAddr.
func tableAddrFor(level Level, idx Indices) uintptr {
	return TableAddr(level, idx[:level]...)
}
