package trap

// Page fault error code bits pushed by the CPU.
const (
	pfProtectionViolation = 1 << 0
	pfWrite               = 1 << 1
	pfUser                = 1 << 2
	pfReservedBit         = 1 << 3
	pfInstructionFetch    = 1 << 4
)

// pageFaultReason decodes the cause of a page fault from its error code.
func pageFaultReason(errorCode uint64) string {
	switch {
	case errorCode&pfReservedBit != 0:
		return "page table has reserved bit set"
	case errorCode&pfInstructionFetch != 0:
		if errorCode&pfProtectionViolation != 0 {
			return "instruction fetch from protected page"
		}
		return "instruction fetch from non-present page"
	}

	switch errorCode & (pfProtectionViolation | pfWrite) {
	case 0:
		return "read from non-present page"
	case pfProtectionViolation:
		return "page protection violation (read)"
	case pfWrite:
		return "write to non-present page"
	default:
		return "page protection violation (write)"
	}
}

// pageFaultMode returns the privilege level of the access that faulted.
func pageFaultMode(errorCode uint64) string {
	if errorCode&pfUser != 0 {
		return "user"
	}
	return "kernel"
}
