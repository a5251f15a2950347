package trap

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Overflow occurs when an INTO instruction is executed while the
	// overflow flag is set.
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an
	// FPU/MMX/SSE instruction while FPU/MMX/SSE support is disabled.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an exception occurs while the CPU is trying
	// to invoke the handler of a previous exception.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when the CPU attempts to load a segment
	// whose present bit is cleared.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page table entry on the translation
	// path is not present or when a privilege and/or RW protection check
	// fails. The faulting address is latched in CR2.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException occurs when an unmasked x87 exception is
	// pending while CR0.NE is set.
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException occurs when an unmasked SSE exception
	// occurs while CR4.OSXMMEXCPT is set.
	SIMDFloatingPointException = InterruptNumber(19)
)

// vector extracts the interrupt slot from a trap number reported by the
// dispatch code. Only the low byte identifies the vector.
func vector(trapNum uint64) InterruptNumber {
	return InterruptNumber(trapNum & 0xff)
}
