// Package trap reports unrecoverable processor traps and stops the system.
//
// Every trap is fatal: the reporter logs the trap number, error code and
// faulting instruction pointer, decodes page faults (flagging accesses to the
// kernel stack guard region as stack overflows), dumps the saved registers
// and halts the CPU with interrupts disabled.
package trap

import "vmcore/kernel/cpu"

var (
	// SavedFrame is the process-wide slot where the trap entry code stores
	// the interrupted execution context before calling ReportKernelPanic.
	SavedFrame Frame

	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readCR2Fn = cpu.ReadCR2

	kernelReporter = Reporter{
		DisableInterrupts: cpu.DisableInterrupts,
		Halt:              cpu.Halt,
	}
)

// SetStackGuard records the bounds of the unmapped region below the kernel
// stack as provided by the linker.
func SetStackGuard(start, end uintptr) {
	kernelReporter.Guard = GuardRegion{Start: start, End: end}
}

// ReportKernelPanic is invoked by the trap dispatch code for every
// unrecoverable trap. For page faults the faulting address is read from CR2.
// ReportKernelPanic never returns.
func ReportKernelPanic(trapNum, errorCode, rip, rflags uint64) {
	info := Info{
		Number:    trapNum,
		ErrorCode: errorCode,
		RIP:       rip,
		RFlags:    rflags,
	}

	if vector(trapNum) == PageFaultException {
		info.FaultAddr = readCR2Fn()
	}

	kernelReporter.Report(info, &SavedFrame)
}

// ReportSSEPanic is invoked when the kernel attempts to save or restore the
// FPU/SSE state of the hosted runtime in an invalid context. It never
// returns.
func ReportSSEPanic() {
	kernelReporter.ReportSSEPanic()
}
