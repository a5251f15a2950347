package kfmt

import (
	"vmcore/kernel"
	"vmcore/kernel/cpu"
)

var (
	// the following functions are mocked by tests.
	disableInterruptsFn = cpu.DisableInterrupts
	cpuHaltFn           = cpu.Halt

	// panicking is set by the first call to Panic. The CPU never resumes
	// after a halt, so only tests clear it.
	panicking bool

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic writes the supplied error (if not nil) to the output sink, masks
// interrupts and halts the CPU. A Panic raised while the report of an earlier
// one is still being written only logs a one-line notice before halting.
// Calls to Panic never return.
func Panic(e interface{}) {
	if panicking {
		Printf("\n[kfmt] panic while panicking; halting\n")
		failStop()
		return
	}
	panicking = true

	err := asKernelError(e)

	Printf("\n===================================\n")
	if err != nil {
		Printf("[%s] fatal: %s\n", err.Module, err.Message)
	}
	Printf("kernel panic: system halted")
	Printf("\n===================================\n")

	failStop()
}

func asKernelError(e interface{}) *kernel.Error {
	switch t := e.(type) {
	case *kernel.Error:
		return t
	case string:
		errRuntimePanic.Message = t
	case error:
		errRuntimePanic.Message = t.Error()
	default:
		return nil
	}
	return errRuntimePanic
}

func failStop() {
	disableInterruptsFn()
	cpuHaltFn()
}
