package kmain

import (
	"vmcore/kernel"
	"vmcore/kernel/kfmt"
	"vmcore/kernel/mm/vmm"
	"vmcore/kernel/trap"
)

var (
	// the following functions are mocked by tests.
	vmmInitFn = vmm.Init
	panicFn   = kfmt.Panic

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked by the rt0 assembly code after the
// initial address space, including its recursive self-map slot, has been
// activated.
//
// The rt0 code passes the linker-provided bounds of the unmapped guard region
// that sits directly below the kernel stack; faults inside it are reported as
// stack overflows.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(stackGuardStart, stackBottom uintptr) {
	trap.SetStackGuard(stackGuardStart, stackBottom)

	if err := vmmInitFn(); err != nil {
		panicFn(err)
		return
	}

	kfmt.Printf("[kmain] virtual memory core ready (stack guard 0x%16x-0x%16x)\n", stackGuardStart, stackBottom)

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}
