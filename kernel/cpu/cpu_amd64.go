// Package cpu exposes the privileged amd64 instructions used by the memory
// and trap subsystems. The functions are implemented in assembly and fault if
// executed outside ring 0; callers that need to run in user-mode tests keep
// them behind swappable function variables.
package cpu

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt disables interrupts and stops instruction execution. Halt never
// returns; if the CPU is woken by an NMI it halts again.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64
