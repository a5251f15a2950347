// Package vmm edits the active address space through the recursive mapping
// installed in the last slot of the root page table.
package vmm

import (
	"unsafe"
	"vmcore/kernel"
	"vmcore/kernel/cpu"
	"vmcore/kernel/mm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activePDTFn     = cpu.ActivePDT
	flushTLBEntryFn = cpu.FlushTLBEntry

	// tablePtrFn converts a self-map address into a pointer. Tests override
	// it to redirect table accesses to memory they own.
	tablePtrFn = func(tableAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(tableAddr)
	}

	// kernelTranslator edits the currently active address space.
	kernelTranslator = NewTranslator(mmuBackend{})

	errMissingSelfMap = &kernel.Error{Module: "vmm", Message: "root page table does not contain a recursive self-map entry"}
)

// mmuBackend accesses page tables by dereferencing their self-map addresses
// and relies on the hardware MMU to resolve them.
type mmuBackend struct{}

// Table implements Backend.
func (mmuBackend) Table(tableAddr uintptr) *PageTable {
	return (*PageTable)(tablePtrFn(tableAddr))
}

// FlushTLBEntry implements Backend.
func (mmuBackend) FlushTLBEntry(virtAddr uintptr) {
	flushTLBEntryFn(virtAddr)
}

// Init checks that the recursive slot of the active root table points back at
// the root table itself. The self-map is installed by the code that sets up
// the address space; everything in this package depends on it.
func Init() *kernel.Error {
	root := kernelTranslator.backend.Table(TableAddr(LevelRoot))
	self := root[recursiveIndex]

	if !self.HasFlags(FlagPresent|FlagRW) || self.Address() != activePDTFn()&ptePhysPageMask {
		return errMissingSelfMap
	}

	return nil
}

// Map establishes a kernel-only mapping from virtAddr to physAddr in the
// active address space. See Translator.Map.
func Map(allocFn mm.FrameAllocatorFn, virtAddr, physAddr uintptr) *kernel.Error {
	return kernelTranslator.Map(allocFn, virtAddr, physAddr)
}

// MarkUser grants user-mode access to an existing mapping in the active
// address space. See Translator.MarkUser.
func MarkUser(virtAddr uintptr) {
	kernelTranslator.MarkUser(virtAddr)
}

// Unmap removes the mapping for virtAddr from the active address space and
// returns the physical address it pointed to. See Translator.Unmap.
func Unmap(virtAddr uintptr) uintptr {
	return kernelTranslator.Unmap(virtAddr)
}

// Get returns the physical address mapped at virtAddr in the active address
// space or 0.
func Get(virtAddr uintptr) uintptr {
	return kernelTranslator.Get(virtAddr)
}

// Protection returns the protection class of the mapping at virtAddr in the
// active address space. See Translator.Protection.
func Protection(virtAddr uintptr) (ProtectionClass, bool) {
	return kernelTranslator.Protection(virtAddr)
}
