package trap

import (
	"io"
	"vmcore/kernel/kfmt"
)

// Frame contains a snapshot of the general purpose registers of the
// execution context that was interrupted by a trap. The field order matches
// the layout that the trap entry code stores in SavedFrame.
type Frame struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	RIP    uint64
	RSP    uint64
	RBP    uint64
	RFlags uint64

	// TrapNumber and ErrorCode are filled in by the entry stub for the
	// trap that caused the snapshot to be taken.
	TrapNumber uint64
	ErrorCode  uint64
}

// DumpTo outputs the register contents to w. The RIP and RFLAGS values saved
// in the frame are printed as-is; Reporter passes the values reported by the
// dispatch code instead.
func (f *Frame) DumpTo(w io.Writer) {
	f.dumpTo(w, f.RIP, f.RFlags)
}

func (f *Frame) dumpTo(w io.Writer, rip, rflags uint64) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x RCX = %16x RDX = %16x\n", f.RAX, f.RBX, f.RCX, f.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x R8  = %16x R9  = %16x\n", f.RSI, f.RDI, f.R8, f.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x R12 = %16x R13 = %16x\n", f.R10, f.R11, f.R12, f.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", f.R14, f.R15)
	kfmt.Fprintf(w, "RIP = %16x RSP = %16x RBP = %16x RFL = %16x\n", rip, f.RSP, f.RBP, rflags)
}
