package trap

import (
	"io"
	"vmcore/kernel/kfmt"
)

// State describes the progress of the fail-stop trap handling sequence.
type State uint8

const (
	// StateRunning is the initial state; no trap has been reported yet.
	StateRunning State = iota

	// StateFaulted is entered as soon as a report starts.
	StateFaulted

	// StateHalted is terminal. There is no transition out of it.
	StateHalted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	case StateHalted:
		return "halted"
	default:
		return "invalid"
	}
}

// GuardRegion describes the unmapped range [Start, End) directly below the
// kernel stack. Faults inside it are stack overflows. The zero value never
// matches.
type GuardRegion struct {
	Start uintptr
	End   uintptr
}

// Contains returns true if addr lies inside the guard region.
func (g GuardRegion) Contains(addr uintptr) bool {
	return addr >= g.Start && addr < g.End
}

// Info holds the values that the trap dispatch code passes to the reporter.
// FaultAddr is only meaningful for page faults.
type Info struct {
	Number    uint64
	ErrorCode uint64
	RIP       uint64
	RFlags    uint64
	FaultAddr uint64
}

// Reporter renders the state of an unrecoverable trap and then stops the
// system. The hardware reporter never returns from Report; reporters with
// hosted Halt implementations return once they reach StateHalted.
type Reporter struct {
	// Sink receives the report. If nil, the kfmt output sink is used.
	Sink io.Writer

	// Guard is the stack guard region used to diagnose stack overflows.
	Guard GuardRegion

	// DisableInterrupts and Halt are invoked, in that order, once the
	// report has been written.
	DisableInterrupts func()
	Halt              func()

	state State
}

// State returns the current state of the reporter.
func (r *Reporter) State() State {
	return r.state
}

// Report logs the trap described by info together with the register
// snapshot in frame and halts. A Report issued while a previous report is
// still in progress or after the system halted only logs a notice before
// halting again.
func (r *Reporter) Report(info Info, frame *Frame) {
	w := r.sink()

	if r.state != StateRunning {
		kfmt.Fprintf(w, "\nnested trap 0x%16x while %s; halting\n", info.Number, r.state.String())
		r.halt()
		return
	}
	r.state = StateFaulted

	kfmt.Fprintf(w, "\nkernel panic on trap number 0x%16x\n", info.Number)
	kfmt.Fprintf(w, "error code: 0x%16x\n", info.ErrorCode)
	kfmt.Fprintf(w, "RIP:        0x%16x\n", info.RIP)

	if vector(info.Number) == PageFaultException {
		kfmt.Fprintf(w, "page fault while accessing address: 0x%16x\n", info.FaultAddr)
		kfmt.Fprintf(w, "reason: %s (%s mode)\n", pageFaultReason(info.ErrorCode), pageFaultMode(info.ErrorCode))

		if r.Guard.Contains(uintptr(info.FaultAddr)) {
			kfmt.Fprintf(w, "the access hit the stack guard region [0x%16x, 0x%16x): STACK OVERFLOW\n", r.Guard.Start, r.Guard.End)
		}
	}

	kfmt.Fprintf(w, "\nRegisters:\n")
	if frame != nil {
		frame.dumpTo(w, info.RIP, info.RFlags)
	} else {
		kfmt.Fprintf(w, "(no saved frame)\n")
	}

	r.halt()
}

// ReportSSEPanic logs that the kernel tried to read the FPU/SSE state of the
// hosted runtime from a context where it is not available, then halts.
func (r *Reporter) ReportSSEPanic() {
	w := r.sink()

	if r.state != StateRunning {
		kfmt.Fprintf(w, "\nnested SSE panic while %s; halting\n", r.state.String())
		r.halt()
		return
	}
	r.state = StateFaulted

	kfmt.Fprintf(w, "\nkernel panic: attempted to read the FPU/SSE state of the hosted runtime from an invalid context\n")
	r.halt()
}

func (r *Reporter) sink() io.Writer {
	if r.Sink != nil {
		return r.Sink
	}
	return kfmt.GetOutputSink()
}

func (r *Reporter) halt() {
	r.state = StateHalted
	if r.DisableInterrupts != nil {
		r.DisableInterrupts()
	}
	if r.Halt != nil {
		r.Halt()
	}
}
