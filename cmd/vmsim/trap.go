package main

import (
	"context"
	"flag"
	"io"
	"os"
	"vmcore/kernel/trap"

	"github.com/google/subcommands"
)

// Trap implements subcommands.Command for the "trap" command.
type Trap struct {
	num        uint64
	errCode    uint64
	rip        uint64
	rflags     uint64
	cr2        uint64
	guardStart uint64
	guardEnd   uint64
	sse        bool

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Trap) Name() string {
	return "trap"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Trap) Synopsis() string {
	return "render the report for a synthetic trap"
}

// Usage implements subcommands.Command.Usage.
func (*Trap) Usage() string {
	return `trap [options] - render the report for a synthetic trap.

EXAMPLE:
    $ vmsim trap -num 14 -err 2 -rip 0x401000 -cr2 0x7ff8 -guard-start 0x7000 -guard-end 0x8000
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *Trap) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&t.num, "num", uint64(trap.GPFException), "trap number.")
	f.Uint64Var(&t.errCode, "err", 0, "error code pushed by the CPU.")
	f.Uint64Var(&t.rip, "rip", 0, "faulting instruction pointer.")
	f.Uint64Var(&t.rflags, "rflags", 0x202, "flags register at the time of the trap.")
	f.Uint64Var(&t.cr2, "cr2", 0, "fault address for page faults.")
	f.Uint64Var(&t.guardStart, "guard-start", 0, "start of the stack guard region.")
	f.Uint64Var(&t.guardEnd, "guard-end", 0, "end of the stack guard region (exclusive).")
	f.BoolVar(&t.sse, "sse", false, "report an SSE state panic instead of a trap.")
}

// Execute implements subcommands.Command.Execute.
func (t *Trap) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)

	out := t.out
	if out == nil {
		out = os.Stdout
	}

	rep := &trap.Reporter{
		Sink:              kernelSink(out),
		Guard:             trap.GuardRegion{Start: uintptr(t.guardStart), End: uintptr(t.guardEnd)},
		DisableInterrupts: func() { log.Debug("interrupts disabled") },
		Halt:              func() { log.Info("system halted") },
	}

	if t.sse {
		rep.ReportSSEPanic()
		return subcommands.ExitSuccess
	}

	rep.Report(trap.Info{
		Number:    t.num,
		ErrorCode: t.errCode,
		RIP:       t.rip,
		RFlags:    t.rflags,
		FaultAddr: t.cr2,
	}, &trap.Frame{RIP: t.rip, RFlags: t.rflags, TrapNumber: t.num, ErrorCode: t.errCode})

	return subcommands.ExitSuccess
}
