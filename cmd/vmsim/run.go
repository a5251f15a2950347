package main

import (
	"context"
	"flag"
	"io"
	"os"
	"vmcore/kernel/kfmt"
	"vmcore/kernel/trap"
	"vmcore/sim"

	"github.com/google/subcommands"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	config string

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "execute a scenario against a simulated machine"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run -config <scenario.toml> - execute a scenario.

The scenario lists the number of physical frames, an optional stack guard
region and a sequence of [[op]] tables (map, unmap, get, mark_user,
protection, flush, access, trap, sse_panic). Trap reports are written to
stdout; op results are logged.

EXAMPLE:
    $ vmsim run -config sim/testdata/map_mark_unmap.toml
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.config, "config", "", "path to the scenario file.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)

	if r.config == "" {
		log.Error("missing -config")
		return subcommands.ExitUsageError
	}

	sc, err := sim.LoadScenario(r.config)
	if err != nil {
		log.WithError(err).Error("cannot load scenario")
		return subcommands.ExitFailure
	}

	m, err := sim.New(sc.Frames, log)
	if err != nil {
		log.WithError(err).Error("cannot create machine")
		return subcommands.ExitFailure
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.WithError(err).Warn("failed to release machine")
		}
	}()

	out := r.out
	if out == nil {
		out = os.Stdout
	}

	sink := kernelSink(out)
	kfmt.SetOutputSink(sink)
	defer kfmt.SetOutputSink(nil)

	rep := &trap.Reporter{
		Sink:              sink,
		DisableInterrupts: func() { log.Debug("interrupts disabled") },
		Halt:              func() { log.Warn("system halted") },
	}

	results, err := sim.Run(sc, m, rep)
	if err != nil {
		log.WithError(err).WithField("completed", len(results)).Error("scenario failed")
		return subcommands.ExitFailure
	}

	log.WithField("ops", len(results)).WithField("allocations", m.Allocations()).Info("scenario completed")
	return subcommands.ExitSuccess
}
