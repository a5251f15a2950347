package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"vmcore/kernel/mm/vmm"

	"github.com/google/subcommands"
)

// Walk implements subcommands.Command for the "walk" command.
type Walk struct {
	virt uint64

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Walk) Name() string {
	return "walk"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Walk) Synopsis() string {
	return "show the table indices and self-map table addresses of a virtual address"
}

// Usage implements subcommands.Command.Usage.
func (*Walk) Usage() string {
	return `walk -virt <address> - show how a virtual address is translated.

Prints the four table indices selected by the address and the virtual
addresses through which each table on its translation path is reachable via
the recursive self-map slot.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (w *Walk) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&w.virt, "virt", 0, "virtual address to decompose (0x prefix for hex).")
}

// Execute implements subcommands.Command.Execute.
func (w *Walk) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	out := w.out
	if out == nil {
		out = os.Stdout
	}

	writeWalk(out, uintptr(w.virt))
	return subcommands.ExitSuccess
}

func writeWalk(out io.Writer, virtAddr uintptr) {
	idx := vmm.IndicesOf(virtAddr)

	fmt.Fprintf(out, "virtual address: 0x%016x\n", virtAddr)
	fmt.Fprintf(out, "indices:         root=%d level3=%d level2=%d leaf=%d offset=%#x\n",
		idx[vmm.LevelRoot], idx[vmm.Level3], idx[vmm.Level2], idx[vmm.LevelLeaf], virtAddr&0xfff)

	for level := vmm.LevelRoot; level <= vmm.LevelLeaf; level++ {
		fmt.Fprintf(out, "%-6s table:    0x%016x\n", level, vmm.TableAddr(level, idx[:level]...))
	}
}
