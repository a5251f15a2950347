// Binary vmsim drives the virtual-memory core on a simulated machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"vmcore/kernel/kfmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFormat = flag.String("log-format", "text", "log format: text or json.")
)

// kernelPrefix tags output produced by kernel code.
var kernelPrefix = []byte("[kernel] ")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(new(Run), "")
	subcommands.Register(new(Walk), "")
	subcommands.Register(new(Trap), "")

	flag.Parse()

	log, err := newLogger(os.Stderr, *debug, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmsim: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	os.Exit(int(subcommands.Execute(context.Background(), log)))
}

// newLogger returns a logger writing to w in the requested format.
func newLogger(w io.Writer, debug bool, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	switch format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log, nil
}

// loggerFrom extracts the logger passed to subcommands.Execute.
func loggerFrom(args []interface{}) *logrus.Logger {
	if len(args) > 0 {
		if log, ok := args[0].(*logrus.Logger); ok {
			return log
		}
	}
	return logrus.StandardLogger()
}

// kernelSink returns a writer that prefixes every line with kernelPrefix.
func kernelSink(w io.Writer) *kfmt.PrefixWriter {
	return &kfmt.PrefixWriter{Sink: w, Prefix: kernelPrefix}
}
