package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		descr  string
		writes []string
		exp    string
	}{
		{"no writes", nil, ""},
		{"empty write", []string{""}, ""},
		{"empty line", []string{"\n"}, "[kernel] \n"},
		{"partial line", []string{"trap 0x0e"}, "[kernel] trap 0x0e"},
		{"full line", []string{"halted\n"}, "[kernel] halted\n"},
		{
			"several lines in one write",
			[]string{"\nRegisters:\nRAX = 1\nRIP = 2"},
			"[kernel] \n[kernel] Registers:\n[kernel] RAX = 1\n[kernel] RIP = 2",
		},
		{
			"line spanning writes",
			[]string{"RAX = ", "0000000000000001", " RBX = 2\n", "RCX"},
			"[kernel] RAX = 0000000000000001 RBX = 2\n[kernel] RCX",
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var (
				buf bytes.Buffer
				w   = PrefixWriter{Sink: &buf, Prefix: []byte("[kernel] ")}
			)

			for _, input := range spec.writes {
				n, err := w.Write([]byte(input))
				if err != nil {
					t.Fatal(err)
				}
				if n != len(input) {
					t.Fatalf("expected Write to report %d bytes; got %d", len(input), n)
				}
			}

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected output:\n%q\ngot:\n%q", spec.exp, got)
			}
		})
	}
}

// failingWriter accepts limit bytes and fails afterwards.
type failingWriter struct {
	buf   bytes.Buffer
	limit int
}

var errSinkFull = errors.New("sink full")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		return 0, errSinkFull
	}
	return w.buf.Write(p)
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []struct {
		descr    string
		limit    int
		input    string
		expBytes int
	}{
		{"prefix fails", 0, "one\ntwo\n", 0},
		{"first line fails", 4, "one\ntwo\n", 0},
		{"second prefix fails", 8, "one\ntwo\n", 4},
		{"second line fails", 12, "one\ntwo\n", 4},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var (
				sink = &failingWriter{limit: spec.limit}
				w    = PrefixWriter{Sink: sink, Prefix: []byte(">>> ")}
			)

			n, err := w.Write([]byte(spec.input))
			if err != errSinkFull {
				t.Fatalf("expected errSinkFull; got %v", err)
			}
			if n != spec.expBytes {
				t.Fatalf("expected %d bytes to be reported; got %d", spec.expBytes, n)
			}
		})
	}
}
