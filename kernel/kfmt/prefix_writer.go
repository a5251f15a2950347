package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that passes its input on to Sink and tags
// every line with Prefix. A line may span several Write calls.
type PrefixWriter struct {
	// Sink receives the prefixed output.
	Sink io.Writer

	// Prefix is written before the first byte of each line.
	Prefix []byte

	// midLine is set while the last byte passed to Sink was not a line
	// feed.
	midLine bool
}

// Write implements io.Writer. The returned byte count only covers bytes of p;
// injected prefixes are not included.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		lineLen := len(p)
		if lf := bytes.IndexByte(p, '\n'); lf != -1 {
			lineLen = lf + 1
			w.midLine = false
		}

		n, err := w.Sink.Write(p[:lineLen])
		written += n
		if err != nil {
			return written, err
		}

		p = p[lineLen:]
	}

	return written, nil
}
