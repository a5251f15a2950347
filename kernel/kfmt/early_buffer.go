package kfmt

import "io"

// earlyBufferSize is the number of bytes of output retained before a logging
// sink is attached. It must be a power of 2.
const earlyBufferSize = 2048

// earlyBuffer retains the most recent earlyBufferSize bytes written to it.
// Once full, every write overwrites the oldest bytes; the tail of a trap
// report that fires before a sink is attached is what matters most.
type earlyBuffer struct {
	data [earlyBufferSize]byte

	// head indexes the oldest buffered byte and size counts buffered
	// bytes.
	head, size int

	// dropped counts the bytes that were overwritten before being read.
	dropped uint64
}

// Write implements io.Writer. It never fails.
func (b *earlyBuffer) Write(p []byte) (int, error) {
	for _, ch := range p {
		b.data[(b.head+b.size)&(earlyBufferSize-1)] = ch

		if b.size == earlyBufferSize {
			b.head = (b.head + 1) & (earlyBufferSize - 1)
			b.dropped++
			continue
		}
		b.size++
	}

	return len(p), nil
}

// Read implements io.Reader. Each call returns at most the contiguous run of
// bytes that starts at the oldest buffered byte; io.EOF is returned once the
// buffer is empty.
func (b *earlyBuffer) Read(p []byte) (int, error) {
	if b.size == 0 {
		return 0, io.EOF
	}

	run := earlyBufferSize - b.head
	if run > b.size {
		run = b.size
	}

	n := copy(p, b.data[b.head:b.head+run])
	b.head = (b.head + n) & (earlyBufferSize - 1)
	b.size -= n

	return n, nil
}

// Len returns the number of buffered bytes.
func (b *earlyBuffer) Len() int {
	return b.size
}

// Dropped returns the number of bytes lost to overwrites and resets the
// counter.
func (b *earlyBuffer) Dropped() uint64 {
	dropped := b.dropped
	b.dropped = 0
	return dropped
}
