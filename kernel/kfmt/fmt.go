package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// singleByte is a shared buffer for passing single characters to
	// doWrite without allocating.
	singleByte = []byte(" ")

	// earlyPrintBuffer keeps Printf output produced before a logging sink
	// has been attached.
	earlyPrintBuffer earlyBuffer

	// outputSink receives the output of Printf. While nil, output is kept
	// in earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink attaches w as the logging sink used by Printf and replays
// any output accumulated in the early print buffer into it. If the buffer
// overflowed, the replay is preceded by a notice with the number of lost
// bytes.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}

	if dropped := earlyPrintBuffer.Dropped(); dropped != 0 {
		Fprintf(w, "[kfmt] early output truncated; %d bytes lost\n", dropped)
	}
	io.Copy(w, &earlyPrintBuffer)
}

// GetOutputSink returns the currently attached logging sink or nil if no sink
// has been attached yet. Passing a nil sink to Fprintf routes the output to
// the early print buffer.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf is a minimal, allocation-free Printf that can be used from trap
// context and before the Go allocator is available.
//
// The supported subset of verbs is:
//
//	%s the uninterpreted bytes of a string or byte slice
//	%o base 8
//	%d base 10
//	%x base 16, lower-case a-f
//	%t "true" or "false"
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes so that "%16x" renders a 64-bit value at fixed
// width.
//
// Only built-in string, bool and integer types are recognized. Pointers (%p)
// are not supported since that would pull in reflect, whose use makes the
// compiler emit allocating conversions when building the argument slice.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		padLen   int
		fmtLen   = len(format)
	)

	for pos := 0; pos < fmtLen; pos++ {
		if format[pos] != '%' {
			// writing format[start:pos] as a sub-slice would allocate,
			// so literal text is emitted one byte at a time.
			writeByte(w, format[pos])
			continue
		}

		padLen = 0
	parseVerb:
		for pos++; ; pos++ {
			if pos == fmtLen {
				doWrite(w, errNoVerb)
				break
			}

			switch ch := format[pos]; {
			case ch == '%':
				writeByte(w, '%')
				break parseVerb
			case ch >= '0' && ch <= '9':
				padLen = padLen*10 + int(ch-'0')
			case ch == 'd' || ch == 'x' || ch == 'o' || ch == 's' || ch == 't':
				if argIndex >= len(args) {
					doWrite(w, errMissingArg)
					break parseVerb
				}

				arg := args[argIndex]
				argIndex++

				switch ch {
				case 'o':
					fmtInt(w, arg, 8, padLen)
				case 'd':
					fmtInt(w, arg, 10, padLen)
				case 'x':
					fmtInt(w, arg, 16, padLen)
				case 's':
					fmtString(w, arg, padLen)
				case 't':
					fmtBool(w, arg)
				}
				break parseVerb
			default:
				doWrite(w, errNoVerb)
				break parseVerb
			}
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// writeByte emits a single byte through the shared singleByte buffer.
func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte)
}

func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString writes a string or []byte value left-padded with spaces to
// padLen characters.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch str := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(str))
		for i := 0; i < len(str); i++ {
			writeByte(w, str[i])
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(str))
		doWrite(w, str)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt writes v in the requested base, applying the padding specified by
// padLen. All built-in signed and unsigned integer types are supported.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    byte = '0'
	)

	switch val := v.(type) {
	case uint8:
		uval = uint64(val)
	case uint16:
		uval = uint64(val)
	case uint32:
		uval = uint64(val)
	case uint64:
		uval = val
	case uint:
		uval = uint64(val)
	case uintptr:
		uval = uint64(val)
	case int8:
		uval, negative = absInt(int64(val))
	case int16:
		uval, negative = absInt(int64(val))
	case int32:
		uval, negative = absInt(int64(val))
	case int64:
		uval, negative = absInt(val)
	case int:
		uval, negative = absInt(int64(val))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if base == 10 {
		padCh = ' '
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	// Digits are emitted in reverse order and flipped at the end.
	right := 0
	for {
		digit := uval % uint64(base)
		if digit < 10 {
			numFmtBuf[right] = byte(digit) + '0'
		} else {
			numFmtBuf[right] = byte(digit-10) + 'a'
		}
		right++

		if uval /= uint64(base); uval == 0 || right == maxBufSize {
			break
		}
	}

	for ; right < padLen; right++ {
		numFmtBuf[right] = padCh
	}

	// The sign replaces the outermost space padding character when there
	// is one; otherwise it is appended.
	if negative {
		end := right - 1
		for end >= 0 && numFmtBuf[end] == ' ' {
			end--
		}
		if end == right-1 {
			right++
		}
		numFmtBuf[end+1] = '-'
	}

	for left, last := 0, right-1; left < last; left, last = left+1, last-1 {
		numFmtBuf[left], numFmtBuf[last] = numFmtBuf[last], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:right])
}

func absInt(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// doWrite hides p from escape analysis via noEscape. Without it the compiler
// cannot tell that p does not escape through the io.Writer call and emits a
// runtime.convT2E allocation for every Printf, which is not allowed in trap
// context.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
