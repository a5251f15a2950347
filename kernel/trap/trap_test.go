package trap

import (
	"bytes"
	"strings"
	"testing"
	"vmcore/kernel/cpu"
	"vmcore/kernel/kfmt"
)

// useHostedReporter replaces the hardware halt path with a counter and routes
// kfmt output to a buffer until the test completes.
func useHostedReporter(t *testing.T) (*bytes.Buffer, *int) {
	var (
		buf       bytes.Buffer
		haltCount int
	)

	origReporter, origFrame := kernelReporter, SavedFrame
	t.Cleanup(func() {
		kernelReporter, SavedFrame, readCR2Fn = origReporter, origFrame, cpu.ReadCR2
		kfmt.SetOutputSink(nil)
	})

	kernelReporter = Reporter{
		DisableInterrupts: func() {},
		Halt:              func() { haltCount++ },
	}
	kfmt.SetOutputSink(&buf)

	return &buf, &haltCount
}

func TestReportKernelPanic(t *testing.T) {
	buf, haltCount := useHostedReporter(t)

	var cr2Reads int
	readCR2Fn = func() uint64 {
		cr2Reads++
		return 0xffff800000007ff8
	}

	SetStackGuard(0xffff800000007000, 0xffff800000008000)
	SavedFrame = *testFrame()

	ReportKernelPanic(uint64(PageFaultException), 2, 0xffffffff80001000, 0x46)

	got := buf.String()
	for _, exp := range []string{
		"kernel panic on trap number 0x000000000000000e\n",
		"page fault while accessing address: 0xffff800000007ff8\n",
		"STACK OVERFLOW\n",
		"RIP = ffffffff80001000 RSP = ffff800000010000 RBP = ffff800000010010 RFL = 0000000000000046\n",
	} {
		if !strings.Contains(got, exp) {
			t.Errorf("expected report to contain %q; got:\n%s", exp, got)
		}
	}

	if cr2Reads != 1 {
		t.Errorf("expected CR2 to be read once; got %d", cr2Reads)
	}

	if *haltCount != 1 {
		t.Errorf("expected one halt; got %d", *haltCount)
	}
}

func TestReportKernelPanicSkipsCR2ForOtherTraps(t *testing.T) {
	buf, _ := useHostedReporter(t)

	readCR2Fn = func() uint64 {
		t.Fatal("unexpected CR2 read")
		return 0
	}

	ReportKernelPanic(uint64(GPFException), 0, 0x1000, 0x2)

	if strings.Contains(buf.String(), "page fault") {
		t.Fatalf("unexpected page fault diagnosis:\n%s", buf.String())
	}
}

func TestPackageReportSSEPanic(t *testing.T) {
	buf, haltCount := useHostedReporter(t)

	ReportSSEPanic()

	if !strings.Contains(buf.String(), "FPU/SSE state") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	if *haltCount != 1 || kernelReporter.State() != StateHalted {
		t.Fatalf("expected the kernel reporter to halt once; got %d halts and state %s", *haltCount, kernelReporter.State())
	}
}
