package mm

import "testing"

func TestFrameAddressRoundTrip(t *testing.T) {
	specs := []struct {
		physAddr uintptr
		expFrame Frame
		expAddr  uintptr
	}{
		{0, 0, 0},
		{PageMask, 0, 0},
		{PageSize, 1, PageSize},
		{0x2abc, 2, 0x2000},
		{0x000f_ffff_ffff_f123, 0xff_ffff_ffff, 0x000f_ffff_ffff_f000},
	}

	for specIndex, spec := range specs {
		frame := FrameFromAddress(spec.physAddr)
		if frame != spec.expFrame {
			t.Errorf("[spec %d] expected FrameFromAddress(0x%x) to be %d; got %d", specIndex, spec.physAddr, spec.expFrame, frame)
		}

		if !frame.Valid() {
			t.Errorf("[spec %d] expected frame %d to be valid", specIndex, frame)
		}

		if got := frame.Address(); got != spec.expAddr {
			t.Errorf("[spec %d] expected frame %d to start at 0x%x; got 0x%x", specIndex, frame, spec.expAddr, got)
		}
	}

	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame to be invalid")
	}
}

func TestPageAddressRoundTrip(t *testing.T) {
	specs := []struct {
		virtAddr uintptr
		expPage  Page
		expAddr  uintptr
	}{
		{0x0, 0, 0x0},
		{0x1fff, 1, 0x1000},
		{0x7fff_ffff_ffff, 0x7_ffff_ffff, 0x7fff_ffff_f000},
		{0xffff_8000_0000_0123, 0xf_fff8_0000_0000, 0xffff_8000_0000_0000},
		{0xffff_ffff_ffff_ffff, 0xf_ffff_ffff_ffff, 0xffff_ffff_ffff_f000},
	}

	for specIndex, spec := range specs {
		page := PageFromAddress(spec.virtAddr)
		if page != spec.expPage {
			t.Errorf("[spec %d] expected PageFromAddress(0x%x) to be 0x%x; got 0x%x", specIndex, spec.virtAddr, spec.expPage, page)
		}

		if got := page.Address(); got != spec.expAddr {
			t.Errorf("[spec %d] expected page 0x%x to start at 0x%x; got 0x%x", specIndex, page, spec.expAddr, got)
		}
	}
}
