package vmm

import "testing"

func TestEntryFlags(t *testing.T) {
	specs := []struct {
		class   ProtectionClass
		present bool
		exp     PageTableEntryFlag
	}{
		{KernelOnly, false, 0},
		{KernelAndUser, false, 0},
		{KernelOnly, true, 3},
		{KernelAndUser, true, 7},
	}

	for specIndex, spec := range specs {
		if got := entryFlags(spec.class, spec.present); got != spec.exp {
			t.Errorf("[spec %d] expected flags for (%s, present: %t) to be %d; got %d", specIndex, spec.class, spec.present, spec.exp, got)
		}
	}
}

func TestMakeEntry(t *testing.T) {
	pte := makeEntry(0x2000, KernelOnly)
	if exp := pageTableEntry(0x2003); pte != exp {
		t.Fatalf("expected entry 0x%x; got 0x%x", exp, pte)
	}

	// offset bits and bits above the physical address range are dropped
	pte = makeEntry(0xfff0_0000_0000_2abc, KernelAndUser)
	if exp := pageTableEntry(0x2007); pte != exp {
		t.Fatalf("expected entry 0x%x; got 0x%x", exp, pte)
	}

	if got := pte.Address(); got != 0x2000 {
		t.Errorf("expected entry address to be 0x2000; got 0x%x", got)
	}

	if got := pte.Class(); got != KernelAndUser {
		t.Errorf("expected entry class to be %s; got %s", KernelAndUser, got)
	}
}

func TestPageTableEntryFlags(t *testing.T) {
	var pte pageTableEntry

	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected a zero entry not to be present")
	}

	pte.SetFlags(FlagPresent | FlagRW)
	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected entry to have FlagPresent and FlagRW set")
	}

	if pte.HasFlags(FlagPresent | FlagUserAccessible) {
		t.Fatal("expected HasFlags to require all supplied flags")
	}

	if got := pte.Class(); got != KernelOnly {
		t.Fatalf("expected entry class to be %s; got %s", KernelOnly, got)
	}

	pte.SetFlags(FlagUserAccessible)
	if exp := pageTableEntry(7); pte != exp {
		t.Fatalf("expected entry 0x%x; got 0x%x", exp, pte)
	}
}

func TestProtectionClassString(t *testing.T) {
	if got := KernelOnly.String(); got != "kernel" {
		t.Errorf("expected KernelOnly to be rendered as %q; got %q", "kernel", got)
	}
	if got := KernelAndUser.String(); got != "kernel+user" {
		t.Errorf("expected KernelAndUser to be rendered as %q; got %q", "kernel+user", got)
	}
}
