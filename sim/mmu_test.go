package sim

import (
	"testing"
	"vmcore/kernel/mm/vmm"

	"github.com/google/go-cmp/cmp"
)

func TestTranslateFaults(t *testing.T) {
	m, _ := newTestMachine(t, 8)

	specs := []struct {
		descr    string
		virtAddr uintptr
		user     bool
		expErr   error
	}{
		{"nothing mapped", 0x1000, false, ErrPageFault},
		{"missing level-3 table", vmm.TableAddr(vmm.Level3, 0), false, ErrPageFault},
		{"non-canonical", 0x0000_8000_0000_0000, false, ErrNonCanonical},
		{"non-canonical upper edge", 0xffff_7fff_ffff_f000, false, ErrNonCanonical},
		// the first pages on either side of the hole are canonical
		{"highest lower-half page", 0x0000_7fff_ffff_f000, false, ErrPageFault},
		{"lowest upper-half page", 0xffff_8000_0000_0000, false, ErrPageFault},
		// the self-map entry is kernel-only
		{"user access to page tables", vmm.TableAddr(vmm.LevelRoot), true, ErrProtectionFault},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			_, err := m.Translate(spec.virtAddr, spec.user)
			if err == nil || error(err) != spec.expErr {
				t.Fatalf("expected error %v; got %v", spec.expErr, err)
			}
		})
	}
}

func TestTableOnUnmappedAddressPanics(t *testing.T) {
	m, _ := newTestMachine(t, 8)

	defer func() {
		if err := recover(); err != ErrPageFault {
			t.Fatalf("expected Table to panic with ErrPageFault; got %v", err)
		}
	}()

	m.Table(vmm.TableAddr(vmm.LevelLeaf, 1, 2, 3))
}

func TestTLBCachesTranslations(t *testing.T) {
	m, _ := newTestMachine(t, 8)
	tr := m.Translator()

	if err := tr.Map(m.AllocFrame, 0x1000, 0x5000); err != nil {
		t.Fatal(err)
	}

	if phys, err := m.Translate(0x1234, false); err != nil || phys != 0x5234 {
		t.Fatalf("expected 0x1234 to translate to 0x5234; got 0x%x (%v)", phys, err)
	}

	// The permission upgrade is invisible until the stale entry is
	// flushed.
	tr.MarkUser(0x1000)
	if _, err := m.Translate(0x1000, true); err != ErrProtectionFault {
		t.Fatalf("expected cached kernel-only translation to deny user access; got %v", err)
	}

	m.FlushTLBEntry(0x1000)
	if phys, err := m.Translate(0x1000, true); err != nil || phys != 0x5000 {
		t.Fatalf("expected user access after flush; got 0x%x (%v)", phys, err)
	}

	// Map and Unmap flush on their own.
	if err := tr.Map(m.AllocFrame, 0x1000, 0x6000); err != nil {
		t.Fatal(err)
	}
	if phys, _ := m.Translate(0x1000, false); phys != 0x6000 {
		t.Fatalf("expected re-map to be visible; got 0x%x", phys)
	}

	tr.Unmap(0x1000)
	if _, err := m.Translate(0x1000, false); err != ErrPageFault {
		t.Fatalf("expected unmapped page to fault; got %v", err)
	}
}

func TestFlushAll(t *testing.T) {
	m, _ := newTestMachine(t, 8)
	tr := m.Translator()

	if err := tr.Map(m.AllocFrame, 0x1000, 0x5000); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Translate(0x1000, false); err != nil {
		t.Fatal(err)
	}

	// Clear the leaf behind the MMU's back.
	m.Table(vmm.TableAddr(vmm.LevelLeaf, 0, 0, 0))[1] = 0
	if phys, err := m.Translate(0x1000, false); err != nil || phys != 0x5000 {
		t.Fatalf("expected the stale translation to be used; got 0x%x (%v)", phys, err)
	}

	m.FlushAll()
	if _, err := m.Translate(0x1000, false); err != ErrPageFault {
		t.Fatalf("expected a page fault after FlushAll; got %v", err)
	}
}

func TestFlushesAreRecorded(t *testing.T) {
	m, hook := newTestMachine(t, 8)

	if err := m.Translator().Map(m.AllocFrame, 0x1000, 0x2000); err != nil {
		t.Fatal(err)
	}

	exp := []uintptr{
		vmm.TableAddr(vmm.Level3, 0),
		vmm.TableAddr(vmm.Level2, 0, 0),
		vmm.TableAddr(vmm.LevelLeaf, 0, 0, 0),
		0x1000,
	}
	if diff := cmp.Diff(exp, m.Flushes()); diff != "" {
		t.Fatalf("unexpected flushes (-want +got):\n%s", diff)
	}

	var flushLogs int
	for _, entry := range hook.AllEntries() {
		if entry.Message == "flushed TLB entry" {
			flushLogs++
		}
	}
	if flushLogs != len(exp) {
		t.Fatalf("expected %d flush log entries; got %d", len(exp), flushLogs)
	}
}
