package vmm

import (
	"testing"
	"unsafe"
	"vmcore/kernel/mm"
)

// useFakeMMU routes the package-level API to m until the returned function is
// invoked.
func useFakeMMU(m *fakeMMU) func() {
	origTablePtr, origFlush, origActivePDT := tablePtrFn, flushTLBEntryFn, activePDTFn

	tablePtrFn = func(tableAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(m.Table(tableAddr))
	}
	flushTLBEntryFn = m.FlushTLBEntry
	activePDTFn = func() uintptr { return m.rootAddr }

	return func() {
		tablePtrFn, flushTLBEntryFn, activePDTFn = origTablePtr, origFlush, origActivePDT
	}
}

func TestInit(t *testing.T) {
	t.Run("self-map present", func(t *testing.T) {
		m := newFakeMMU()
		defer useFakeMMU(m)()

		if err := Init(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("self-map points elsewhere", func(t *testing.T) {
		m := newFakeMMU()
		defer useFakeMMU(m)()

		// CR3 reports a different root than the one the recursive slot
		// points at.
		activePDTFn = func() uintptr { return m.rootAddr + mm.PageSize }

		if err := Init(); err != errMissingSelfMap {
			t.Fatalf("expected error %v; got %v", errMissingSelfMap, err)
		}
	})

	t.Run("self-map read-only", func(t *testing.T) {
		m := newFakeMMU()
		defer useFakeMMU(m)()

		root := m.tables[m.rootAddr]
		root[recursiveIndex] = pageTableEntry(m.rootAddr | uintptr(FlagPresent))

		if err := Init(); err != errMissingSelfMap {
			t.Fatalf("expected error %v; got %v", errMissingSelfMap, err)
		}
	})
}

func TestPackageLevelAPI(t *testing.T) {
	m := newFakeMMU()
	defer useFakeMMU(m)()

	virtAddr := uintptr(0xffff800000001000)
	if err := Map(m.alloc, virtAddr, 0x2000); err != nil {
		t.Fatal(err)
	}

	if got := Get(virtAddr); got != 0x2000 {
		t.Fatalf("expected Get to return 0x2000; got 0x%x", got)
	}

	MarkUser(virtAddr)
	if class, mapped := Protection(virtAddr); !mapped || class != KernelAndUser {
		t.Fatalf("expected a kernel+user mapping; got %s (mapped: %t)", class, mapped)
	}

	if got := Unmap(virtAddr); got != 0x2000 {
		t.Fatalf("expected Unmap to return 0x2000; got 0x%x", got)
	}

	if got := Get(virtAddr); got != 0 {
		t.Fatalf("expected Get to return 0 after Unmap; got 0x%x", got)
	}

	if last := m.flushes[len(m.flushes)-1]; last != virtAddr {
		t.Fatalf("expected the last flush to target 0x%x; got 0x%x", virtAddr, last)
	}
}
