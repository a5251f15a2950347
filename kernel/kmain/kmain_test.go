package kmain

import (
	"bytes"
	"testing"
	"vmcore/kernel"
	"vmcore/kernel/kfmt"
	"vmcore/kernel/mm/vmm"
)

func TestKmain(t *testing.T) {
	defer func() {
		vmmInitFn = vmm.Init
		panicFn = kfmt.Panic
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	errInit := &kernel.Error{Module: "test", Message: "no self-map"}

	specs := []struct {
		descr   string
		initErr *kernel.Error
		expErr  *kernel.Error
	}{
		{"vmm init fails", errInit, errInit},
		{"Kmain returns", nil, errKmainReturned},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var panics []interface{}

			vmmInitFn = func() *kernel.Error { return spec.initErr }
			panicFn = func(e interface{}) { panics = append(panics, e) }

			Kmain(0x7000, 0x8000)

			if len(panics) != 1 || panics[0] != spec.expErr {
				t.Fatalf("expected a single panic with %v; got %v", spec.expErr, panics)
			}
		})
	}
}
