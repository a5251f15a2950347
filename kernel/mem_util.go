package kernel

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of looping over every byte, the first byte is set and then log2(size)
// copies double the initialized prefix, which suits page-aligned regions.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	// overlay a slice on top of this address region
	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
