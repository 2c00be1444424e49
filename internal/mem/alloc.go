package mem

import (
	"unsafe"
)

// Alignment is the byte alignment for backing arrays (one cache line).
const Alignment = 64

// AllocAligned allocates a byte slice of the given size with 64-byte alignment.
// The returned slice is guaranteed to start at a memory address divisible by 64.
//
// Note: This function allocates slightly more memory than requested to ensure
// alignment. The underlying array is kept alive by the returned slice.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	// Allocate size + alignment to ensure we can find an aligned offset.
	totalSize := size + Alignment
	buf := make([]byte, totalSize)

	ptr := unsafe.Pointer(&buf[0])
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	return buf[offset : offset+uintptr(size)]
}

// AllocSlice allocates a []T of length n backed by 64-byte aligned memory.
//
// The element type's own alignment requirement is always satisfied because it
// divides 64 for every type Go can express.
func AllocSlice[T any](n int) []T {
	if n <= 0 {
		return nil
	}

	var zero T
	elem := int(unsafe.Sizeof(zero))
	if elem == 0 {
		// Zero-sized elements occupy no storage; a plain make suffices and
		// reserves nothing.
		return make([]T, n)
	}

	buf := AllocAligned(n * elem)
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}
