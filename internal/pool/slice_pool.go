package pool

import "sync"

// float32SlicePool holds the per-channel lookup tables and the accumulation
// buffers of multi-channel composition.
var float32SlicePool = sync.Pool{
	New: func() any { return &[]float32{} },
}

// GetFloat32Slice retrieves a zeroed float32 slice of length size from the pool.
//
// If the pooled slice has insufficient capacity, a new slice is allocated.
// The caller must call the returned cleanup function to return the slice to
// the pool and must not use the slice afterwards.
//
// Parameters:
//   - size: The desired length of the slice
//
// Returns:
//   - []float32: A zeroed slice with length equal to size
//   - func(): Cleanup function that returns the slice to the pool
//
// Example:
//
//	acc, cleanup := pool.GetFloat32Slice(width * height * 3)
//	defer cleanup()
func GetFloat32Slice(size int) ([]float32, func()) {
	ptr, _ := float32SlicePool.Get().(*[]float32)

	var slice []float32
	if cap(*ptr) < size {
		slice = make([]float32, size)
	} else {
		slice = (*ptr)[:size]
		clear(slice)
	}
	*ptr = slice

	return slice, func() { float32SlicePool.Put(ptr) }
}
