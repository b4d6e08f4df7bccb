package tensor

import "unsafe"

// AsBytes reinterprets a typed slice as its backing bytes without copying.
//
// The returned slice aliases s, so binding it to a value lets an execution
// write straight into the caller's []float32 (or []int32, ...).
func AsBytes[T DType](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	//nolint:gosec // unsafe.Slice for zero-copy aliasing, length derived from len(s)
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// FromBytes reinterprets a byte slice as a typed slice without copying.
// Trailing bytes that do not form a whole element are ignored.
func FromBytes[T DType](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy aliasing, bounds checked by n
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}
