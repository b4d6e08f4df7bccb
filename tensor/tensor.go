// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/odla/internal/tensor"
)

// Shape is the logical extent of a tensor, outermost axis first.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// DType is the constraint on Go element types usable with AsBytes.
type DType = tensor.DType

// Element types.
const (
	Float32  = tensor.Float32
	Float16  = tensor.Float16
	BFloat16 = tensor.BFloat16
	Int32    = tensor.Int32
	Int64    = tensor.Int64
)

// MaxRank is the highest rank a Shape may have.
const MaxRank = tensor.MaxRank

// ParseDataType maps names such as "float32" or "bf16" to a DataType.
func ParseDataType(s string) (DataType, bool) {
	return tensor.ParseDataType(s)
}

// AsBytes returns the bytes of s without copying.
//
// Example:
//
//	out := make([]float32, 4)
//	err := ctx.BindToOutputByID("y", tensor.AsBytes(out))
func AsBytes[T DType](s []T) []byte {
	return tensor.AsBytes(s)
}

// FromBytes views b as a slice of T without copying. Trailing bytes that do
// not fill an element are dropped.
func FromBytes[T DType](b []byte) []T {
	return tensor.FromBytes[T](b)
}
