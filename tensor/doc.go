// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the shape and element-type vocabulary of odla.
//
// # Overview
//
// Values handed to the odla builders are described by a ValueType: an
// element type and a Shape. Tensor data crosses the API as little-endian
// byte slices; AsBytes and FromBytes view typed slices as bytes and back
// without copying.
//
// # Basic Usage
//
//	import "github.com/born-ml/odla/tensor"
//
//	shape := tensor.Shape{1, 3, 224, 224}
//	input := make([]float32, shape.NumElements())
//	buf := tensor.AsBytes(input) // aliases input
//
// # Supported Data Types
//
//   - Float32 (default)
//   - Float16, BFloat16 (stored as 2-byte values)
//   - Int32, Int64
package tensor
