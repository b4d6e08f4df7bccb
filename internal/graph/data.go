package graph

import (
	"encoding/binary"
	"math"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/odla/internal/tensor"
)

// Encode converts vals to the little-endian byte form of dt.
func Encode(dt tensor.DataType, vals []float64) []byte {
	out := make([]byte, len(vals)*dt.Size())
	switch dt {
	case tensor.Float32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
		}
	case tensor.Float16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(float32(v)).Bits())
		}
	case tensor.BFloat16:
		f := make([]float32, len(vals))
		for i, v := range vals {
			f[i] = float32(v)
		}
		copy(out, bfloat16.EncodeFloat32(f))
	case tensor.Int32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
		}
	case tensor.Int64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(int64(v)))
		}
	}
	return out
}

// Decode converts the little-endian bytes of dt back to numbers. Trailing
// bytes that do not fill an element are ignored.
func Decode(dt tensor.DataType, data []byte) []float64 {
	n := len(data) / dt.Size()
	out := make([]float64, n)
	switch dt {
	case tensor.Float32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case tensor.Float16:
		for i := range out {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32())
		}
	case tensor.BFloat16:
		for i, v := range bfloat16.DecodeFloat32(data[:n*2]) {
			out[i] = float64(v)
		}
	case tensor.Int32:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case tensor.Int64:
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
		}
	}
	return out
}

// ints decodes integer-valued data, as used for shapes and bounds.
func ints(dt tensor.DataType, data []byte) []int64 {
	vals := Decode(dt, data)
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}
