package dnnl

import (
	"encoding/binary"
	"math"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/born-ml/odla/internal/tensor"
)

// forEachOffset calls fn for every logical index of dims in row-major order
// with the element offset the strides give it.
func forEachOffset(dims, strides []int, base int, fn func(i, off int)) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	rank := len(dims)
	idx := make([]int, rank)
	off := base
	for i := 0; i < n; i++ {
		fn(i, off)
		for ax := rank - 1; ax >= 0; ax-- {
			idx[ax]++
			off += strides[ax]
			if idx[ax] < dims[ax] {
				break
			}
			off -= strides[ax] * dims[ax]
			idx[ax] = 0
		}
	}
}

// pack copies the elements addressed by d into a dense row-major byte slice.
func pack(d MemoryDesc, data []byte) []byte {
	es := d.Type.Size()
	n := d.NumElements()
	if d.IsDense() {
		return data[:n*es]
	}
	out := make([]byte, n*es)
	forEachOffset(d.Dims, d.Strides, d.Offset, func(i, off int) {
		copy(out[i*es:(i+1)*es], data[off*es:(off+1)*es])
	})
	return out
}

// unpack writes dense row-major bytes into the elements addressed by d.
func unpack(d MemoryDesc, data, dense []byte) {
	es := d.Type.Size()
	if d.IsDense() {
		copy(data, dense[:d.NumElements()*es])
		return
	}
	forEachOffset(d.Dims, d.Strides, d.Offset, func(i, off int) {
		copy(data[off*es:(off+1)*es], dense[i*es:(i+1)*es])
	})
}

// gather reads the elements addressed by d as float32 in logical row-major order.
func gather(d MemoryDesc, data []byte) []float32 {
	raw := pack(d, data)
	n := d.NumElements()
	switch d.Type {
	case F32:
		out := make([]float32, n)
		copy(out, tensor.FromBytes[float32](raw))
		return out
	case BF16:
		return bfloat16.DecodeFloat32(raw)
	case F16:
		out := make([]float32, n)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
		return out
	case S32:
		out := make([]float32, n)
		for i, v := range tensor.FromBytes[int32](raw) {
			out[i] = float32(v)
		}
		return out
	case S64:
		out := make([]float32, n)
		for i, v := range tensor.FromBytes[int64](raw) {
			out[i] = float32(v)
		}
		return out
	default:
		panic("gather: undefined data type")
	}
}

// scatter writes vals into the elements addressed by d, converting to d.Type.
func scatter(d MemoryDesc, data []byte, vals []float32) {
	var raw []byte
	switch d.Type {
	case F32:
		raw = tensor.AsBytes(vals)
	case BF16:
		raw = bfloat16.EncodeFloat32(vals)
	case F16:
		raw = make([]byte, len(vals)*2)
		for i, v := range vals {
			binary.LittleEndian.PutUint16(raw[i*2:], float16.Fromfloat32(v).Bits())
		}
	case S32:
		ints := make([]int32, len(vals))
		for i, v := range vals {
			ints[i] = saturateInt32(float64(v))
		}
		raw = tensor.AsBytes(ints)
	case S64:
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = saturateInt64(float64(v))
		}
		raw = tensor.AsBytes(ints)
	default:
		panic("scatter: undefined data type")
	}
	unpack(d, data, raw)
}

// gather64 is gather for float64 math; integer tensors stay exact up to 2^53.
func gather64(d MemoryDesc, data []byte) []float64 {
	switch d.Type {
	case S32:
		raw := pack(d, data)
		out := make([]float64, d.NumElements())
		for i, v := range tensor.FromBytes[int32](raw) {
			out[i] = float64(v)
		}
		return out
	case S64:
		raw := pack(d, data)
		out := make([]float64, d.NumElements())
		for i, v := range tensor.FromBytes[int64](raw) {
			out[i] = float64(v)
		}
		return out
	default:
		f := gather(d, data)
		out := make([]float64, len(f))
		for i, v := range f {
			out[i] = float64(v)
		}
		return out
	}
}

// scatter64 is scatter for float64 results.
func scatter64(d MemoryDesc, data []byte, vals []float64) {
	switch d.Type {
	case S32:
		ints := make([]int32, len(vals))
		for i, v := range vals {
			ints[i] = saturateInt32(v)
		}
		unpack(d, data, tensor.AsBytes(ints))
	case S64:
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = saturateInt64(v)
		}
		unpack(d, data, tensor.AsBytes(ints))
	default:
		f := make([]float32, len(vals))
		for i, v := range vals {
			f[i] = float32(v)
		}
		scatter(d, data, f)
	}
}

func saturateInt32(v float64) int32 {
	v = math.RoundToEven(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func saturateInt64(v float64) int64 {
	v = math.RoundToEven(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}
