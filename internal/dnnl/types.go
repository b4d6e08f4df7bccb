// Package dnnl is a pure Go tensor primitive library modelled on oneDNN.
//
// # Overview
//
// The vocabulary follows the vendor library the backend was designed against:
//
//   - MemoryDesc describes dims, element type and physical layout (a named
//     FormatTag or explicit strides)
//   - Memory pairs a descriptor with a byte buffer that can be re-pointed at
//     caller memory with SetDataHandle
//   - primitive descriptors validate a configuration and, where a descriptor
//     says FormatAny, pick the library's preferred layout
//   - primitives run on a Stream with an Args map binding roles to Memory
//
// Primitives interpret buffers through their own descriptors, never through
// the descriptor of the Memory bound at execution time. That lets a Reorder
// built for a permuted view read from the memory of a dense tensor.
package dnnl

import "fmt"

// DataType is the element type of a memory descriptor.
type DataType int

// Supported element types.
const (
	DataTypeUndef DataType = iota
	F32
	F16
	BF16
	S32
	S64
)

// Size returns the element size in bytes.
func (dt DataType) Size() int {
	switch dt {
	case F32, S32:
		return 4
	case F16, BF16:
		return 2
	case S64:
		return 8
	default:
		return 0
	}
}

func (dt DataType) String() string {
	switch dt {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case BF16:
		return "bf16"
	case S32:
		return "s32"
	case S64:
		return "s64"
	default:
		return "undef"
	}
}

func (dt DataType) isInteger() bool {
	return dt == S32 || dt == S64
}

// Algorithm selects the flavour of a primitive.
type Algorithm int

// Supported algorithms.
const (
	AlgorithmUndef Algorithm = iota
	BinaryAdd
	BinaryMul
	EltwiseRelu
	EltwiseLogistic
	EltwiseClip
	EltwiseLinear
	ConvolutionDirect
	DeconvolutionDirect
	PoolingMax
	PoolingAvg // average excluding padding
	LRNAcrossChannels
)

func (a Algorithm) String() string {
	switch a {
	case BinaryAdd:
		return "binary_add"
	case BinaryMul:
		return "binary_mul"
	case EltwiseRelu:
		return "eltwise_relu"
	case EltwiseLogistic:
		return "eltwise_logistic"
	case EltwiseClip:
		return "eltwise_clip"
	case EltwiseLinear:
		return "eltwise_linear"
	case ConvolutionDirect:
		return "convolution_direct"
	case DeconvolutionDirect:
		return "deconvolution_direct"
	case PoolingMax:
		return "pooling_max"
	case PoolingAvg:
		return "pooling_avg"
	case LRNAcrossChannels:
		return "lrn_across_channels"
	default:
		return "undef"
	}
}

// Arg names the role a Memory plays in a primitive execution.
type Arg int

// Argument roles.
const (
	ArgSrc Arg = iota + 1
	ArgSrc1
	ArgDst
	ArgWeights
	ArgMean
	ArgVariance
	ArgScaleShift

	// ArgMultipleSrc is the first of the numbered inputs used by Concat.
	ArgMultipleSrc Arg = 1024
)

// Role aliases matching the vendor library's naming.
const (
	ArgSrc0 = ArgSrc
	ArgFrom = ArgSrc
	ArgTo   = ArgDst
)

func (a Arg) String() string {
	switch a {
	case ArgSrc:
		return "src"
	case ArgSrc1:
		return "src_1"
	case ArgDst:
		return "dst"
	case ArgWeights:
		return "weights"
	case ArgMean:
		return "mean"
	case ArgVariance:
		return "variance"
	case ArgScaleShift:
		return "scale_shift"
	}
	if a >= ArgMultipleSrc {
		return fmt.Sprintf("multiple_src_%d", a-ArgMultipleSrc)
	}
	return fmt.Sprintf("arg(%d)", int(a))
}

// Args binds argument roles to memories for one execution.
type Args map[Arg]*Memory

// memory returns the buffer bound to role after checking it can hold desc.
func (a Args) memory(role Arg, desc MemoryDesc) ([]byte, error) {
	m, ok := a[role]
	if !ok || m == nil {
		return nil, fmt.Errorf("missing argument %s", role)
	}
	data := m.DataHandle()
	if need := desc.Size(); len(data) < need {
		return nil, fmt.Errorf("argument %s: buffer holds %d bytes, descriptor %s needs %d: %w",
			role, len(data), desc, need, ErrBufferTooSmall)
	}
	return data, nil
}
