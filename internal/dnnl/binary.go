package dnnl

import (
	"fmt"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// Binary applies an elementwise binary algorithm dst = src0 op src1.
//
// src0 and dst share dims. src1 has the same rank and each of its dims either
// matches or is 1, in which case it is broadcast. Zero strides in src1 are
// honoured as well, which is how lower-rank operands are broadcast.
type Binary struct {
	algo            Algorithm
	src0, src1, dst MemoryDesc
	bcast           MemoryDesc // src1 viewed with dst dims
}

// NewBinary creates a binary primitive.
func NewBinary(algo Algorithm, src0, src1, dst MemoryDesc) (*Binary, error) {
	if algo != BinaryAdd && algo != BinaryMul {
		return nil, fmt.Errorf("binary: unsupported algorithm %s", algo)
	}
	if src0.IsAny() || src1.IsAny() || dst.IsAny() {
		return nil, fmt.Errorf("binary: descriptors must be concrete")
	}
	if !slices.Equal(src0.Dims, dst.Dims) {
		return nil, fmt.Errorf("binary: src0 dims %v differ from dst dims %v", src0.Dims, dst.Dims)
	}
	if src1.Rank() != dst.Rank() {
		return nil, fmt.Errorf("binary: src1 rank %d differs from dst rank %d", src1.Rank(), dst.Rank())
	}

	strides := slices.Clone(src1.Strides)
	for i, d := range src1.Dims {
		switch {
		case d == dst.Dims[i]:
		case d == 1:
			strides[i] = 0
		default:
			return nil, fmt.Errorf("binary: src1 dims %v cannot broadcast to %v", src1.Dims, dst.Dims)
		}
	}
	bcast := MemoryDesc{
		Dims:    slices.Clone(dst.Dims),
		Type:    src1.Type,
		Format:  FormatUndef,
		Strides: strides,
		Offset:  src1.Offset,
	}
	return &Binary{algo: algo, src0: src0, src1: src1, dst: dst, bcast: bcast}, nil
}

// Kind implements Primitive.
func (b *Binary) Kind() Kind { return KindBinary }

func (b *Binary) execute(par parallel.Config, args Args) error {
	s0, err := args.memory(ArgSrc0, b.src0)
	if err != nil {
		return err
	}
	s1, err := args.memory(ArgSrc1, b.src1)
	if err != nil {
		return err
	}
	d, err := args.memory(ArgDst, b.dst)
	if err != nil {
		return err
	}

	lhs := gather64(b.src0, s0)
	rhs := gather64(b.bcast, s1)
	out := make([]float64, len(lhs))

	const chunk = 4096
	parallel.For((len(out)+chunk-1)/chunk, func(c int) {
		lo, hi := c*chunk, min((c+1)*chunk, len(out))
		switch b.algo {
		case BinaryAdd:
			for i := lo; i < hi; i++ {
				out[i] = lhs[i] + rhs[i]
			}
		case BinaryMul:
			for i := lo; i < hi; i++ {
				out[i] = lhs[i] * rhs[i]
			}
		}
	}, par)

	scatter64(b.dst, d, out)
	return nil
}
