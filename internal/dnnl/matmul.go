package dnnl

import (
	"fmt"

	"github.com/born-ml/odla/internal/parallel"
)

// Matmul computes dst(M,N) = src(M,K) x weights(K,N).
//
// Operands are 2-D descriptors with arbitrary strides, so a transposed
// operand is expressed by swapping its strides rather than by a copy.
type Matmul struct {
	src, weights, dst MemoryDesc
}

// NewMatmul creates a matrix multiplication primitive.
func NewMatmul(src, weights, dst MemoryDesc) (*Matmul, error) {
	if src.IsAny() || weights.IsAny() || dst.IsAny() {
		return nil, fmt.Errorf("matmul: descriptors must be concrete")
	}
	if src.Rank() != 2 || weights.Rank() != 2 || dst.Rank() != 2 {
		return nil, fmt.Errorf("matmul: operands must be 2D, got %v x %v -> %v", src.Dims, weights.Dims, dst.Dims)
	}
	m, k := src.Dims[0], src.Dims[1]
	if weights.Dims[0] != k {
		return nil, fmt.Errorf("matmul: inner dimensions mismatch %v x %v", src.Dims, weights.Dims)
	}
	n := weights.Dims[1]
	if dst.Dims[0] != m || dst.Dims[1] != n {
		return nil, fmt.Errorf("matmul: dst dims %v, expected [%d %d]", dst.Dims, m, n)
	}
	return &Matmul{src: src, weights: weights, dst: dst}, nil
}

// Kind implements Primitive.
func (mm *Matmul) Kind() Kind { return KindMatmul }

func (mm *Matmul) execute(par parallel.Config, args Args) error {
	s, err := args.memory(ArgSrc, mm.src)
	if err != nil {
		return err
	}
	w, err := args.memory(ArgWeights, mm.weights)
	if err != nil {
		return err
	}
	d, err := args.memory(ArgDst, mm.dst)
	if err != nil {
		return err
	}

	a := gather(mm.src, s)
	b := gather(mm.weights, w)
	m, k, n := mm.src.Dims[0], mm.src.Dims[1], mm.weights.Dims[1]
	out := make([]float32, m*n)

	// i-k-j order keeps the inner loop streaming over contiguous rows of b.
	parallel.For(m, func(i int) {
		row := out[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			aik := a[i*k+kk]
			if aik == 0 {
				continue
			}
			bRow := b[kk*n : (kk+1)*n]
			for j := range row {
				row[j] += aik * bRow[j]
			}
		}
	}, par)

	scatter(mm.dst, d, out)
	return nil
}
