package dnnl

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// Eltwise applies a unary algorithm to every element.
//
//	EltwiseRelu:     x >= 0 ? x : alpha*x
//	EltwiseLogistic: 1 / (1 + exp(-x))
//	EltwiseClip:     min(max(x, alpha), beta)
//	EltwiseLinear:   alpha*x + beta
type Eltwise struct {
	algo        Algorithm
	alpha, beta float32
	src, dst    MemoryDesc
}

// NewEltwise creates an eltwise primitive writing a tensor shaped like src.
func NewEltwise(algo Algorithm, src, dst MemoryDesc, alpha, beta float32) (*Eltwise, error) {
	switch algo {
	case EltwiseRelu, EltwiseLogistic, EltwiseLinear:
	case EltwiseClip:
		if alpha > beta {
			return nil, fmt.Errorf("eltwise: clip bounds [%g, %g] are inverted", alpha, beta)
		}
	default:
		return nil, fmt.Errorf("eltwise: unsupported algorithm %s", algo)
	}
	if src.IsAny() || dst.IsAny() {
		return nil, fmt.Errorf("eltwise: descriptors must be concrete")
	}
	if !slices.Equal(src.Dims, dst.Dims) {
		return nil, fmt.Errorf("eltwise: dims mismatch %v -> %v", src.Dims, dst.Dims)
	}
	return &Eltwise{algo: algo, alpha: alpha, beta: beta, src: src, dst: dst}, nil
}

// Kind implements Primitive.
func (e *Eltwise) Kind() Kind { return KindEltwise }

func (e *Eltwise) execute(par parallel.Config, args Args) error {
	s, err := args.memory(ArgSrc, e.src)
	if err != nil {
		return err
	}
	d, err := args.memory(ArgDst, e.dst)
	if err != nil {
		return err
	}

	x := gather(e.src, s)
	const chunk = 4096
	parallel.For((len(x)+chunk-1)/chunk, func(c int) {
		lo, hi := c*chunk, min((c+1)*chunk, len(x))
		switch e.algo {
		case EltwiseRelu:
			for i := lo; i < hi; i++ {
				if x[i] < 0 {
					x[i] *= e.alpha
				}
			}
		case EltwiseLogistic:
			for i := lo; i < hi; i++ {
				x[i] = float32(1 / (1 + math.Exp(-float64(x[i]))))
			}
		case EltwiseClip:
			for i := lo; i < hi; i++ {
				x[i] = min(max(x[i], e.alpha), e.beta)
			}
		case EltwiseLinear:
			for i := lo; i < hi; i++ {
				x[i] = e.alpha*x[i] + e.beta
			}
		}
	}, par)

	scatter(e.dst, d, x)
	return nil
}
