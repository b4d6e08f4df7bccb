package dnnl

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/odla/internal/parallel"
)

// Softmax normalizes exp(x) along one axis.
type Softmax struct {
	src, dst MemoryDesc
	axis     int
}

// NewSoftmax creates a softmax over axis, which must be in [0, rank).
func NewSoftmax(src, dst MemoryDesc, axis int) (*Softmax, error) {
	if src.IsAny() || dst.IsAny() {
		return nil, fmt.Errorf("softmax: descriptors must be concrete")
	}
	if !slices.Equal(src.Dims, dst.Dims) {
		return nil, fmt.Errorf("softmax: dims mismatch %v -> %v", src.Dims, dst.Dims)
	}
	if axis < 0 || axis >= src.Rank() {
		return nil, fmt.Errorf("softmax: axis %d out of range for rank %d", axis, src.Rank())
	}
	return &Softmax{src: src, dst: dst, axis: axis}, nil
}

// Kind implements Primitive.
func (s *Softmax) Kind() Kind { return KindSoftmax }

func (s *Softmax) execute(par parallel.Config, args Args) error {
	sm, err := args.memory(ArgSrc, s.src)
	if err != nil {
		return err
	}
	dm, err := args.memory(ArgDst, s.dst)
	if err != nil {
		return err
	}

	x := gather(s.src, sm)
	outer, extent, inner := 1, s.src.Dims[s.axis], 1
	for i, d := range s.src.Dims {
		switch {
		case i < s.axis:
			outer *= d
		case i > s.axis:
			inner *= d
		}
	}

	parallel.For(outer*inner, func(k int) {
		o, in := k/inner, k%inner
		base := o*extent*inner + in
		maxVal := float32(math.Inf(-1))
		for j := 0; j < extent; j++ {
			maxVal = max(maxVal, x[base+j*inner])
		}
		var sum float64
		for j := 0; j < extent; j++ {
			e := math.Exp(float64(x[base+j*inner] - maxVal))
			x[base+j*inner] = float32(e)
			sum += e
		}
		for j := 0; j < extent; j++ {
			x[base+j*inner] = float32(float64(x[base+j*inner]) / sum)
		}
	}, par)

	scatter(s.dst, dm, x)
	return nil
}
