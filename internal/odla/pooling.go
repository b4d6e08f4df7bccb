package odla

import (
	"fmt"
	"slices"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// PoolParams configures MaxPool and AveragePool. Spatial pairs are
// (height, width).
type PoolParams struct {
	Layout   layout.Convention // ChannelsFirst or ChannelsLast
	Window   [2]int
	Strides  [2]int
	PadFront [2]int
	PadBack  [2]int
}

// MaxPool returns the windowed maximum of input. outShape is in the input's
// layout.
func (c *Computation) MaxPool(input Value, p PoolParams, outShape tensor.Shape, name string) Value {
	return c.pool("max_pool", dnnl.PoolingMax, input, p, outShape, name)
}

// AveragePool returns the windowed mean of input. Padding does not count
// towards the mean.
func (c *Computation) AveragePool(input Value, p PoolParams, outShape tensor.Shape, name string) Value {
	return c.pool("average_pool", dnnl.PoolingAvg, input, p, outShape, name)
}

func (c *Computation) pool(op string, algo dnnl.Algorithm, input Value, p PoolParams, outShape tensor.Shape, name string) Value {
	s := c.slot(op, input)
	srcDims, dstDims := s.shape, outShape
	if p.Layout == layout.ChannelsLast {
		var err error
		srcDims, err = layout.ChannelLastToChannelFirst(s.shape)
		check(op, err)
		dstDims, err = layout.ChannelLastToChannelFirst(outShape)
		check(op, err)
	} else if p.Layout != layout.ChannelsFirst {
		panic(fmt.Sprintf("%s: layout %s is not an activation layout", op, p.Layout))
	}
	if srcDims.Rank() != 4 || dstDims.Rank() != 4 {
		panic(fmt.Sprintf("%s: pooling needs 4D tensors, got %v -> %v", op, s.shape, outShape))
	}

	dt := dnnlType(s.elem)
	prim, err := dnnl.NewPooling(dnnl.PoolingDesc{
		Algorithm: algo,
		Src:       layoutDesc(srcDims, dt, p.Layout),
		Dst:       layoutDesc(dstDims, dt, p.Layout),
		Kernel:    p.Window,
		Strides:   p.Strides,
		PadL:      p.PadFront,
		PadR:      p.PadBack,
	})
	check(op, err)
	out, mem := c.result(outShape, s.elem, name)
	c.enqueue(prim, dnnl.Args{dnnl.ArgSrc: s.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}

// ReduceMean averages input over axes, which must form a contiguous run of a
// 4D tensor. Negative axes count from the end. A nil outShape is derived
// from keepDims.
func (c *Computation) ReduceMean(input Value, axes []int, keepDims bool, outShape tensor.Shape, name string) Value {
	const op = "reduce_mean"
	s := c.slot(op, input)
	if s.shape.Rank() != 4 {
		panic(fmt.Sprintf("%s: only 4D inputs are supported, got %v", op, s.shape))
	}
	norm := make([]int, len(axes))
	for i, a := range axes {
		norm[i] = s.shape.NormalizeAxis(a)
	}
	slices.Sort(norm)
	norm = slices.Compact(norm)

	pooled, err := layout.ReduceAsPoolShape(s.shape, norm)
	check(op, err)
	if outShape == nil {
		outShape = reducedShape(s.shape, norm, keepDims)
	}
	batch, channels, reduced := pooled[0], pooled[1], pooled[3]
	if outShape.NumElements() != batch*channels {
		panic(fmt.Sprintf("%s: output %v does not hold %d elements", op, outShape, batch*channels))
	}

	// In row-major memory the input is (batch, reduced, channels), which is
	// the NHWC layout of (batch, channels, 1, reduced).
	dt := dnnlType(s.elem)
	prim, err := dnnl.NewPooling(dnnl.PoolingDesc{
		Algorithm: dnnl.PoolingAvg,
		Src:       dnnl.MustDesc(pooled, dt, dnnl.FormatNHWC),
		Dst:       dnnl.MustDesc([]int{batch, channels, 1, 1}, dt, dnnl.FormatNHWC),
		Kernel:    [2]int{1, reduced},
		Strides:   [2]int{1, reduced},
	})
	check(op, err)
	out, mem := c.result(outShape, s.elem, name)
	c.enqueue(prim, dnnl.Args{dnnl.ArgSrc: s.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}

func reducedShape(shape tensor.Shape, axes []int, keepDims bool) tensor.Shape {
	var out tensor.Shape
	for i, d := range shape {
		switch {
		case !slices.Contains(axes, i):
			out = append(out, d)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out
}
