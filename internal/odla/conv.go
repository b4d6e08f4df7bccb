package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// ConvParams configures Conv and DeConv. Spatial pairs are (height, width).
type ConvParams struct {
	InputLayout  layout.Convention // ChannelsFirst or ChannelsLast
	KernelLayout layout.Convention // SIO, OIS or IOS
	Group        int               // <= 1 means ungrouped
	Strides      [2]int
	Dilations    [2]int // only 1 (or unset) is supported
	PadFront     [2]int
	PadBack      [2]int
}

// Conv returns the 2-D convolution of input with kernel. outShape is the
// result shape in the input's layout. A valid bias is added per output
// channel after the convolution.
func (c *Computation) Conv(input, kernel Value, p ConvParams, bias Value, outShape tensor.Shape, name string) Value {
	return c.convolution("conv", false, input, kernel, p, bias, outShape, name)
}

// DeConv returns the 2-D transposed convolution of input with kernel.
// Grouped transposed convolutions take IOS weights holding all input
// channels and the per-group output channels.
func (c *Computation) DeConv(input, kernel Value, p ConvParams, bias Value, outShape tensor.Shape, name string) Value {
	return c.convolution("deconv", true, input, kernel, p, bias, outShape, name)
}

func (c *Computation) convolution(op string, deconv bool, input, kernel Value, p ConvParams, bias Value, outShape tensor.Shape, name string) Value {
	in := c.slot(op, input)
	w := c.slot(op, kernel)
	for _, d := range p.Dilations {
		if d > 1 {
			panic(fmt.Sprintf("%s: dilation %v is not supported", op, p.Dilations))
		}
	}
	if p.InputLayout != layout.ChannelsFirst && p.InputLayout != layout.ChannelsLast {
		panic(fmt.Sprintf("%s: input layout %s is not an activation layout", op, p.InputLayout))
	}
	group := max(p.Group, 1)

	srcDims, dstDims := in.shape, outShape
	if p.InputLayout == layout.ChannelsLast {
		var err error
		srcDims, err = layout.ChannelLastToChannelFirst(in.shape)
		check(op, err)
		dstDims, err = layout.ChannelLastToChannelFirst(outShape)
		check(op, err)
	}
	wDims := c.kernelDims(op, deconv, w.shape, p.KernelLayout, group)
	wTag, err := layout.FormatTagForLayout(p.KernelLayout, group)
	check(op, err)

	dt := dnnlType(in.elem)
	computeType := dt
	if c.opts.EnableBF16 {
		computeType = dnnl.BF16
	}
	algo := dnnl.ConvolutionDirect
	if deconv {
		algo = dnnl.DeconvolutionDirect
	}
	pd, err := dnnl.NewConvolutionPrimitiveDesc(dnnl.ConvolutionDesc{
		Algorithm: algo,
		Src:       dnnl.MustDesc(srcDims, computeType, dnnl.FormatAny),
		Weights:   dnnl.MustDesc(wDims, computeType, dnnl.FormatAny),
		Dst:       dnnl.MustDesc(dstDims, computeType, dnnl.FormatAny),
		Strides:   p.Strides,
		PadL:      p.PadFront,
		PadR:      p.PadBack,
	}, c.eng)
	check(op, err)

	kernelHave, err := dnnl.NewDesc(wDims, dnnlType(w.elem), wTag)
	check(op, err)
	weights := c.weightFor(op, kernel, w, kernelHave, pd.WeightsDesc())

	src := in.mem
	if have := layoutDesc(srcDims, dt, p.InputLayout); !have.Equal(pd.SrcDesc()) {
		src = c.reorderInto(op, in.mem, have, pd.SrcDesc())
	}

	dst := c.alloc(pd.DstDesc())
	c.enqueue(dnnl.NewConvolution(pd), dnnl.Args{
		dnnl.ArgSrc:     src,
		dnnl.ArgWeights: weights,
		dnnl.ArgDst:     dst,
	})

	out := c.newValue(dst, outShape, in.elem, name)
	if want := layoutDesc(dstDims, dt, p.InputLayout); !want.Equal(pd.DstDesc()) {
		c.values[out.index].mem = c.reorderInto(op, dst, pd.DstDesc(), want)
	}
	c.interpretIfNeeded()

	if !bias.IsValid() {
		return out
	}
	return c.Add(out, c.channelBias(op, bias, dstDims[1], p.InputLayout), name)
}

// kernelDims returns the logical (O, I, KH, KW) dims of a weight stored in
// conv, or the grouped (G, O/G, I/G, KH, KW) dims when group > 1.
func (c *Computation) kernelDims(op string, deconv bool, shape tensor.Shape, conv layout.Convention, group int) tensor.Shape {
	var (
		dims tensor.Shape
		err  error
	)
	switch conv {
	case layout.SIO:
		dims, err = layout.WeightSIOToOIS(shape)
	case layout.OIS:
		dims = shape.Clone()
	case layout.IOS:
		dims, err = layout.OutputInputSwapForWeight(shape)
	default:
		err = fmt.Errorf("kernel layout %s is not a weight layout", conv)
	}
	check(op, err)
	if dims.Rank() != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D, got %v", op, shape))
	}
	if group == 1 {
		return dims
	}

	if deconv {
		if conv != layout.IOS {
			panic(fmt.Sprintf("%s: grouped transposed convolution needs IOS weights, got %s", op, conv))
		}
		if dims[1]%group != 0 {
			panic(fmt.Sprintf("%s: input channels %d not divisible by group %d", op, dims[1], group))
		}
		return tensor.Shape{group, dims[0], dims[1] / group, dims[2], dims[3]}
	}
	if conv == layout.SIO {
		dims = layout.SwapGroupedDepthwise(dims, group)
	}
	dims, err = layout.ReorderAxesForGroupedWeight(dims, group)
	check(op, err)
	return dims
}

// channelBias views a per-channel bias so that it broadcasts over a result
// held in conv.
func (c *Computation) channelBias(op string, bias Value, channels int, conv layout.Convention) Value {
	b := c.slot(op, bias)
	if b.shape.NumElements() != channels {
		panic(fmt.Sprintf("%s: bias %v does not hold %d channels", op, b.shape, channels))
	}
	if conv == layout.ChannelsLast {
		return bias
	}
	return c.Reshape(bias, tensor.Shape{1, channels, 1, 1}, "")
}
