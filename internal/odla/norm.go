package odla

import (
	"fmt"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

// BatchNormParams configures BatchNormalization.
type BatchNormParams struct {
	Layout       layout.Convention // of 4D inputs; other ranks keep channels on axis 1
	Epsilon      float32
	ScalarScale  float32 // used when no scale value is given
	ScalarOffset float32 // used when no offset value is given
}

// BatchNormalization normalizes input with the running mean and variance:
//
//	(x - mean) / sqrt(variance + epsilon) * scale + offset
//
// Scale and offset are optional values; missing ones take the scalar from p
// for every channel.
func (c *Computation) BatchNormalization(input Value, p BatchNormParams, mean, variance, scale, offset Value, name string) Value {
	const op = "batch_normalization"
	s := c.slot(op, input)
	m := c.slot(op, mean)
	v := c.slot(op, variance)

	dt := dnnlType(s.elem)
	var desc dnnl.MemoryDesc
	switch {
	case s.shape.Rank() == 4:
		dims := s.shape
		if p.Layout == layout.ChannelsLast {
			var err error
			dims, err = layout.ChannelLastToChannelFirst(s.shape)
			check(op, err)
		}
		desc = layoutDesc(dims, dt, p.Layout)
	case p.Layout == layout.ChannelsLast:
		panic(fmt.Sprintf("%s: channel-last input must be 4D, got %v", op, s.shape))
	default:
		desc = s.denseDesc()
	}
	if desc.Rank() < 2 {
		panic(fmt.Sprintf("%s: input %v has no channel axis", op, s.shape))
	}
	channels := desc.Dims[1]

	scaleShift := c.alloc(dnnl.MustDesc([]int{2, channels}, dnnl.F32, dnnl.FormatAB))
	c.packScaleShift(op, scaleShift, 0, scale, p.ScalarScale, channels)
	c.packScaleShift(op, scaleShift, 1, offset, p.ScalarOffset, channels)

	prim, err := dnnl.NewBatchNorm(dnnl.BatchNormDesc{
		Src:           desc,
		Dst:           desc,
		Mean:          m.denseDesc(),
		Variance:      v.denseDesc(),
		ScaleShift:    scaleShift.Desc(),
		Epsilon:       p.Epsilon,
		UseScaleShift: true,
	})
	check(op, err)
	out, mem := c.result(s.shape, s.elem, name)
	c.enqueue(prim, dnnl.Args{
		dnnl.ArgSrc:        s.mem,
		dnnl.ArgMean:       m.mem,
		dnnl.ArgVariance:   v.mem,
		dnnl.ArgScaleShift: scaleShift,
		dnnl.ArgDst:        mem,
	})
	c.interpretIfNeeded()
	return out
}

// packScaleShift fills row of the (2, C) scale/shift buffer from v, or with
// scalar when v is absent. Constant rows are written now, others by a
// queued reorder.
func (c *Computation) packScaleShift(op string, dst *dnnl.Memory, row int, v Value, scalar float32, channels int) {
	if !v.IsValid() {
		vals := tensor.FromBytes[float32](dst.DataHandle())[row*channels : (row+1)*channels]
		for i := range vals {
			vals[i] = scalar
		}
		return
	}
	s := c.slot(op, v)
	if s.shape.NumElements() != channels {
		panic(fmt.Sprintf("%s: %v does not hold %d channels", op, s.shape, channels))
	}
	to, err := dst.Desc().Submemory([]int{1, channels}, []int{row, 0})
	check(op, err)
	from := dnnl.MustDesc([]int{1, channels}, dnnlType(s.elem), dnnl.FormatAB)
	r, err := dnnl.NewReorder(from, to)
	check(op, err)
	args := dnnl.Args{dnnl.ArgFrom: s.mem, dnnl.ArgTo: dst}
	if s.isConst {
		check(op, dnnl.ExecuteNow(c.eng, r, args))
		return
	}
	c.enqueue(r, args)
}

// LRNParams configures LRN.
type LRNParams struct {
	Layout layout.Convention
	Window int // odd
	Alpha  float32
	Beta   float32
	Bias   float32
}

// LRN normalizes each element by the squares of its neighbours across
// channels.
func (c *Computation) LRN(input Value, p LRNParams, name string) Value {
	const op = "lrn"
	s := c.slot(op, input)
	if p.Window <= 0 || p.Window%2 == 0 {
		panic(fmt.Sprintf("%s: window %d must be odd", op, p.Window))
	}
	dims := s.shape
	if p.Layout == layout.ChannelsLast {
		var err error
		dims, err = layout.ChannelLastToChannelFirst(s.shape)
		check(op, err)
	}
	var desc dnnl.MemoryDesc
	if dims.Rank() == 4 {
		desc = layoutDesc(dims, dnnlType(s.elem), p.Layout)
	} else {
		desc = s.denseDesc()
	}
	prim, err := dnnl.NewLRN(dnnl.LRNDesc{
		Src:   desc,
		Dst:   desc,
		Size:  p.Window,
		Alpha: p.Alpha,
		Beta:  p.Beta,
		K:     p.Bias,
	})
	check(op, err)
	out, mem := c.result(s.shape, s.elem, name)
	c.enqueue(prim, dnnl.Args{dnnl.ArgSrc: s.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}

// Softmax normalizes exp(x) along axis. A negative axis selects the last
// one.
func (c *Computation) Softmax(input Value, axis int, name string) Value {
	const op = "softmax"
	s := c.slot(op, input)
	if axis < 0 {
		axis = s.shape.Rank() - 1
	}
	desc := s.denseDesc()
	prim, err := dnnl.NewSoftmax(desc, desc, axis)
	check(op, err)
	out, mem := c.result(s.shape, s.elem, name)
	c.enqueue(prim, dnnl.Args{dnnl.ArgSrc: s.mem, dnnl.ArgDst: mem})
	c.interpretIfNeeded()
	return out
}
