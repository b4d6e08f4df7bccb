package graph

import (
	"fmt"

	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/odla"
	"github.com/born-ml/odla/internal/tensor"
)

func (r *Registry) registerNNOps() {
	r.Register("Conv", handleConv)
	r.Register("ConvTranspose", handleConvTranspose)
	r.Register("MaxPool", handleMaxPool)
	r.Register("AveragePool", handleAveragePool)
	r.Register("GlobalAveragePool", handleGlobalAveragePool)
	r.Register("GlobalMaxPool", handleGlobalMaxPool)
	r.Register("ReduceMean", handleReduceMean)
	r.Register("BatchNormalization", handleBatchNormalization)
	r.Register("LRN", handleLRN)
}

// attr2 reads a two-element integer attribute, defaulting both entries.
func attr2(node *Node, name string, def int) ([2]int, error) {
	vals := GetAttrInts(node, name)
	if vals == nil {
		return [2]int{def, def}, nil
	}
	if len(vals) != 2 {
		return [2]int{}, fmt.Errorf("%s: %s must have 2 entries, got %v", node.OpType, name, vals)
	}
	return [2]int{int(vals[0]), int(vals[1])}, nil
}

// pads2D resolves the front and back padding of a windowed operator from
// auto_pad or pads.
func pads2D(node *Node, in, kernel, strides [2]int, transposed bool) (front, back [2]int, err error) {
	switch mode := GetAttrString(node, "auto_pad", "NOTSET"); mode {
	case "NOTSET", "":
		pads := GetAttrInts(node, "pads")
		switch len(pads) {
		case 0:
		case 4:
			front = [2]int{int(pads[0]), int(pads[1])}
			back = [2]int{int(pads[2]), int(pads[3])}
		default:
			return front, back, fmt.Errorf("%s: pads must have 4 entries, got %v", node.OpType, pads)
		}
	case "VALID":
	case "SAME_UPPER", "SAME_LOWER":
		for i := 0; i < 2; i++ {
			var total int
			if transposed {
				total = max(strides[i]*(in[i]-1)+kernel[i]-in[i]*strides[i], 0)
			} else {
				out := (in[i] + strides[i] - 1) / strides[i]
				total = max((out-1)*strides[i]+kernel[i]-in[i], 0)
			}
			small, large := total/2, total-total/2
			if (mode == "SAME_UPPER") != transposed {
				front[i], back[i] = small, large
			} else {
				front[i], back[i] = large, small
			}
		}
	default:
		return front, back, fmt.Errorf("%s: unknown auto_pad %q", node.OpType, mode)
	}
	return front, back, nil
}

// windowOutput returns the spatial output size of a windowed operator.
func windowOutput(node *Node, in, kernel, strides, front, back [2]int, transposed bool) ([2]int, error) {
	var out [2]int
	for i := 0; i < 2; i++ {
		if strides[i] <= 0 {
			return out, fmt.Errorf("%s: invalid strides %v", node.OpType, strides)
		}
		if transposed {
			out[i] = (in[i]-1)*strides[i] - front[i] - back[i] + kernel[i]
		} else {
			out[i] = (in[i]+front[i]+back[i]-kernel[i])/strides[i] + 1
		}
		if out[i] <= 0 {
			return out, fmt.Errorf("%s: window %v does not fit input %v", node.OpType, kernel, in)
		}
	}
	return out, nil
}

// kernelLayout returns the weight layout of a convolution. OIS graphs
// store transposed convolution weights as IOS, as ONNX does.
func (ctx *Context) kernelLayout(transposed bool) layout.Convention {
	if transposed && ctx.KernelLayout == layout.OIS {
		return layout.IOS
	}
	return ctx.KernelLayout
}

// kernelGeometry returns the spatial size and output channels of a 4D
// weight stored in conv.
func kernelGeometry(w tensor.Shape, conv layout.Convention, group int, transposed bool) (kernel [2]int, oc int, err error) {
	if w.Rank() != 4 {
		return kernel, 0, fmt.Errorf("kernel must be 4D, got %v", w)
	}
	switch conv {
	case layout.OIS:
		return [2]int{w[2], w[3]}, w[0], nil
	case layout.IOS:
		oc = w[1]
		if transposed {
			oc *= group
		}
		return [2]int{w[2], w[3]}, oc, nil
	case layout.SIO:
		oc = w[3]
		if !transposed && group > 1 && w[3]*group == w[2] {
			oc = w[2]
		}
		return [2]int{w[0], w[1]}, oc, nil
	default:
		return kernel, 0, fmt.Errorf("kernel layout %s is not a weight layout", conv)
	}
}

func handleConv(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	return convolution(ctx, node, inputs, false)
}

func handleConvTranspose(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	return convolution(ctx, node, inputs, true)
}

func convolution(ctx *Context, node *Node, inputs []*Operand, transposed bool) ([]*Operand, error) {
	if len(inputs) < 2 || len(inputs) > 3 {
		return nil, fmt.Errorf("%s requires 2 or 3 inputs, got %d", node.OpType, len(inputs))
	}
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	w, err := required(node, inputs, 1)
	if err != nil {
		return nil, err
	}
	n, _, h, wd, err := ctx.activation(x.Type.Shape)
	if err != nil {
		return nil, err
	}

	group := int(GetAttrInt(node, "group", 1))
	kernelLayout := ctx.kernelLayout(transposed)
	kernel, oc, err := kernelGeometry(w.Type.Shape, kernelLayout, group, transposed)
	if err != nil {
		return nil, err
	}
	if ks := GetAttrInts(node, "kernel_shape"); ks != nil && (len(ks) != 2 || int(ks[0]) != kernel[0] || int(ks[1]) != kernel[1]) {
		return nil, fmt.Errorf("%s: kernel_shape %v does not match weight %v", node.OpType, ks, w.Type.Shape)
	}
	strides, err := attr2(node, "strides", 1)
	if err != nil {
		return nil, err
	}
	dilations, err := attr2(node, "dilations", 1)
	if err != nil {
		return nil, err
	}
	if transposed {
		if pad, err := attr2(node, "output_padding", 0); err != nil || pad != [2]int{} {
			return nil, fmt.Errorf("%s: output_padding is not supported", node.OpType)
		}
		if HasAttr(node, "output_shape") {
			return nil, fmt.Errorf("%s: output_shape is not supported", node.OpType)
		}
	}

	in := [2]int{h, wd}
	front, back, err := pads2D(node, in, kernel, strides, transposed)
	if err != nil {
		return nil, err
	}
	spatial, err := windowOutput(node, in, kernel, strides, front, back, transposed)
	if err != nil {
		return nil, err
	}

	p := odla.ConvParams{
		InputLayout:  ctx.Layout,
		KernelLayout: kernelLayout,
		Group:        group,
		Strides:      strides,
		Dilations:    dilations,
		PadFront:     front,
		PadBack:      back,
	}
	outShape := ctx.activationShape(n, oc, spatial[0], spatial[1])
	bias := valueOf(optional(inputs, 2))
	if transposed {
		return ctx.single(ctx.Comp.DeConv(x.Value, w.Value, p, bias, outShape, node.Outputs[0]))
	}
	return ctx.single(ctx.Comp.Conv(x.Value, w.Value, p, bias, outShape, node.Outputs[0]))
}

// poolParams resolves the window, strides and padding of a pooling node
// and the resulting output shape.
func poolParams(ctx *Context, node *Node, x *Operand) (odla.PoolParams, tensor.Shape, error) {
	n, c, h, w, err := ctx.activation(x.Type.Shape)
	if err != nil {
		return odla.PoolParams{}, nil, err
	}
	if GetAttrInt(node, "ceil_mode", 0) != 0 {
		return odla.PoolParams{}, nil, fmt.Errorf("%s: ceil_mode is not supported", node.OpType)
	}
	if d, err := attr2(node, "dilations", 1); err != nil || d != [2]int{1, 1} {
		return odla.PoolParams{}, nil, fmt.Errorf("%s: dilations are not supported", node.OpType)
	}
	ks := GetAttrInts(node, "kernel_shape")
	if len(ks) != 2 {
		return odla.PoolParams{}, nil, fmt.Errorf("%s: kernel_shape must have 2 entries, got %v", node.OpType, ks)
	}
	window := [2]int{int(ks[0]), int(ks[1])}
	strides, err := attr2(node, "strides", 1)
	if err != nil {
		return odla.PoolParams{}, nil, err
	}
	in := [2]int{h, w}
	front, back, err := pads2D(node, in, window, strides, false)
	if err != nil {
		return odla.PoolParams{}, nil, err
	}
	spatial, err := windowOutput(node, in, window, strides, front, back, false)
	if err != nil {
		return odla.PoolParams{}, nil, err
	}
	p := odla.PoolParams{Layout: ctx.Layout, Window: window, Strides: strides, PadFront: front, PadBack: back}
	return p, ctx.activationShape(n, c, spatial[0], spatial[1]), nil
}

func handleMaxPool(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	if len(node.Outputs) > 1 && node.Outputs[1] != "" {
		return nil, fmt.Errorf("%s: the indices output is not supported", node.OpType)
	}
	p, outShape, err := poolParams(ctx, node, x)
	if err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.MaxPool(x.Value, p, outShape, node.Outputs[0]))
}

func handleAveragePool(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	p, outShape, err := poolParams(ctx, node, x)
	if err != nil {
		return nil, err
	}
	if GetAttrInt(node, "count_include_pad", 0) != 0 && (p.PadFront != [2]int{} || p.PadBack != [2]int{}) {
		return nil, fmt.Errorf("%s: count_include_pad with padding is not supported", node.OpType)
	}
	return ctx.single(ctx.Comp.AveragePool(x.Value, p, outShape, node.Outputs[0]))
}

// spatialAxes returns the H and W axes of a 4D activation.
func (ctx *Context) spatialAxes() []int {
	if ctx.Layout == layout.ChannelsLast {
		return []int{1, 2}
	}
	return []int{2, 3}
}

func handleGlobalAveragePool(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	if _, _, _, _, err := ctx.activation(x.Type.Shape); err != nil {
		return nil, err
	}
	return ctx.single(ctx.Comp.ReduceMean(x.Value, ctx.spatialAxes(), true, nil, node.Outputs[0]))
}

func handleGlobalMaxPool(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	n, c, h, w, err := ctx.activation(x.Type.Shape)
	if err != nil {
		return nil, err
	}
	p := odla.PoolParams{Layout: ctx.Layout, Window: [2]int{h, w}, Strides: [2]int{h, w}}
	return ctx.single(ctx.Comp.MaxPool(x.Value, p, ctx.activationShape(n, c, 1, 1), node.Outputs[0]))
}

// handleReduceMean reads axes from the attribute (opset < 18) or from a
// constant second input. No axes means all of them.
func handleReduceMean(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	axes := GetAttrInts(node, "axes")
	if op := optional(inputs, 1); op != nil {
		if axes, err = constInts(node, op); err != nil {
			return nil, err
		}
	}
	rank := x.Type.Shape.Rank()
	if len(axes) == 0 {
		if GetAttrInt(node, "noop_with_empty_axes", 0) != 0 {
			return nil, fmt.Errorf("%s: noop_with_empty_axes is not supported", node.OpType)
		}
		for i := 0; i < rank; i++ {
			axes = append(axes, int64(i))
		}
	}
	for _, a := range axes {
		if a < -int64(rank) || a >= int64(rank) {
			return nil, fmt.Errorf("%s: axis %d out of range for %v", node.OpType, a, x.Type.Shape)
		}
	}
	keepDims := GetAttrInt(node, "keepdims", 1) != 0
	return ctx.single(ctx.Comp.ReduceMean(x.Value, toInts(axes), keepDims, nil, node.Outputs[0]))
}

// handleBatchNormalization lowers inference-mode batch normalization with
// inputs X, scale, B, mean and var.
func handleBatchNormalization(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	if len(inputs) != 5 {
		return nil, fmt.Errorf("batchnormalization requires 5 inputs, got %d", len(inputs))
	}
	x, err := required(node, inputs, 0)
	if err != nil {
		return nil, err
	}
	mean, err := required(node, inputs, 3)
	if err != nil {
		return nil, err
	}
	variance, err := required(node, inputs, 4)
	if err != nil {
		return nil, err
	}
	if GetAttrInt(node, "training_mode", 0) != 0 {
		return nil, fmt.Errorf("%s: training_mode is not supported", node.OpType)
	}
	p := odla.BatchNormParams{
		Layout:       ctx.Layout,
		Epsilon:      GetAttrFloat(node, "epsilon", 1e-5),
		ScalarScale:  1,
		ScalarOffset: 0,
	}
	out := ctx.Comp.BatchNormalization(x.Value, p, mean.Value, variance.Value,
		valueOf(inputs[1]), valueOf(inputs[2]), node.Outputs[0])
	return ctx.single(out)
}

func handleLRN(ctx *Context, node *Node, inputs []*Operand) ([]*Operand, error) {
	x, err := unary(node, inputs)
	if err != nil {
		return nil, err
	}
	size := GetAttrInt(node, "size", 0)
	if size <= 0 {
		return nil, fmt.Errorf("%s: size attribute is required", node.OpType)
	}
	p := odla.LRNParams{
		Layout: ctx.Layout,
		Window: int(size),
		Alpha:  GetAttrFloat(node, "alpha", 1e-4),
		Beta:   GetAttrFloat(node, "beta", 0.75),
		Bias:   GetAttrFloat(node, "bias", 1),
	}
	return ctx.single(ctx.Comp.LRN(x.Value, p, node.Outputs[0]))
}
