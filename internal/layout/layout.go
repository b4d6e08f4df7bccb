// Package layout translates logical tensor shapes and the layout conventions
// front ends use into the descriptors the primitive library understands.
//
// Every function here is pure: it derives shapes, strides or format tags and
// never touches a buffer.
package layout

import (
	"fmt"
	"strings"

	"github.com/born-ml/odla/internal/dnnl"
	"github.com/born-ml/odla/internal/tensor"
)

// Convention names how the logical axes of a tensor map to memory.
type Convention int

// Layout conventions. Activations are ChannelsFirst (N,C,H,W) or
// ChannelsLast (N,H,W,C); weights are SIO (KH,KW,I,O), OIS (O,I,KH,KW) or
// IOS (I,O,KH,KW).
const (
	ChannelsFirst Convention = iota
	ChannelsLast
	SIO
	OIS
	IOS
)

func (c Convention) String() string {
	switch c {
	case ChannelsFirst:
		return "channels_first"
	case ChannelsLast:
		return "channels_last"
	case SIO:
		return "sio"
	case OIS:
		return "ois"
	case IOS:
		return "ios"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// IsWeight reports whether c is one of the weight conventions.
func (c Convention) IsWeight() bool {
	return c == SIO || c == OIS || c == IOS
}

// ParseConvention accepts the convention names and the common tensor layout
// spellings (NCHW, NHWC, HWIO, OIHW, IOHW).
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(s) {
	case "channels_first", "nchw", "":
		return ChannelsFirst, nil
	case "channels_last", "nhwc":
		return ChannelsLast, nil
	case "sio", "hwio":
		return SIO, nil
	case "ois", "oihw":
		return OIS, nil
	case "ios", "iohw":
		return IOS, nil
	default:
		return ChannelsFirst, fmt.Errorf("unknown layout convention %q", s)
	}
}

// FormatTagForRank returns the dense row-major tag for the rank of shape.
// Scalars and tensors above rank 6 have no tag and must use RowMajorStrides.
func FormatTagForRank(shape tensor.Shape) (dnnl.FormatTag, error) {
	tag := dnnl.PlainTag(shape.Rank())
	if tag == dnnl.FormatUndef {
		return dnnl.FormatUndef, fmt.Errorf("no format tag for rank %d", shape.Rank())
	}
	return tag, nil
}

// FormatTagForLayout maps a convention to its format tag. A group count
// above one selects the 5-D grouped weight tag and is only valid for weight
// conventions.
func FormatTagForLayout(c Convention, group int) (dnnl.FormatTag, error) {
	if group > 1 {
		switch c {
		case SIO:
			return dnnl.FormatHWIGO, nil
		case OIS:
			return dnnl.FormatGOIHW, nil
		case IOS:
			return dnnl.FormatGIOHW, nil
		default:
			return dnnl.FormatUndef, fmt.Errorf("grouped layout requires a weight convention, got %s", c)
		}
	}
	switch c {
	case ChannelsFirst:
		return dnnl.FormatNCHW, nil
	case ChannelsLast:
		return dnnl.FormatNHWC, nil
	case SIO:
		return dnnl.FormatHWIO, nil
	case OIS:
		return dnnl.FormatOIHW, nil
	case IOS:
		return dnnl.FormatIOHW, nil
	default:
		return dnnl.FormatUndef, fmt.Errorf("unknown layout convention %s", c)
	}
}

// RowMajorStrides returns dense row-major element strides for shape: the
// last axis has stride 1 and every other axis the stride of the next one
// times its extent.
func RowMajorStrides(shape tensor.Shape) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// BroadcastStrides returns the row-major strides of rhs left-padded with
// zeros up to the rank of lhs, so the missing leading axes repeat rhs.
func BroadcastStrides(lhs, rhs tensor.Shape) ([]int, error) {
	if rhs.Rank() > lhs.Rank() {
		return nil, fmt.Errorf("cannot broadcast rank %d into rank %d", rhs.Rank(), lhs.Rank())
	}
	pad := lhs.Rank() - rhs.Rank()
	return append(make([]int, pad), RowMajorStrides(rhs)...), nil
}

// BroadcastShape left-pads rhs with unit extents up to rank.
func BroadcastShape(rhs tensor.Shape, rank int) tensor.Shape {
	if rhs.Rank() >= rank {
		return rhs.Clone()
	}
	out := make(tensor.Shape, rank)
	pad := rank - rhs.Rank()
	for i := range out {
		if i < pad {
			out[i] = 1
		} else {
			out[i] = rhs[i-pad]
		}
	}
	return out
}

// Permute returns shape with its axes reordered so that axis i of the result
// is axis perm[i] of shape.
func Permute(shape tensor.Shape, perm []int) (tensor.Shape, error) {
	if len(perm) != shape.Rank() {
		return nil, fmt.Errorf("permutation %v does not match rank %d", perm, shape.Rank())
	}
	seen := make([]bool, len(perm))
	out := make(tensor.Shape, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
		out[i] = shape[p]
	}
	return out, nil
}

// PermutedStrides returns the strides of a dense shape viewed through perm,
// so that reading the view in row-major order yields the transposed tensor.
func PermutedStrides(shape tensor.Shape, perm []int) ([]int, error) {
	if _, err := Permute(shape, perm); err != nil {
		return nil, err
	}
	strides := RowMajorStrides(shape)
	out := make([]int, len(perm))
	for i, p := range perm {
		out[i] = strides[p]
	}
	return out, nil
}

// ChannelLastToChannelFirst maps (N,H,W,C) extents to (N,C,H,W).
func ChannelLastToChannelFirst(shape tensor.Shape) (tensor.Shape, error) {
	if shape.Rank() != 4 {
		return nil, fmt.Errorf("channel-last shape must be 4D, got %v", shape)
	}
	return tensor.Shape{shape[0], shape[3], shape[1], shape[2]}, nil
}

// ChannelFirstToChannelLast maps (N,C,H,W) extents to (N,H,W,C).
func ChannelFirstToChannelLast(shape tensor.Shape) (tensor.Shape, error) {
	if shape.Rank() != 4 {
		return nil, fmt.Errorf("channel-first shape must be 4D, got %v", shape)
	}
	return tensor.Shape{shape[0], shape[2], shape[3], shape[1]}, nil
}

// WeightSIOToOIS maps (KH,KW,I,O) weight extents to (O,I,KH,KW).
func WeightSIOToOIS(shape tensor.Shape) (tensor.Shape, error) {
	if shape.Rank() != 4 {
		return nil, fmt.Errorf("SIO weight shape must be 4D, got %v", shape)
	}
	return tensor.Shape{shape[3], shape[2], shape[0], shape[1]}, nil
}

// OutputInputSwapForWeight swaps the two leading axes of a weight shape.
func OutputInputSwapForWeight(shape tensor.Shape) (tensor.Shape, error) {
	if shape.Rank() < 2 {
		return nil, fmt.Errorf("weight shape must have at least 2 axes, got %v", shape)
	}
	out := shape.Clone()
	out[0], out[1] = out[1], out[0]
	return out, nil
}

// SwapGroupedDepthwise swaps O and I of an (O,I,KH,KW) shape when O*group
// equals I, which is how SIO stores depthwise weights.
func SwapGroupedDepthwise(oihw tensor.Shape, group int) tensor.Shape {
	out := oihw.Clone()
	if group > 1 && len(out) >= 2 && out[0]*group == out[1] {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// ReorderAxesForGroupedWeight splits the output channels of an
// (O,I,KH,KW) shape into (G, O/G, I, KH, KW).
func ReorderAxesForGroupedWeight(oihw tensor.Shape, group int) (tensor.Shape, error) {
	if oihw.Rank() != 4 {
		return nil, fmt.Errorf("grouped weight shape must be 4D, got %v", oihw)
	}
	if group <= 0 || oihw[0]%group != 0 {
		return nil, fmt.Errorf("output channels %d not divisible by group %d", oihw[0], group)
	}
	return tensor.Shape{group, oihw[0] / group, oihw[1], oihw[2], oihw[3]}, nil
}

// ContiguousAxes reports whether axes form a strictly increasing run with no
// gaps.
func ContiguousAxes(axes []int) bool {
	for i := 1; i < len(axes); i++ {
		if axes[i] != axes[i-1]+1 {
			return false
		}
	}
	return true
}

// ReduceAsPoolShape folds shape into (batch, channels, 1, reduced) where batch
// is the product of the axes before the reduced run, channels the product of
// the axes after it and reduced the product of the run itself. In row-major
// memory that is the NHWC layout of the synthetic shape.
func ReduceAsPoolShape(shape tensor.Shape, axes []int) (tensor.Shape, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("no reduction axes")
	}
	if !ContiguousAxes(axes) {
		return nil, fmt.Errorf("reduction axes %v are not contiguous", axes)
	}
	first, last := axes[0], axes[len(axes)-1]
	if first < 0 || last >= shape.Rank() {
		return nil, fmt.Errorf("reduction axes %v out of range for rank %d", axes, shape.Rank())
	}
	batch, channels, reduced := 1, 1, 1
	for i, d := range shape {
		switch {
		case i < first:
			batch *= d
		case i > last:
			channels *= d
		default:
			reduced *= d
		}
	}
	return tensor.Shape{batch, channels, 1, reduced}, nil
}
