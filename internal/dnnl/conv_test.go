package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convDesc(algo Algorithm, src, weights, dst []int, tag FormatTag, stride, pad int) ConvolutionDesc {
	return ConvolutionDesc{
		Algorithm: algo,
		Src:       MustDesc(src, F32, tag),
		Weights:   MustDesc(weights, F32, FormatAny),
		Dst:       MustDesc(dst, F32, tag),
		Strides:   [2]int{stride, stride},
		PadL:      [2]int{pad, pad},
		PadR:      [2]int{pad, pad},
	}
}

func TestConvolutionBasic(t *testing.T) {
	// 1 2 3
	// 4 5 6     x   1 0   =   6  8
	// 7 8 9         0 1      12 14
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(ConvolutionDirect, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, FormatNCHW, 1, 0), testEngine)
	require.NoError(t, err)
	assert.Equal(t, FormatOIHW, pd.WeightsDesc().Format)

	src := f32Memory(t, pd.SrcDesc(), []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	w := f32Memory(t, pd.WeightsDesc(), []float32{1, 0, 0, 1})
	dst := MustMemory(pd.DstDesc(), testEngine)

	run(t, NewConvolution(pd), Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	assert.Equal(t, []float32{6, 8, 12, 14}, f32Values(dst))
}

func TestConvolutionPadding(t *testing.T) {
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(ConvolutionDirect, []int{1, 1, 2, 2}, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, FormatNCHW, 1, 1), testEngine)
	require.NoError(t, err)

	ones := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	src := f32Memory(t, pd.SrcDesc(), []float32{1, 2, 3, 4})
	w := f32Memory(t, pd.WeightsDesc(), ones)
	dst := MustMemory(pd.DstDesc(), testEngine)

	run(t, NewConvolution(pd), Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	// Every 3x3 window centred on a 2x2 image covers all four pixels.
	assert.Equal(t, []float32{10, 10, 10, 10}, f32Values(dst))
}

func TestConvolutionChannelLast(t *testing.T) {
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(ConvolutionDirect, []int{1, 2, 1, 2}, []int{1, 2, 1, 1}, []int{1, 1, 1, 2}, FormatNHWC, 1, 0), testEngine)
	require.NoError(t, err)

	// NHWC: pixel 0 = (1, 10), pixel 1 = (2, 20).
	src := f32Memory(t, pd.SrcDesc(), []float32{1, 10, 2, 20})
	w := f32Memory(t, pd.WeightsDesc(), []float32{1, 2})
	dst := MustMemory(pd.DstDesc(), testEngine)

	run(t, NewConvolution(pd), Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	assert.Equal(t, []float32{21, 42}, f32Values(dst))
}

func TestConvolutionGrouped(t *testing.T) {
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(ConvolutionDirect, []int{1, 2, 2, 2}, []int{2, 1, 1, 1, 1}, []int{1, 2, 2, 2}, FormatNCHW, 1, 0), testEngine)
	require.NoError(t, err)
	assert.Equal(t, 2, pd.Groups())
	assert.Equal(t, FormatGOIHW, pd.WeightsDesc().Format)

	src := f32Memory(t, pd.SrcDesc(), []float32{1, 1, 1, 1, 2, 2, 2, 2})
	w := f32Memory(t, pd.WeightsDesc(), []float32{3, 5})
	dst := MustMemory(pd.DstDesc(), testEngine)

	run(t, NewConvolution(pd), Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	assert.Equal(t, []float32{3, 3, 3, 3, 10, 10, 10, 10}, f32Values(dst))
}

func TestConvolutionResolvesAny(t *testing.T) {
	d := ConvolutionDesc{
		Algorithm: ConvolutionDirect,
		Src:       MustDesc([]int{1, 3, 4, 4}, BF16, FormatAny),
		Weights:   MustDesc([]int{2, 3, 3, 3}, BF16, FormatAny),
		Dst:       MustDesc([]int{1, 2, 2, 2}, BF16, FormatAny),
		Strides:   [2]int{1, 1},
	}
	pd, err := NewConvolutionPrimitiveDesc(d, testEngine)
	require.NoError(t, err)
	assert.Equal(t, FormatNCHW, pd.SrcDesc().Format)
	assert.Equal(t, BF16, pd.SrcDesc().Type)
	assert.Equal(t, FormatOIHW, pd.WeightsDesc().Format)
	assert.Equal(t, FormatNCHW, pd.DstDesc().Format)
}

func TestConvolutionRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name string
		desc ConvolutionDesc
	}{
		{"wrong output size", convDesc(ConvolutionDirect, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, []int{1, 1, 3, 3}, FormatNCHW, 1, 0)},
		{"channel mismatch", convDesc(ConvolutionDirect, []int{1, 2, 3, 3}, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, FormatNCHW, 1, 0)},
		{"zero stride", convDesc(ConvolutionDirect, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, FormatNCHW, 0, 0)},
		{"3d weights", convDesc(ConvolutionDirect, []int{1, 1, 3, 3}, []int{1, 2, 2}, []int{1, 1, 2, 2}, FormatNCHW, 1, 0)},
		{"bad algorithm", convDesc(PoolingMax, []int{1, 1, 3, 3}, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, FormatNCHW, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConvolutionPrimitiveDesc(tt.desc, testEngine)
			assert.Error(t, err)
		})
	}
}

func TestDeconvolution(t *testing.T) {
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(DeconvolutionDirect, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, []int{1, 1, 3, 3}, FormatNCHW, 1, 0), testEngine)
	require.NoError(t, err)

	src := f32Memory(t, pd.SrcDesc(), []float32{1, 2, 3, 4})
	w := f32Memory(t, pd.WeightsDesc(), []float32{1, 1, 1, 1})
	dst := MustMemory(pd.DstDesc(), testEngine)

	p := NewConvolution(pd)
	assert.Equal(t, KindDeconvolution, p.Kind())
	run(t, p, Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	assert.Equal(t, []float32{
		1, 3, 2,
		4, 10, 6,
		3, 7, 4,
	}, f32Values(dst))
}

func TestDeconvolutionStrided(t *testing.T) {
	pd, err := NewConvolutionPrimitiveDesc(
		convDesc(DeconvolutionDirect, []int{1, 1, 2, 2}, []int{1, 1, 2, 2}, []int{1, 1, 4, 4}, FormatNCHW, 2, 0), testEngine)
	require.NoError(t, err)

	src := f32Memory(t, pd.SrcDesc(), []float32{1, 2, 3, 4})
	w := f32Memory(t, pd.WeightsDesc(), []float32{1, 1, 1, 1})
	dst := MustMemory(pd.DstDesc(), testEngine)

	run(t, NewConvolution(pd), Args{ArgSrc: src, ArgWeights: w, ArgDst: dst})

	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, f32Values(dst))
}
