package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchNormScaleShift(t *testing.T) {
	src := MustDesc([]int{1, 2, 1, 2}, F32, FormatNCHW)
	stat := MustDesc([]int{2}, F32, FormatA)
	ss := MustDesc([]int{2, 2}, F32, FormatAB)

	p, err := NewBatchNorm(BatchNormDesc{
		Src: src, Dst: src, Mean: stat, Variance: stat, ScaleShift: ss,
		UseScaleShift: true,
	})
	require.NoError(t, err)

	out := MustMemory(src, testEngine)
	run(t, p, Args{
		ArgSrc:        f32Memory(t, src, []float32{1, 3, 2, 4}),
		ArgMean:       f32Memory(t, stat, []float32{2, 3}),
		ArgVariance:   f32Memory(t, stat, []float32{1, 4}),
		ArgScaleShift: f32Memory(t, ss, []float32{2, 1, 0.5, 1}),
		ArgDst:        out,
	})

	assert.Equal(t, []float32{-1.5, 2.5, 0.5, 1.5}, f32Values(out))
}

func TestBatchNormWithoutScaleShift(t *testing.T) {
	src := MustDesc([]int{2, 1}, F32, FormatAB)
	stat := MustDesc([]int{1}, F32, FormatA)
	p, err := NewBatchNorm(BatchNormDesc{Src: src, Dst: src, Mean: stat, Variance: stat, Epsilon: 0})
	require.NoError(t, err)

	out := MustMemory(src, testEngine)
	run(t, p, Args{
		ArgSrc:      f32Memory(t, src, []float32{5, 9}),
		ArgMean:     f32Memory(t, stat, []float32{1}),
		ArgVariance: f32Memory(t, stat, []float32{4}),
		ArgDst:      out,
	})

	assert.Equal(t, []float32{2, 4}, f32Values(out))
}

func TestBatchNormRejectsBadStatistics(t *testing.T) {
	src := MustDesc([]int{1, 3, 2, 2}, F32, FormatNCHW)
	stat := MustDesc([]int{2}, F32, FormatA)
	_, err := NewBatchNorm(BatchNormDesc{Src: src, Dst: src, Mean: stat, Variance: stat})
	assert.Error(t, err)
}

func TestLRN(t *testing.T) {
	src := MustDesc([]int{1, 3, 1, 1}, F32, FormatNCHW)
	p, err := NewLRN(LRNDesc{Src: src, Dst: src, Size: 3, Alpha: 3, Beta: 1, K: 0})
	require.NoError(t, err)

	out := MustMemory(src, testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, src, []float32{1, 1, 1}), ArgDst: out})

	got := f32Values(out)
	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, 1.0/3, got[1], 1e-6)
	assert.InDelta(t, 0.5, got[2], 1e-6)
}

func TestLRNSingleChannelWindow(t *testing.T) {
	src := MustDesc([]int{1, 2, 1, 1}, F32, FormatNCHW)
	p, err := NewLRN(LRNDesc{Src: src, Dst: src, Size: 1, Alpha: 1, Beta: 1, K: 1})
	require.NoError(t, err)

	out := MustMemory(src, testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, src, []float32{1, 2}), ArgDst: out})

	got := f32Values(out)
	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, 0.4, got[1], 1e-6)
}

func TestLRNRejectsEvenWindow(t *testing.T) {
	src := MustDesc([]int{1, 4, 1, 1}, F32, FormatNCHW)
	_, err := NewLRN(LRNDesc{Src: src, Dst: src, Size: 2, Alpha: 1, Beta: 1, K: 1})
	assert.Error(t, err)
}
