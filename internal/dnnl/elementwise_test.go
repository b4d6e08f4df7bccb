package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryAdd(t *testing.T) {
	d := MustDesc([]int{2, 2}, F32, FormatAB)
	a := f32Memory(t, d, []float32{1, 2, 3, 4})
	b := f32Memory(t, d, []float32{10, 20, 30, 40})
	out := MustMemory(d, testEngine)

	p, err := NewBinary(BinaryAdd, d, d, d)
	require.NoError(t, err)
	run(t, p, Args{ArgSrc0: a, ArgSrc1: b, ArgDst: out})

	assert.Equal(t, []float32{11, 22, 33, 44}, f32Values(out))
}

func TestBinaryBroadcastUnitDims(t *testing.T) {
	lhs := MustDesc([]int{2, 3}, F32, FormatAB)
	rhs := MustDesc([]int{1, 3}, F32, FormatAB)
	a := f32Memory(t, lhs, []float32{1, 2, 3, 4, 5, 6})
	b := f32Memory(t, rhs, []float32{10, 20, 30})
	out := MustMemory(lhs, testEngine)

	p, err := NewBinary(BinaryMul, lhs, rhs, lhs)
	require.NoError(t, err)
	run(t, p, Args{ArgSrc0: a, ArgSrc1: b, ArgDst: out})

	assert.Equal(t, []float32{10, 40, 90, 40, 100, 180}, f32Values(out))
}

func TestBinaryZeroStrideBroadcast(t *testing.T) {
	lhs := MustDesc([]int{2, 3}, F32, FormatAB)
	// A (2) vector broadcast down the columns.
	rhs := MustStridedDesc([]int{2, 3}, F32, []int{1, 0})
	a := f32Memory(t, lhs, []float32{1, 2, 3, 4, 5, 6})
	b := f32Memory(t, rhs, []float32{100, 200})
	out := MustMemory(lhs, testEngine)

	p, err := NewBinary(BinaryAdd, lhs, rhs, lhs)
	require.NoError(t, err)
	run(t, p, Args{ArgSrc0: a, ArgSrc1: b, ArgDst: out})

	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, f32Values(out))
}

func TestBinaryRejectsIncompatible(t *testing.T) {
	d := MustDesc([]int{4, 3}, F32, FormatAB)
	_, err := NewBinary(BinaryAdd, d, MustDesc([]int{4, 2}, F32, FormatAB), d)
	assert.Error(t, err)
	_, err = NewBinary(BinaryAdd, d, MustDesc([]int{3}, F32, FormatA), d)
	assert.Error(t, err)
	_, err = NewBinary(EltwiseRelu, d, d, d)
	assert.Error(t, err)
}

func TestEltwise(t *testing.T) {
	d := MustDesc([]int{4}, F32, FormatA)
	in := []float32{-2, -0.5, 0, 3}

	tests := []struct {
		name        string
		algo        Algorithm
		alpha, beta float32
		want        []float32
	}{
		{"relu", EltwiseRelu, 0, 0, []float32{0, 0, 0, 3}},
		{"leaky relu", EltwiseRelu, 0.5, 0, []float32{-1, -0.25, 0, 3}},
		{"clip", EltwiseClip, -1, 1, []float32{-1, -0.5, 0, 1}},
		{"linear", EltwiseLinear, 2, 1, []float32{-3, 0, 1, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewEltwise(tt.algo, d, d, tt.alpha, tt.beta)
			require.NoError(t, err)
			out := MustMemory(d, testEngine)
			run(t, p, Args{ArgSrc: f32Memory(t, d, in), ArgDst: out})
			assert.Equal(t, tt.want, f32Values(out))
		})
	}
}

func TestEltwiseLogistic(t *testing.T) {
	d := MustDesc([]int{3}, F32, FormatA)
	p, err := NewEltwise(EltwiseLogistic, d, d, 0, 0)
	require.NoError(t, err)
	out := MustMemory(d, testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, d, []float32{0, 100, -100}), ArgDst: out})

	got := f32Values(out)
	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, 1.0, got[1], 1e-6)
	assert.InDelta(t, 0.0, got[2], 1e-6)
}

func TestEltwiseClipInvertedBounds(t *testing.T) {
	d := MustDesc([]int{3}, F32, FormatA)
	_, err := NewEltwise(EltwiseClip, d, d, 2, 1)
	assert.Error(t, err)
}

func TestEltwiseInPlace(t *testing.T) {
	d := MustDesc([]int{3}, F32, FormatA)
	m := f32Memory(t, d, []float32{-1, 2, -3})
	p, err := NewEltwise(EltwiseRelu, d, d, 0, 0)
	require.NoError(t, err)
	run(t, p, Args{ArgSrc: m, ArgDst: m})
	assert.Equal(t, []float32{0, 2, 0}, f32Values(m))
}
