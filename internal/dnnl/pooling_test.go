package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolingMax(t *testing.T) {
	src := MustDesc([]int{1, 1, 4, 4}, F32, FormatNCHW)
	dst := MustDesc([]int{1, 1, 2, 2}, F32, FormatNCHW)
	p, err := NewPooling(PoolingDesc{
		Algorithm: PoolingMax,
		Src:       src,
		Dst:       dst,
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{2, 2},
	})
	require.NoError(t, err)

	out := MustMemory(dst, testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, src, iota32(16)), ArgDst: out})

	assert.Equal(t, []float32{5, 7, 13, 15}, f32Values(out))
}

func TestPoolingAvgExcludesPadding(t *testing.T) {
	src := MustDesc([]int{1, 1, 2, 2}, F32, FormatNCHW)
	p, err := NewPooling(PoolingDesc{
		Algorithm: PoolingAvg,
		Src:       src,
		Dst:       MustDesc([]int{1, 1, 3, 3}, F32, FormatAny),
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{1, 1},
		PadL:      [2]int{1, 1},
		PadR:      [2]int{1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, FormatNCHW, p.DstDesc().Format)

	out := MustMemory(p.DstDesc(), testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, src, []float32{1, 2, 3, 4}), ArgDst: out})

	assert.Equal(t, []float32{
		1, 1.5, 2,
		2, 2.5, 3,
		3, 3.5, 4,
	}, f32Values(out))
}

func TestPoolingChannelLast(t *testing.T) {
	src := MustDesc([]int{1, 2, 2, 2}, F32, FormatNHWC)
	dst := MustDesc([]int{1, 2, 1, 1}, F32, FormatNHWC)
	p, err := NewPooling(PoolingDesc{
		Algorithm: PoolingAvg,
		Src:       src,
		Dst:       dst,
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{2, 2},
	})
	require.NoError(t, err)

	// Channel 0 holds 1..4 and channel 1 holds 10..40, interleaved.
	out := MustMemory(dst, testEngine)
	run(t, p, Args{ArgSrc: f32Memory(t, src, []float32{1, 10, 2, 20, 3, 30, 4, 40}), ArgDst: out})

	assert.Equal(t, []float32{2.5, 25}, f32Values(out))
}

func TestPoolingRejectsWrongOutput(t *testing.T) {
	_, err := NewPooling(PoolingDesc{
		Algorithm: PoolingMax,
		Src:       MustDesc([]int{1, 1, 4, 4}, F32, FormatNCHW),
		Dst:       MustDesc([]int{1, 1, 3, 3}, F32, FormatNCHW),
		Kernel:    [2]int{2, 2},
		Strides:   [2]int{2, 2},
	})
	assert.Error(t, err)
}
