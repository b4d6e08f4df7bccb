package odla

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/odla/internal/layout"
	"github.com/born-ml/odla/internal/tensor"
)

func TestReluAveragePoolEndToEnd(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "input", 1, 3, 4, 4)
	r := c.Relu(x, "relu")
	assert.Equal(t, 1, c.QueueLen())
	y := c.AveragePool(r, PoolParams{
		Layout:  layout.ChannelsFirst,
		Window:  [2]int{2, 2},
		Strides: [2]int{2, 2},
	}, tensor.Shape{1, 3, 2, 2}, "output")
	assert.Equal(t, 2, c.QueueLen())
	require.NoError(t, c.SetValueAsOutput(y))

	// Channel 0 is all negative, channel 1 straddles zero, channel 2 is
	// positive.
	got := execute(t, c, map[Value][]float32{x: iota32(48, -24)}, y, 12)
	assert.Equal(t, []float32{
		0, 0, 0, 0,
		0, 0, 2.5, 4.5,
		10.5, 12.5, 18.5, 20.5,
	}, got)
	assert.Equal(t, 2, c.QueueLen())
}

func TestBroadcastAdd(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 4, 3)
	row := constant(t, c, []float32{100, 200, 300}, 1, 3)
	vec := constant(t, c, []float32{100, 200, 300}, 3)

	sameRank := c.Add(x, row, "same_rank")
	lowerRank := c.Add(x, vec, "lower_rank")
	typ, err := c.GetValueType(sameRank)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3}, typ.Shape)

	want := []float32{
		100, 201, 302,
		103, 204, 305,
		106, 207, 308,
		109, 210, 311,
	}
	in := iota32(12, 0)
	assert.Equal(t, want, execute(t, c, map[Value][]float32{x: in}, sameRank, 12))
	assert.Equal(t, want, execute(t, c, map[Value][]float32{x: in}, lowerRank, 12))

	narrow := argument(t, c, "narrow", 4, 1)
	pair := argument(t, c, "pair", 4, 2)
	assert.Panics(t, func() { c.Add(narrow, x, "") })
	assert.Panics(t, func() { c.Add(x, pair, "") })
}

func TestMulSameCountReusesLayout(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 2, 3)
	w := constant(t, c, []float32{1, 2, 3, 4, 5, 6}, 3, 2)
	y := c.Mul(x, w, "y")

	got := execute(t, c, map[Value][]float32{x: {1, 1, 1, 2, 2, 2}}, y, 6)
	assert.Equal(t, []float32{1, 2, 3, 8, 10, 12}, got)
}

func TestSameCountDifferentRank(t *testing.T) {
	c := newTestComputation(t, Buffered)
	matrix := argument(t, c, "matrix", 2, 3)
	flat := argument(t, c, "flat", 6)
	vec := constant(t, c, []float32{10, 20, 30, 40, 50, 60}, 6)
	grid := constant(t, c, []float32{10, 20, 30, 40, 50, 60}, 2, 3)

	var wide, narrow Value
	require.NotPanics(t, func() { wide = c.Add(matrix, vec, "wide") })
	require.NotPanics(t, func() { narrow = c.Add(flat, grid, "narrow") })
	typ, err := c.GetValueType(narrow)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6}, typ.Shape)

	in := iota32(6, 1)
	want := []float32{11, 22, 33, 44, 55, 66}
	assert.Equal(t, want, execute(t, c, map[Value][]float32{matrix: in}, wide, 6))
	assert.Equal(t, want, execute(t, c, map[Value][]float32{flat: in}, narrow, 6))
}

func TestActivations(t *testing.T) {
	c := newTestComputation(t, Interpreted)
	v, err := c.CreateValue(f32Type(4), "v")
	require.NoError(t, err)
	require.NoError(t, c.SetValueData(v, tensor.AsBytes([]float32{-2, -1, 0, 3})))

	read := func(v Value) []float32 {
		out := make([]float32, 4)
		require.NoError(t, c.GetValueData(v, tensor.AsBytes(out)))
		return out
	}
	assert.Equal(t, []float32{0, 0, 0, 3}, read(c.Relu(v, "")))
	assert.Equal(t, []float32{-0.2, -0.1, 0, 3}, read(c.LeakyRelu(v, 0.1, "")))
	assert.Equal(t, []float32{-1, -1, 0, 1}, read(c.Clamp(v, -1, 1, "")))
	assert.InDelta(t, 0.5, read(c.Sigmoid(v, ""))[2], 1e-6)
	assert.Panics(t, func() { c.Clamp(v, 1, -1, "") })
}

func TestReshapeIsZeroCopy(t *testing.T) {
	c := newTestComputation(t, Buffered)
	v := argument(t, c, "x", 2, 3, 4)
	require.NoError(t, c.SetValueData(v, tensor.AsBytes(iota32(24, 0))))

	twice := c.Reshape(c.Reshape(v, tensor.Shape{6, 4}, ""), tensor.Shape{4, 6}, "")
	once := c.Reshape(v, tensor.Shape{4, 6}, "")
	assert.Zero(t, c.QueueLen())
	assert.Same(t, c.values[v.index].mem, c.values[twice.index].mem)
	assert.Same(t, c.values[v.index].mem, c.values[once.index].mem)

	a, b := make([]float32, 24), make([]float32, 24)
	require.NoError(t, c.GetValueData(twice, tensor.AsBytes(a)))
	require.NoError(t, c.GetValueData(once, tensor.AsBytes(b)))
	assert.Equal(t, a, b)
	assert.Equal(t, iota32(24, 0), a)

	w := constant(t, c, []float32{1, 2}, 2)
	assert.True(t, c.values[c.Reshape(w, tensor.Shape{1, 2}, "").index].isConst)
	assert.Panics(t, func() { c.Reshape(v, tensor.Shape{5, 5}, "") })
}

func TestConvChannelLastRoundTrip(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 2, 3)
	identity := constant(t, c, []float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}, 3, 3, 1, 1)
	y := c.Conv(x, identity, ConvParams{
		InputLayout:  layout.ChannelsLast,
		KernelLayout: layout.OIS,
		Strides:      [2]int{1, 1},
	}, Value{}, tensor.Shape{1, 2, 2, 3}, "y")

	// Reorder to channel-first, convolve, reorder back.
	assert.Equal(t, 3, c.QueueLen())
	typ, err := c.GetValueType(y)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2, 3}, typ.Shape)

	in := iota32(12, 1)
	assert.Equal(t, in, execute(t, c, map[Value][]float32{x: in}, y, 12))
}

func TestGroupedConvShapes(t *testing.T) {
	c := newTestComputation(t, Buffered)

	// SIO (KH, KW, I/G, O) with two groups.
	dims := c.kernelDims("conv", false, tensor.Shape{1, 1, 2, 4}, layout.SIO, 2)
	assert.Equal(t, tensor.Shape{2, 2, 2, 1, 1}, dims)
	// Depthwise SIO (KH, KW, C, 1): O and I swap before grouping.
	dims = c.kernelDims("conv", false, tensor.Shape{3, 3, 4, 1}, layout.SIO, 4)
	assert.Equal(t, tensor.Shape{4, 1, 1, 3, 3}, dims)
	dims = c.kernelDims("deconv", true, tensor.Shape{4, 3, 2, 2}, layout.IOS, 2)
	assert.Equal(t, tensor.Shape{2, 3, 2, 2, 2}, dims)

	assert.Panics(t, func() { c.kernelDims("conv", false, tensor.Shape{1, 1, 2, 3}, layout.SIO, 2) })
	assert.Panics(t, func() { c.kernelDims("deconv", true, tensor.Shape{3, 3, 2, 2}, layout.OIS, 2) })
}

func TestGroupedConvChannelsLast(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 2, 4)
	weights := []float32{
		1, 2, 3, 4, // i = 0
		5, 6, 7, 8, // i = 1
	}
	w := constant(t, c, weights, 1, 1, 2, 4)
	y := c.Conv(x, w, ConvParams{
		InputLayout:  layout.ChannelsLast,
		KernelLayout: layout.SIO,
		Group:        2,
		Strides:      [2]int{1, 1},
	}, Value{}, tensor.Shape{1, 2, 2, 4}, "y")
	typ, err := c.GetValueType(y)
	require.NoError(t, err)
	assert.Equal(t, 4, typ.Shape[3])

	in := iota32(16, 0)
	want := make([]float32, 16)
	for p := 0; p < 4; p++ {
		for o := 0; o < 4; o++ {
			g := o / 2
			for i := 0; i < 2; i++ {
				want[p*4+o] += in[p*4+2*g+i] * weights[i*4+o]
			}
		}
	}
	assert.Equal(t, want, execute(t, c, map[Value][]float32{x: in}, y, 16))
}

func TestDepthwiseConv(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 1, 1, 3)
	w := constant(t, c, []float32{2, 3, 4}, 1, 1, 3, 1)
	y := c.Conv(x, w, ConvParams{
		InputLayout:  layout.ChannelsLast,
		KernelLayout: layout.SIO,
		Group:        3,
		Strides:      [2]int{1, 1},
	}, Value{}, tensor.Shape{1, 1, 1, 3}, "y")

	assert.Equal(t, []float32{2, 6, 12}, execute(t, c, map[Value][]float32{x: {1, 2, 3}}, y, 3))
}

func TestConvBias(t *testing.T) {
	for _, conv := range []layout.Convention{layout.ChannelsFirst, layout.ChannelsLast} {
		t.Run(conv.String(), func(t *testing.T) {
			c := newTestComputation(t, Buffered)
			shape := tensor.Shape{1, 2, 1, 1}
			if conv == layout.ChannelsLast {
				shape = tensor.Shape{1, 1, 1, 2}
			}
			x := argument(t, c, "x", shape...)
			w := constant(t, c, []float32{1, 0, 0, 1}, 2, 2, 1, 1)
			b := constant(t, c, []float32{10, 20}, 2)
			y := c.Conv(x, w, ConvParams{
				InputLayout:  conv,
				KernelLayout: layout.OIS,
				Strides:      [2]int{1, 1},
			}, b, shape, "y")

			assert.Equal(t, []float32{11, 22}, execute(t, c, map[Value][]float32{x: {1, 2}}, y, 2))
		})
	}
}

func TestConvBF16(t *testing.T) {
	c := NewComputation(Options{EnableBF16: true, NumThreads: 2})
	t.Cleanup(c.Destroy)
	x := argument(t, c, "x", 1, 1, 3, 3)
	w := constant(t, c, []float32{1, 0, 0, 1}, 1, 1, 2, 2)
	y := c.Conv(x, w, ConvParams{KernelLayout: layout.OIS, Strides: [2]int{1, 1}}, Value{}, tensor.Shape{1, 1, 2, 2}, "y")

	// Source and result are converted, weights once at build time.
	assert.Equal(t, 3, c.QueueLen())
	assert.Len(t, c.weights, 1)
	typ, err := c.GetValueType(y)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, typ.Elem)

	got := execute(t, c, map[Value][]float32{x: iota32(9, 1)}, y, 4)
	assert.Equal(t, []float32{6, 8, 12, 14}, got)
}

func TestConstantWeightsReorderedOnce(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 1, 1)
	// SIO (1, 1, 2, 2) differs from the OIHW layout the primitive prefers.
	w := constant(t, c, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	p := ConvParams{KernelLayout: layout.SIO, Strides: [2]int{1, 1}}
	y1 := c.Conv(x, w, p, Value{}, tensor.Shape{1, 2, 1, 1}, "y1")
	c.Conv(x, w, p, Value{}, tensor.Shape{1, 2, 1, 1}, "y2")

	assert.Len(t, c.weights, 1)
	assert.Equal(t, 2, c.QueueLen())
	// out[o] = sum_i x[i] * w[i][o]
	assert.Equal(t, []float32{7, 10}, execute(t, c, map[Value][]float32{x: {1, 2}}, y1, 2))
}

func TestConvRejectsUnsupported(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 1, 3, 3)
	w := constant(t, c, []float32{1, 1, 1, 1}, 1, 1, 2, 2)
	out := tensor.Shape{1, 1, 2, 2}

	assert.Panics(t, func() {
		c.Conv(x, w, ConvParams{KernelLayout: layout.OIS, Strides: [2]int{1, 1}, Dilations: [2]int{2, 2}}, Value{}, out, "")
	})
	assert.Panics(t, func() {
		c.Conv(x, w, ConvParams{InputLayout: layout.OIS, KernelLayout: layout.OIS, Strides: [2]int{1, 1}}, Value{}, out, "")
	})
	assert.Panics(t, func() {
		c.Conv(x, w, ConvParams{KernelLayout: layout.OIS, Strides: [2]int{1, 1}}, Value{}, tensor.Shape{1, 1, 3, 3}, "")
	})
}

func TestDeConv(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 1, 1, 1)
	w := constant(t, c, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	y := c.DeConv(x, w, ConvParams{KernelLayout: layout.IOS, Strides: [2]int{1, 1}}, Value{}, tensor.Shape{1, 1, 2, 2}, "y")

	assert.Equal(t, []float32{2, 4, 6, 8}, execute(t, c, map[Value][]float32{x: {2}}, y, 4))
}

func TestMaxPoolChannelsLast(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 2, 2)
	y := c.MaxPool(x, PoolParams{
		Layout:  layout.ChannelsLast,
		Window:  [2]int{2, 2},
		Strides: [2]int{2, 2},
	}, tensor.Shape{1, 1, 1, 2}, "y")

	assert.Equal(t, []float32{6, 7}, execute(t, c, map[Value][]float32{x: iota32(8, 0)}, y, 2))
}

func TestReduceMean(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 2, 3)

	kept := c.ReduceMean(x, []int{1, 2}, true, nil, "kept")
	dropped := c.ReduceMean(x, []int{-2, -3}, false, nil, "dropped")
	for v, shape := range map[Value]tensor.Shape{kept: {1, 1, 1, 3}, dropped: {1, 3}} {
		typ, err := c.GetValueType(v)
		require.NoError(t, err)
		assert.Equal(t, shape, typ.Shape)
	}

	in := iota32(12, 0)
	assert.Equal(t, []float32{4.5, 5.5, 6.5}, execute(t, c, map[Value][]float32{x: in}, kept, 3))
	assert.Equal(t, []float32{4.5, 5.5, 6.5}, execute(t, c, map[Value][]float32{x: in}, dropped, 3))

	assert.Panics(t, func() { c.ReduceMean(x, []int{1, 3}, true, nil, "") })
	flat := argument(t, c, "flat", 2, 3, 4)
	assert.Panics(t, func() { c.ReduceMean(flat, []int{1}, true, nil, "") })
}

func TestBatchNormalization(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 2, 1, 2)
	scale := argument(t, c, "scale", 2)
	mean := constant(t, c, []float32{1, 3}, 2)
	variance := constant(t, c, []float32{1, 4}, 2)
	offset := constant(t, c, []float32{0, 10}, 2)

	y := c.BatchNormalization(x, BatchNormParams{}, mean, variance, scale, offset, "y")
	// The non-constant scale is packed by a queued reorder.
	assert.Equal(t, 2, c.QueueLen())
	got := execute(t, c, map[Value][]float32{x: {1, 2, 3, 4}, scale: {2, 1}}, y, 4)
	assert.Equal(t, []float32{0, 2, 10, 10.5}, got)

	z := c.BatchNormalization(x, BatchNormParams{ScalarScale: 1, ScalarOffset: 0.5}, mean, variance, Value{}, Value{}, "z")
	got = execute(t, c, map[Value][]float32{x: {1, 2, 3, 4}, scale: {2, 1}}, z, 4)
	assert.Equal(t, []float32{0.5, 1.5, 0.5, 1}, got)

	short := constant(t, c, []float32{1}, 1)
	assert.Panics(t, func() { c.BatchNormalization(x, BatchNormParams{}, mean, variance, short, Value{}, "") })
}

func TestLRN(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 1, 3, 1, 1)
	y := c.LRN(x, LRNParams{Window: 1, Bias: 1}, "y")
	assert.Equal(t, []float32{1, 2, 3}, execute(t, c, map[Value][]float32{x: {1, 2, 3}}, y, 3))

	assert.Panics(t, func() { c.LRN(x, LRNParams{Window: 2, Bias: 1}, "") })
}

func TestSoftmaxNegativeAxis(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 2, 2)
	y := c.Softmax(x, -1, "y")

	got := execute(t, c, map[Value][]float32{x: {3, 3, -1, -1}}, y, 4)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, got, 1e-6)
}

func TestGemm(t *testing.T) {
	// a is (2, 3) and b is (3, 2); aT and bT store their transposes.
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	aT := []float32{1, 4, 2, 5, 3, 6}
	bT := []float32{7, 9, 11, 8, 10, 12}
	want := []float32{58, 64, 139, 154}

	tests := []struct {
		name           string
		transA, transB bool
		a, b           []float32
		aShape, bShape []int
	}{
		{"plain", false, false, a, b, []int{2, 3}, []int{3, 2}},
		{"trans_a", true, false, aT, b, []int{3, 2}, []int{3, 2}},
		{"trans_b", false, true, a, bT, []int{2, 3}, []int{2, 3}},
		{"trans_both", true, true, aT, bT, []int{3, 2}, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestComputation(t, Buffered)
			lhs := argument(t, c, "a", tt.aShape...)
			rhs := constant(t, c, tt.b, tt.bShape...)
			y := c.Gemm(lhs, tt.transA, rhs, tt.transB, 1, 1, Value{}, nil, "y")
			assert.Equal(t, 1, c.QueueLen())
			assert.Equal(t, want, execute(t, c, map[Value][]float32{lhs: tt.a}, y, 4))
		})
	}
}

func TestGemmAlphaBetaBias(t *testing.T) {
	c := newTestComputation(t, Buffered)
	lhs := argument(t, c, "a", 2, 3)
	rhs := constant(t, c, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	bias := constant(t, c, []float32{2, 4}, 2)
	y := c.Gemm(lhs, false, rhs, false, 2, 0.5, bias, tensor.Shape{2, 2}, "y")

	got := execute(t, c, map[Value][]float32{lhs: {1, 2, 3, 4, 5, 6}}, y, 4)
	assert.Equal(t, []float32{117, 130, 279, 310}, got)

	assert.Panics(t, func() { c.Gemm(lhs, false, lhs, false, 1, 1, Value{}, nil, "") })
	vec := argument(t, c, "v", 3)
	assert.Panics(t, func() { c.Gemm(vec, false, rhs, false, 1, 1, Value{}, nil, "") })
}

func TestTranspose(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 2, 3)
	y := c.Transpose(x, []int{1, 0}, "y")
	typ, err := c.GetValueType(y)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, typ.Shape)

	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, execute(t, c, map[Value][]float32{x: iota32(6, 0)}, y, 6))
	assert.Panics(t, func() { c.Transpose(x, []int{0, 0}, "") })
}

func TestConcat(t *testing.T) {
	c := newTestComputation(t, Buffered)
	a := argument(t, c, "a", 2, 1)
	b := constant(t, c, []float32{3, 4, 5, 6}, 2, 2)
	y := c.Concat([]Value{a, b}, -1, nil, "y")
	typ, err := c.GetValueType(y)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, typ.Shape)

	assert.Equal(t, []float32{1, 3, 4, 2, 5, 6}, execute(t, c, map[Value][]float32{a: {1, 2}}, y, 6))

	ints, err := c.CreateArgument(ValueType{Elem: tensor.Int32, Shape: tensor.Shape{2, 1}}, "ints")
	require.NoError(t, err)
	assert.Panics(t, func() { c.Concat([]Value{a, ints}, 1, nil, "") })
	assert.Panics(t, func() { c.Concat(nil, 0, nil, "") })
}

func TestSlice(t *testing.T) {
	c := newTestComputation(t, Buffered)
	x := argument(t, c, "x", 3, 4)
	y := c.Slice(x, []int{1, 1}, []int{3, 3}, nil, "y")

	assert.Equal(t, []float32{5, 6, 9, 10}, execute(t, c, map[Value][]float32{x: iota32(12, 0)}, y, 4))
	assert.Panics(t, func() { c.Slice(x, []int{0, 0}, []int{3, 4}, []int{1, 2}, "") })
	assert.Panics(t, func() { c.Slice(x, []int{0, 0}, []int{4, 4}, nil, "") })
}
