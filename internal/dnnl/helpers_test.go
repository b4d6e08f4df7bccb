package dnnl

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/odla/internal/parallel"
	"github.com/born-ml/odla/internal/tensor"
)

var testEngine = NewEngine(CPU, 0, parallel.WithWorkers(2))

func f32Memory(t *testing.T, desc MemoryDesc, vals []float32) *Memory {
	t.Helper()
	require.Equal(t, F32, desc.Type)
	buf := make([]float32, desc.Span())
	copy(buf, vals)
	return NewMemoryWithHandle(desc, testEngine, tensor.AsBytes(buf))
}

func f32Values(m *Memory) []float32 {
	return slices.Clone(tensor.FromBytes[float32](m.DataHandle()))
}

func run(t *testing.T, p Primitive, args Args) {
	t.Helper()
	require.NoError(t, ExecuteNow(testEngine, p, args))
}

func iota32(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}
