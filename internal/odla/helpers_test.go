package odla

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/odla/internal/tensor"
)

func newTestComputation(t *testing.T, policy Policy) *Computation {
	t.Helper()
	c := NewComputation(Options{Policy: policy, NumThreads: 2})
	t.Cleanup(c.Destroy)
	return c
}

func f32Type(shape ...int) ValueType {
	return ValueType{Elem: tensor.Float32, Shape: shape}
}

func argument(t *testing.T, c *Computation, name string, shape ...int) Value {
	t.Helper()
	v, err := c.CreateArgument(f32Type(shape...), name)
	require.NoError(t, err)
	return v
}

func constant(t *testing.T, c *Computation, vals []float32, shape ...int) Value {
	t.Helper()
	v, err := c.CreateConstant(f32Type(shape...), tensor.AsBytes(vals), "")
	require.NoError(t, err)
	return v
}

// execute binds inputs, runs c once on a fresh context and returns the
// n elements written to out.
func execute(t *testing.T, c *Computation, inputs map[Value][]float32, out Value, n int) []float32 {
	t.Helper()
	ctx, err := NewContext(c)
	require.NoError(t, err)
	defer ctx.Destroy()
	for v, data := range inputs {
		require.NoError(t, ctx.BindToArgument(v, tensor.AsBytes(data)))
	}
	result := make([]float32, n)
	require.NoError(t, ctx.BindToOutput(out, tensor.AsBytes(result)))
	require.NoError(t, c.Execute(ctx))
	return result
}

func iota32(n int, from float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = from + float32(i)
	}
	return out
}
