package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float16, 2},
		{BFloat16, 2},
		{Int32, 4},
		{Int64, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.size, tt.dtype.Size(), tt.dtype.String())
	}
}

func TestParseDataType(t *testing.T) {
	dt, ok := ParseDataType("bf16")
	require.True(t, ok)
	assert.Equal(t, BFloat16, dt)

	dt, ok = ParseDataType("")
	require.True(t, ok)
	assert.Equal(t, Float32, dt)

	_, ok = ParseDataType("complex128")
	assert.False(t, ok)
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Shape{1, 3, 4, 4}.Validate())
	assert.NoError(t, Shape{}.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.Error(t, Shape{1, 1, 1, 1, 1, 1, 1}.Validate())
}

func TestShapeNumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 48, Shape{1, 3, 4, 4}.NumElements())
}

func TestNormalizeAxis(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 2, s.NormalizeAxis(-1))
	assert.Equal(t, 0, s.NormalizeAxis(0))
}

func TestAsBytesAliases(t *testing.T) {
	data := []float32{1, 2, 3}
	b := AsBytes(data)
	require.Len(t, b, 12)

	back := FromBytes[float32](b)
	back[1] = 42
	assert.Equal(t, float32(42), data[1])
}
