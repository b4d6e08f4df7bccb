package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "odla version "+version+"\n", out)

	out, err = execCLI(t, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestEnv(t *testing.T) {
	t.Setenv("ODLA_NUM_THREADS", "3")
	out, err := execCLI(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "ODLA_BF16")
	assert.Contains(t, out, "ODLA_INTERPRET")
	assert.Regexp(t, `ODLA_NUM_THREADS\s+3`, out)
}

func TestDemo(t *testing.T) {
	for _, interpret := range []string{"0", "1"} {
		t.Run("interpret="+interpret, func(t *testing.T) {
			t.Setenv("ODLA_INTERPRET", interpret)
			out, err := execCLI(t, "demo")
			require.NoError(t, err)
			assert.Contains(t, out, "output: [0 0 2.5 4.5]")
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	graphPath := filepath.Join(dir, "g.json")
	inputsPath := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(graphPath, []byte(`{
	  "inputs": [{"name": "x", "shape": [2, 2]}, {"name": "unfed", "shape": [1]}],
	  "nodes": [
	    {"op_type": "Relu", "inputs": ["x"], "outputs": ["y"]},
	    {"op_type": "Sigmoid", "inputs": ["unfed"], "outputs": ["z"]}
	  ],
	  "outputs": ["y", "z"]
	}`), 0o600))
	require.NoError(t, os.WriteFile(inputsPath, []byte(`{"x": [-1, 2, -3, 4]}`), 0o600))

	out, err := execCLI(t, "run", graphPath, "--inputs", inputsPath, "--limit", "3")
	require.NoError(t, err)
	assert.Regexp(t, `y\s+float32\s+\[2 2\]\s+0 2 0 \.\.\. \(1 more\)`, out)
	assert.Regexp(t, `z\s+float32\s+\[1\]\s+0\.5`, out)

	_, err = execCLI(t, "run", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "reading graph file")
}

func TestOps(t *testing.T) {
	out, err := execCLI(t, "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "ConvTranspose\n")
}

func TestFormatValues(t *testing.T) {
	assert.Equal(t, "1 2.5", formatValues([]float64{1, 2.5}, 0))
	assert.Equal(t, "1 ... (2 more)", formatValues([]float64{1, 2, 3}, 1))
}
