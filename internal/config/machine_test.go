package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, int64(16), d.Parallelism)
	assert.Equal(t, int64(8), d.VecLen)
	assert.Equal(t, int64(1024), d.FastMemSize)
	assert.Equal(t, int64(10), d.Balance)
}

func TestWithDefaults_FillsOnlyZeroFields(t *testing.T) {
	m := Machine{Parallelism: 32}.WithDefaults()
	assert.Equal(t, int64(32), m.Parallelism)
	assert.Equal(t, int64(8), m.VecLen)
}

func TestLoad_ParsesYAMLAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelism: 4\nvec_len: 16\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.Parallelism)
	assert.Equal(t, int64(16), m.VecLen)
	assert.Equal(t, int64(1024), m.FastMemSize)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/machine.yaml")
	assert.Error(t, err)
}
