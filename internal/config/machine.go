// Package config describes the target machine the auto-scheduler optimizes
// for (spec.md §6): parallelism, vector width, fast-memory capacity, and the
// compute/memory cost balance. These are tuning knobs, not a wire format,
// but this pipeline loads them from a small YAML file via gopkg.in/yaml.v3
// (already present in the rest of the example pack's dependency trees) so a
// deployment can tune them without a rebuild.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Machine holds the four machine parameters spec.md §6 names, with their
// compile-time defaults.
type Machine struct {
	Parallelism int64 `yaml:"parallelism"`
	VecLen      int64 `yaml:"vec_len"`
	FastMemSize int64 `yaml:"fast_mem_size"`
	Balance     int64 `yaml:"balance"`
}

// Default returns the compile-time defaults spec.md §6 specifies.
func Default() Machine {
	return Machine{Parallelism: 16, VecLen: 8, FastMemSize: 1024, Balance: 10}
}

// WithDefaults fills any zero-valued field of m with the compile-time
// default, so a partially-specified YAML document still yields a usable
// Machine.
func (m Machine) WithDefaults() Machine {
	d := Default()
	if m.Parallelism == 0 {
		m.Parallelism = d.Parallelism
	}
	if m.VecLen == 0 {
		m.VecLen = d.VecLen
	}
	if m.FastMemSize == 0 {
		m.FastMemSize = d.FastMemSize
	}
	if m.Balance == 0 {
		m.Balance = d.Balance
	}
	return m
}

// Load reads a Machine from a YAML file at path, applying defaults to any
// field the file omits.
func Load(path string) (Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Machine{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m Machine
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Machine{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return m.WithDefaults(), nil
}
