package partitioner

import "sort"

// sizeVariants is spec.md §4.4's fixed tile-size variant set.
var sizeVariants = []int{1, 4, 8, 16, 32, 64, 128, 256}

// GenerateTileConfigs builds the canonical tile-configuration set for the
// pure tile dims of one group's output, in dim order, per spec.md §4.4:
// skewed configs (dims before the pivot get the variant size, dim 0 clamped
// to max(s,64); dims from the pivot on get 256) followed by square configs
// (every dim gets the variant size, dim 0 still clamped). A size is applied
// to a dim only if its estimated extent is >= 2*size; otherwise the dim is
// left untiled in that configuration. Duplicate configurations (common once
// small extents suppress most variants) are deduped, first occurrence wins,
// preserving the deterministic skewed-before-square, innermost-size-varying
// order spec.md §5 requires.
func GenerateTileConfigs(dims []string, extents map[string]int64) []map[string]int {
	var configs []map[string]int
	seen := make(map[string]bool)

	add := func(cfg map[string]int) {
		k := configKey(dims, cfg)
		if seen[k] {
			return
		}
		seen[k] = true
		configs = append(configs, cfg)
	}

	for i := 0; i < len(dims); i++ {
		for _, s := range sizeVariants {
			add(skewedConfig(dims, extents, i, s))
		}
	}
	for _, s := range sizeVariants {
		add(squareConfig(dims, extents, s))
	}
	return configs
}

func skewedConfig(dims []string, extents map[string]int64, pivot, s int) map[string]int {
	cfg := make(map[string]int)
	for j, d := range dims {
		size := 256
		if j < pivot {
			size = s
			if j == 0 {
				size = max(s, 64)
			}
		}
		applyIfFits(cfg, extents, d, size)
	}
	return cfg
}

func squareConfig(dims []string, extents map[string]int64, s int) map[string]int {
	cfg := make(map[string]int)
	for j, d := range dims {
		size := s
		if j == 0 {
			size = max(s, 64)
		}
		applyIfFits(cfg, extents, d, size)
	}
	return cfg
}

func applyIfFits(cfg map[string]int, extents map[string]int64, dim string, size int) {
	extent, ok := extents[dim]
	if !ok || extent < int64(2*size) {
		return
	}
	cfg[dim] = size
}

func configKey(dims []string, cfg map[string]int) string {
	key := make([]byte, 0, len(dims)*4)
	for _, d := range dims {
		if v, ok := cfg[d]; ok {
			key = append(key, []byte(d)...)
			key = append(key, ':')
			key = appendInt(key, v)
			key = append(key, ',')
		}
	}
	return string(key)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[i:]...)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sortDimsByTileOrder returns m's keys sorted by their position in dims,
// used anywhere a tile-size map needs deterministic iteration.
func sortDimsByTileOrder(m map[string]int, dims []string) []string {
	pos := make(map[string]int, len(dims))
	for i, d := range dims {
		pos[d] = i
	}
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return pos[out[i]] < pos[out[j]] })
	return out
}
