package costmodel

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// RegionSize is "one function, area x bytes_per_value" (spec.md §4.2),
// using the function's first output type's byte width.
func RegionSize(f *ir.Function, region bounds.Box) bounds.Extent {
	area, ok := region.Area()
	if !ok {
		return bounds.UnknownExtent
	}
	bw := int64(4)
	if len(f.OutputTypes()) > 0 {
		bw = f.OutputTypes()[0].ByteWidth()
	}
	return bounds.KnownExtent(area * bw)
}

// WorkingSetHighWaterMark computes the working-set high-water mark over a
// set of per-function region boxes, per spec.md §4.2's 3-step traversal: a
// running-total/consumer-count pattern walked in realization order, so a
// producer's bytes are released only once every one of its consumers has
// been visited.
func WorkingSetHighWaterMark(env *ir.Environment, regions map[string]bounds.Box, inlines map[string]bool) bounds.Extent {
	names := make([]string, 0, len(regions))
	member := make(map[string]bool, len(regions))
	for n := range regions {
		names = append(names, n)
		member[n] = true
	}
	sort.Strings(names)

	funcs := make([]*ir.Function, 0, len(names))
	for _, n := range names {
		if f, ok := env.Lookup(n); ok {
			funcs = append(funcs, f)
		}
	}

	consumerCount := make(map[string]int, len(names))
	for _, n := range names {
		consumerCount[n] = 0
	}
	for _, f := range funcs {
		for _, dep := range ir.FindDirectCalls(f, env) {
			if member[dep.Name()] {
				consumerCount[dep.Name()]++
			}
		}
	}

	order := ir.RealizationOrder(funcs, env)
	var filtered []*ir.Function
	for _, f := range order {
		if member[f.Name()] {
			filtered = append(filtered, f)
		}
	}

	var running, peak int64
	sizes := make(map[string]int64, len(names))
	for _, f := range filtered {
		var sz int64
		if inlines[f.Name()] && f.IsPure() {
			sz = 0
		} else {
			e := RegionSize(f, regions[f.Name()])
			if !e.Known {
				return bounds.UnknownExtent
			}
			sz = e.Value
		}
		sizes[f.Name()] = sz
		running += sz
		if running > peak {
			peak = running
		}
		for _, dep := range ir.FindDirectCalls(f, env) {
			if !member[dep.Name()] {
				continue
			}
			consumerCount[dep.Name()]--
			if consumerCount[dep.Name()] == 0 {
				running -= sizes[dep.Name()]
			}
		}
	}
	return bounds.KnownExtent(peak)
}
