package costmodel

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// pureBoundsFromBox attaches each of f's pure args to the matching entry of
// box, positionally (box is "dimension-aligned to f.args()", spec.md §4.2).
func pureBoundsFromBox(f *ir.Function, box bounds.Box) bounds.DimBounds {
	scope := make(bounds.DimBounds, len(box))
	args := f.Args()
	for i := range box {
		if i < len(args) {
			scope[args[i]] = box[i]
		}
	}
	return scope
}

// StageRegionCost prices stage (f,k) over region box R, per spec.md §4.2:
// attach f.args() to R, overlay stage k's reduction variables at their
// literal domains, form the stage's own box from its non-outermost dims in
// order, and scale func_cost[f][k] by that box's area.
func StageRegionCost(fc FuncCost, stage *ir.Stage, region bounds.Box) bounds.Cost {
	f := stage.Function()
	scope := pureBoundsFromBox(f, region)
	for _, rv := range stage.RVars() {
		scope[rv.Name] = bounds.FromEstimate(rv.Min, rv.Extent)
	}

	stageBox := make(bounds.Box, 0, len(stage.Dims()))
	for _, d := range stage.Dims() {
		if d == ir.OutermostDim {
			continue
		}
		iv, ok := scope[d]
		if !ok {
			return bounds.UnknownCost
		}
		stageBox = append(stageBox, iv)
	}

	area, ok := stageBox.Area()
	if !ok {
		return bounds.UnknownCost
	}
	point := fc.Of(f.Name(), stage.Num())
	if !point.Known {
		return bounds.UnknownCost
	}
	return bounds.KnownCost(area*point.Arith, area*point.Mem)
}

// RegionCost prices a set of per-function region boxes (the "region cost of
// a set of regions", spec.md §4.2): sum over functions, skipping any
// function in inlines that is pure. Consumers are priced from their
// func_cost entries as built from their unrewritten expressions; the
// skipped function's body is not substituted into them, so its arithmetic
// and memory cost are not counted anywhere in the total. Each function's
// region is priced at its last stage, the stage whose output is what the
// box actually describes.
func RegionCost(fc FuncCost, env *ir.Environment, regions map[string]bounds.Box, inlines map[string]bool) bounds.Cost {
	names := make([]string, 0, len(regions))
	for n := range regions {
		names = append(names, n)
	}
	sort.Strings(names)

	total := bounds.KnownCost(0, 0)
	for _, name := range names {
		f, ok := env.Lookup(name)
		if !ok {
			continue
		}
		if inlines[name] && f.IsPure() {
			continue
		}
		stage := f.Stage(f.LastStage())
		total = total.Add(StageRegionCost(fc, stage, regions[name]))
	}
	return total
}
