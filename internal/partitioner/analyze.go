package partitioner

import (
	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/internal/config"
	"github.com/bilbil/haloschedule/internal/costmodel"
	"github.com/bilbil/haloschedule/internal/dependence"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// analysisContext bundles the read-only inputs analyze_group needs: the
// environment, the once-built func_cost table, the target machine, and the
// pipeline-wide region-required boxes (spec.md §4.3's get_pipeline_bounds
// output) used as the source of "full extent" for untiled dims and for
// GenerateTileConfigs' fit checks.
type analysisContext struct {
	env          *ir.Environment
	fc           costmodel.FuncCost
	target       config.Machine
	pipelineBox  map[string]bounds.Box
}

// extentsForFunc returns f's pure-dim name -> estimated extent map, sourced
// from the pipeline-wide region-required box (dimension-aligned to
// f.Args()).
func (ac *analysisContext) extentsForFunc(f *ir.Function) map[string]int64 {
	out := make(map[string]int64, len(f.Args()))
	box := ac.pipelineBox[f.Name()]
	for i, d := range f.Args() {
		if i >= len(box) {
			continue
		}
		if e, ok := box[i].Extent(); ok {
			out[d] = e
		}
	}
	return out
}

// boundsFromTileSizes is get_bounds_from_tile_sizes(g.output, g.tile_sizes):
// for each pure dim of the output function, a tile size gives [0, t-1];
// otherwise the dim keeps its full pipeline-bounds extent. Reduction
// variables of the stage always use their full literal domain.
func (ac *analysisContext) boundsFromTileSizes(outStage *ir.Stage, tileSizes map[string]int) bounds.DimBounds {
	f := outStage.Function()
	extents := ac.extentsForFunc(f)
	scope := make(bounds.DimBounds, len(f.Args()))
	for _, d := range f.Args() {
		if t, ok := tileSizes[d]; ok {
			scope[d] = bounds.Lit(0, int64(t-1))
			continue
		}
		if e, ok := extents[d]; ok {
			scope[d] = bounds.FromEstimate(0, e)
		}
	}
	return dependence.GetStageBounds(outStage, scope)
}

// analyzeGroup is spec.md §4.4's analyze_group(g), evaluated at the given
// tile-size choice (independent of whatever g.TileSizes currently holds, so
// find_best_tile_config can probe candidates without mutating g), returning
// InvalidAnalysis if any intermediate quantity is unknown.
func analyzeGroup(ac *analysisContext, g *Group, tileSizes map[string]int) GroupAnalysis {
	outFn, ok := ac.env.Lookup(g.Output.Func)
	if !ok {
		return InvalidAnalysis
	}
	outStage := outFn.Stage(g.Output.Num)

	groupMem := make(map[string]bool)
	for _, n := range g.MemberFuncs() {
		groupMem[n] = true
	}
	costInlines := g.costInlines()

	pureTileDims := append([]string(nil), outFn.Args()...)
	extents := ac.extentsForFunc(outFn)

	estimateTiles := int64(1)
	for _, d := range pureTileDims {
		if t, ok := tileSizes[d]; ok && t > 0 {
			if e, ok2 := extents[d]; ok2 {
				estimateTiles *= ceilDiv(e, int64(t))
			}
		}
	}

	tileBounds := ac.boundsFromTileSizes(outStage, tileSizes)
	footprint := dependence.StageRegionsRequired(outStage, tileBounds, ac.env)

	groupReg := make(map[string]bounds.Box)
	prodReg := make(map[string]bounds.Box)
	inputReg := make(map[string]bounds.Box)
	for name, box := range footprint {
		switch {
		case groupMem[name]:
			groupReg[name] = box
		default:
			if _, isFunc := ac.env.Lookup(name); isFunc {
				prodReg[name] = box
			} else {
				inputReg[name] = box
			}
		}
	}
	// The group's own members also contribute their region, including the
	// output itself (regions_required only reports upstream functions).
	groupReg[outFn.Name()] = box0FromStage(outStage, tileBounds)

	tileCost := costmodel.RegionCost(ac.fc, ac.env, groupReg, costInlines)
	if !tileCost.Known {
		return InvalidAnalysis
	}

	var tileInputBytes int64
	for _, name := range dependence.SortedCallees(prodReg) {
		f, _ := ac.env.Lookup(name)
		e := costmodel.RegionSize(f, prodReg[name])
		if !e.Known {
			return InvalidAnalysis
		}
		tileInputBytes += e.Value
	}
	for _, box := range inputReg {
		area, ok := box.Area()
		if !ok {
			return InvalidAnalysis
		}
		tileInputBytes += area * 4 // external images: assume 4-byte samples absent a declared type
	}

	tileIntermediate := costmodel.WorkingSetHighWaterMark(ac.env, groupReg, costInlines)
	if !tileIntermediate.Known {
		return InvalidAnalysis
	}

	fullOutBox := ac.pipelineBox[outFn.Name()]
	outCost := costmodel.StageRegionCost(ac.fc, outFn.Stage(outFn.LastStage()), fullOutBox)
	if !outCost.Known {
		return InvalidAnalysis
	}

	perTileMem := tileInputBytes
	if tileIntermediate.Value > ac.target.FastMemSize {
		perTileMem += tileCost.Mem
	}

	arithCost := tileCost.Arith*estimateTiles + outCost.Arith
	memCost := perTileMem * estimateTiles

	return GroupAnalysis{ArithCost: arithCost, MemCost: memCost, Parallelism: estimateTiles}
}

// box0FromStage extracts the output stage's own box (its non-outermost dims,
// in order) from the scope used to query its footprint — the "group_reg"
// entry analyze_group needs for the group's own output function, which
// regions_required does not itself report (it only reports upstream calls).
func box0FromStage(stage *ir.Stage, scope bounds.DimBounds) bounds.Box {
	box := make(bounds.Box, 0, len(stage.Dims()))
	for _, d := range stage.Dims() {
		if d == ir.OutermostDim {
			continue
		}
		if iv, ok := scope[d]; ok {
			box = append(box, iv)
		}
	}
	return box
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 1
	}
	return (a + b - 1) / b
}
