// Package scheduleemitter implements spec.md §4.5: given the partitioner's
// finalized groups, it applies schedule primitives (compute_root,
// compute_inline, split, reorder, vectorize, parallel) to the underlying
// Function/Stage handles and returns a textual record of what was applied,
// as plain formatted strings rather than structured log records — this
// step is pure bookkeeping over values already computed by the
// partitioner, not I/O or concurrency, so there's nothing here for a
// logging/tracing dependency to add.
package scheduleemitter

import (
	"fmt"
	"sort"

	"github.com/bilbil/haloschedule/internal/config"
	"github.com/bilbil/haloschedule/internal/partitioner"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// Emit applies every group's schedule and returns the ordered directive
// trace. groups must already be in the partitioner's canonical order
// (Partitioner.Run's return value).
func Emit(groups []*partitioner.Group, env *ir.Environment, target config.Machine) []string {
	var lines []string

	for _, name := range sortedInlinedNames(groups) {
		fn, ok := env.Lookup(name)
		if !ok {
			continue
		}
		fn.Schedule().ComputeInline()
		lines = append(lines, fmt.Sprintf("%s: compute_inline", name))
	}

	for _, g := range groups {
		lines = append(lines, emitGroup(g, env, target)...)
	}
	return lines
}

// sortedInlinedNames unions every group's true Inlined set (never
// CostOnlyInlined — those stages stay materialized) in deterministic order.
func sortedInlinedNames(groups []*partitioner.Group) []string {
	set := make(map[string]bool)
	for _, g := range groups {
		for n := range g.Inlined {
			set[n] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func emitGroup(g *partitioner.Group, env *ir.Environment, target config.Machine) []string {
	outFn, ok := env.Lookup(g.Output.Func)
	if !ok {
		return nil
	}
	stage := outFn.Stage(g.Output.Num)
	sched := stage.Schedule()
	var lines []string

	seedDimEstimates(outFn, stage, sched)

	if g.Output.Num == 0 {
		sched.ComputeRoot()
		lines = append(lines, fmt.Sprintf("%s: compute_root", g.Output.Func))
	} else {
		// compute_root is a function-level decision (it governs where the
		// whole Func, pure stage included, is materialized), so it is
		// always recorded on the pure schedule even when the group's own
		// output stage is a later update — matching fn.Schedule() being the
		// handle every other caller checks for "is this materialized".
		outFn.Schedule().ComputeRoot()
		lines = append(lines, fmt.Sprintf("%s: compute_root", g.Output.Func))
		lines = append(lines, fmt.Sprintf("%s: update(%d) scheduled with stage 0", g.Output.Func, g.Output.Num-1))
	}

	rvarNames := make(map[string]bool, len(stage.RVars()))
	for _, rv := range stage.RVars() {
		rvarNames[rv.Name] = true
	}

	var inners, outers, reductionDims []string
	for _, d := range stage.Dims() {
		if d == ir.OutermostDim {
			continue
		}
		if rvarNames[d] {
			reductionDims = append(reductionDims, d)
			continue
		}
		switch t, tiled := g.TileSizes[d]; {
		case tiled && t > 1:
			innerName, outerName := d+"_i", d+"_o"
			sched.Split(d, outerName, innerName, t)
			lines = append(lines, fmt.Sprintf("%s: split(%s -> %s, %s, %d)", g.Output.Func, d, outerName, innerName, t))
			inners = append(inners, innerName)
			outers = append(outers, outerName)
		default:
			// Untiled (or tile factor 1, which is the same thing without a
			// split) pure dims have no separate inner half: the whole dim
			// stays a single loop and remains a parallelization candidate,
			// same as a tile's outer half. Only a split's inner half is ever
			// excluded from that set.
			outers = append(outers, d)
		}
	}

	if len(outers) > 0 {
		order := append(append([]string(nil), inners...), outers...)
		sched.Reorder(order)
		lines = append(lines, fmt.Sprintf("%s: reorder(%v)", g.Output.Func, order))
	}

	lines = append(lines, emitVectorize(g, outFn, sched, target)...)
	lines = append(lines, emitParallel(g, sched, outers, reductionDims, rvarNames, target)...)
	return lines
}

// seedDimEstimates gives every non-outermost dim of the stage an initial
// literal (min, extent) before any split so StageSchedule.Split's derived
// inner/outer estimates (inner := factor, outer := ceil(old/factor)) have
// something to derive from: pure dims inherit the function's own output
// estimate (the same iteration domain at every stage), reduction dims their
// own concrete (min, extent).
func seedDimEstimates(fn *ir.Function, stage *ir.Stage, sched *ir.StageSchedule) {
	for _, d := range fn.Args() {
		if e, ok := fn.Estimate(d); ok {
			sched.SetDimEstimate(d, e)
		}
	}
	for _, rv := range stage.RVars() {
		sched.SetDimEstimate(rv.Name, ir.Estimate{Min: rv.Min, Extent: rv.Extent})
	}
}

// emitVectorize is step 5: the innermost pure dim (by original declared
// order — this IR lists a function's args innermost-first, outermost
// trailing) is the vectorization candidate. If tiling already split it, the
// candidate is that split's inner half.
func emitVectorize(g *partitioner.Group, fn *ir.Function, sched *ir.StageSchedule, target config.Machine) []string {
	if len(fn.Args()) == 0 {
		return nil
	}
	vecDim := fn.Args()[0]
	vecVar := vecDim
	if t, ok := g.TileSizes[vecDim]; ok && t > 1 {
		vecVar = vecDim + "_i"
	}
	est, ok := sched.DimEstimate(vecVar)
	if !ok {
		return nil
	}
	v := naturalVectorSize(fn.OutputTypes(), target)
	if est.Extent < v {
		return nil
	}
	voName, viName := vecVar+"_vo", vecVar+"_vi"
	sched.Split(vecVar, voName, viName, int(v))
	sched.Vectorize(viName, int(v))
	return []string{fmt.Sprintf("%s: vectorize(%s, %d)", fn.Name(), viName, v)}
}

// emitParallel is step 6: walk candidate dims outer-to-inner (every pure dim
// that isn't a split's inner half — a tile's outer half or an untiled whole
// dim alike — reversed to put the slowest-varying dim first, then any
// reduction dims) parallelizing each until the running product of estimates
// reaches target.Parallelism.
func emitParallel(g *partitioner.Group, sched *ir.StageSchedule, outers, reductionDims []string, rvarNames map[string]bool, target config.Machine) []string {
	var candidates []string
	for i := len(outers) - 1; i >= 0; i-- {
		candidates = append(candidates, outers[i])
	}
	candidates = append(candidates, reductionDims...)

	var lines []string
	var product int64 = 1
	met := false
	for _, d := range candidates {
		if rvarNames[d] && !canParallelizeRvar() {
			continue
		}
		est, ok := sched.DimEstimate(d)
		if !ok {
			continue
		}
		sched.Parallel(d)
		lines = append(lines, fmt.Sprintf("%s: parallel(%s)", g.Output.Func, d))
		product *= est.Extent
		if product >= target.Parallelism {
			met = true
			break
		}
	}
	if !met {
		lines = append(lines, fmt.Sprintf(
			"%s: warning: parallelism target %d not met (achieved %d)",
			g.Output.Func, target.Parallelism, product))
	}
	return lines
}

// canParallelizeRvar reports whether a reduction domain can be safely
// parallelized. The host IR's ReductionVar carries no
// associative/commutative annotation, so this conservatively always
// returns false — every reduction loop is treated as a true serial
// dependency, matching spec.md §4.5's worst-case "skip" branch.
func canParallelizeRvar() bool { return false }

// naturalVectorSize is max over output types of native lane count: a
// narrower type packs more lanes into the same register width, so lanes
// scale inversely with byte width relative to a 4-byte baseline — a
// target.vec_len of 8 gives 8 lanes for 4-byte types, 16 for 2-byte types,
// and so on.
func naturalVectorSize(types []ir.Type, target config.Machine) int64 {
	var best int64
	for _, t := range types {
		bw := t.ByteWidth()
		if bw <= 0 {
			bw = 4
		}
		cand := target.VecLen * 4 / bw
		if cand < 1 {
			cand = 1
		}
		if cand > best {
			best = cand
		}
	}
	if best == 0 {
		best = 1
	}
	return best
}
