package dependence

import "github.com/bilbil/haloschedule/internal/bounds"
import "github.com/bilbil/haloschedule/pkg/ir"

// StageRegionsRequired is spec.md §4.3's "regions_required((f,k), bounds) —
// the heart": a breadth-first walk starting from stage over startScope,
// hull-merging the region box required of every transitively-reached
// function. Distinct from RegionsRequired (this package's direct-callees-only
// helper, used as StageRegionsRequired's per-stage building block) and from
// FunctionRegionsRequired (which only unions a single function's own
// stages) — this is the full multi-hop propagation analyze_group's tile
// footprint step needs.
func StageRegionsRequired(stage *ir.Stage, startScope bounds.DimBounds, env *ir.Environment) map[string]bounds.Box {
	type item struct {
		stage *ir.Stage
		scope bounds.DimBounds
	}
	queue := []item{{stage, startScope}}
	visited := make(map[bounds.FStage]bool)
	result := make(map[string]bounds.Box)
	selfName := stage.Function().Name()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		key := bounds.FStage{Func: cur.stage.Function().Name(), Num: cur.stage.Num()}
		if visited[key] {
			continue
		}
		visited[key] = true

		regions := RegionsRequired(cur.stage, cur.scope)
		for _, name := range SortedCallees(regions) {
			if name == selfName {
				continue // a function never requires a region of itself here
			}
			box := regions[name]
			result[name] = bounds.HullBox(result[name], box)

			g, ok := env.Lookup(name)
			if !ok {
				continue // input image: no body to enqueue, stays symbolic
			}
			gScope := pureScopeFromBox(g, box)
			for k := 0; k <= g.LastStage(); k++ {
				st := g.Stage(k)
				queue = append(queue, item{st, GetStageBounds(st, gScope)})
			}
		}
	}

	finalizeWithEstimates(result, env)
	return result
}

// finalizeWithEstimates implements step 4: for endpoints that remain
// non-literal whose function is a pipeline function carrying a user
// estimate on the corresponding dim, substitute the estimate's literal
// interval. Endpoints on functions without an estimate (typically input
// images) stay symbolic; callers treat their resulting area as unknown.
func finalizeWithEstimates(result map[string]bounds.Box, env *ir.Environment) {
	for name, box := range result {
		g, ok := env.Lookup(name)
		if !ok {
			continue
		}
		args := g.Args()
		for i := range box {
			if box[i].Known() || i >= len(args) {
				continue
			}
			if est, ok := g.Estimate(args[i]); ok {
				box[i] = bounds.FromEstimate(est.Min, est.Extent)
			}
		}
	}
}
