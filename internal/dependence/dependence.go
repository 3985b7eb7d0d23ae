package dependence

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// GetStageBounds returns the DimBounds scope a given stage's dims are bound
// to, given the literal (min, extent) estimate for each of the stage's pure
// dims (from an enclosing compute_root consumer's requested region) plus the
// stage's own reduction-variable domains (always concrete, per spec.md §3).
func GetStageBounds(stage *ir.Stage, pureDimBounds bounds.DimBounds) bounds.DimBounds {
	scope := pureDimBounds.Clone()
	for _, rv := range stage.RVars() {
		scope[rv.Name] = bounds.FromEstimate(rv.Min, rv.Extent)
	}
	return scope
}

// RegionsRequired computes, for one stage evaluated under scope, the box of
// input region each callee it calls needs. The result maps callee name to
// the box required of that callee by this stage alone (the hull across all
// of the stage's calls to that callee).
//
// Walks the stage's value expressions looking for calls to other pipeline
// functions and to input images; each call's argument expressions are turned into a required
// box via BoxesRequired, and boxes from repeated calls to the same callee
// are hulled together.
func RegionsRequired(stage *ir.Stage, scope bounds.DimBounds) map[string]bounds.Box {
	out := make(map[string]bounds.Box)
	var walk func(e ir.Expr)
	walk = func(e ir.Expr) {
		switch n := e.(type) {
		case *ir.Call:
			if n.Kind == ir.CallPipelineFunc || n.Kind == ir.CallExternImage {
				box := BoxesRequired(n.Args, scope)
				out[n.Name] = bounds.HullBox(out[n.Name], box)
			}
			for _, a := range n.Args {
				walk(a)
			}
		case *ir.BinOp:
			walk(n.A)
			walk(n.B)
		case *ir.Cast:
			walk(n.Value)
		case *ir.Not:
			walk(n.X)
		case *ir.Select:
			walk(n.Cond)
			walk(n.T)
			walk(n.F)
		case *ir.Let:
			walk(n.Value)
			walk(n.Body)
		}
	}
	for _, v := range stage.Values() {
		walk(v)
	}
	return out
}

// FunctionRegionsRequired unions RegionsRequired across every stage (pure
// plus all updates) of fn, evaluated under the same pureDimBounds scope for
// each stage's pure dims — matching spec.md §4.2's "a function's region
// required is the hull of what every one of its stages requires".
func FunctionRegionsRequired(fn *ir.Function, pureDimBounds bounds.DimBounds) map[string]bounds.Box {
	out := make(map[string]bounds.Box)
	for k := 0; k <= fn.LastStage(); k++ {
		stage := fn.Stage(k)
		scope := GetStageBounds(stage, pureDimBounds)
		for callee, box := range RegionsRequired(stage, scope) {
			out[callee] = bounds.HullBox(out[callee], box)
		}
	}
	return out
}

// GetPipelineBounds propagates region-required boxes from the given outputs
// (each bound to its own literal estimate, per spec.md §6) backward through
// RealizationOrder, producing the region-required box for every function
// reachable from outputs. Functions with more than one consumer get the hull
// of every consumer's requested box, per spec.md §4.2.
func GetPipelineBounds(outputs []*ir.Function, env *ir.Environment) map[string]bounds.Box {
	order := ir.RealizationOrder(outputs, env)

	required := make(map[string]bounds.Box)
	for _, f := range outputs {
		required[f.Name()] = outputBox(f)
	}

	// Walk in reverse realization order (consumers before producers) so that
	// by the time a function is visited, every one of its consumers has
	// already contributed its region-required box.
	for i := len(order) - 1; i >= 0; i-- {
		f := order[i]
		box, ok := required[f.Name()]
		if !ok {
			continue // unreachable from outputs in this ordering; skip
		}
		scope := pureScopeFromBox(f, box)
		for callee, want := range FunctionRegionsRequired(f, scope) {
			required[callee] = bounds.HullBox(required[callee], want)
		}
	}
	return required
}

func outputBox(f *ir.Function) bounds.Box {
	dims := f.PureDims()
	box := make(bounds.Box, 0, len(dims))
	for _, d := range dims {
		if d == ir.OutermostDim {
			continue
		}
		e, _ := f.Estimate(d)
		box = append(box, bounds.FromEstimate(e.Min, e.Extent))
	}
	return box
}

func pureScopeFromBox(f *ir.Function, box bounds.Box) bounds.DimBounds {
	scope := make(bounds.DimBounds)
	dims := f.Args()
	for i, d := range dims {
		if i < len(box) {
			scope[d] = box[i]
		}
	}
	return scope
}

// OverlapRegions reports the area shared between two boxes of equal rank —
// the basis of the partitioner's per-stage reuse estimate (spec.md §4.3:
// "bytes saved by fusing is proportional to the overlap between what each
// group member separately would have required").
func OverlapRegions(a, b bounds.Box) bounds.Extent {
	if len(a) != len(b) {
		return bounds.UnknownExtent
	}
	overlap := bounds.IntersectBox(a, b)
	area, ok := overlap.Area()
	if !ok {
		return bounds.UnknownExtent
	}
	return bounds.KnownExtent(area)
}

// SortedCallees returns the callee names of m in deterministic order —
// every iteration over a RegionsRequired/FunctionRegionsRequired result that
// is externally observable must go through this (spec.md §5).
func SortedCallees(m map[string]bounds.Box) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
