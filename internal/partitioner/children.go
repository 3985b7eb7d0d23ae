package partitioner

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// buildChildren computes the "(f,k) -> consumers" adjacency spec.md §4.4
// describes: a consumer is any stage whose definition body contains a call
// to a pipeline function g; the edge always targets g's *last* stage
// (reading a function reads its final state). Intra-function chain edges
// (f,k-1) -> (f,k) are included too, but the partitioner pre-merges those
// immediately at construction (see partitioner.go), so by the time the
// benefit-driven grouping loop runs they never cross a group boundary.
func buildChildren(env *ir.Environment) map[bounds.FStage]map[bounds.FStage]bool {
	children := make(map[bounds.FStage]map[bounds.FStage]bool)
	add := func(producer, consumer bounds.FStage) {
		if children[producer] == nil {
			children[producer] = make(map[bounds.FStage]bool)
		}
		children[producer][consumer] = true
	}

	for _, f := range env.All() {
		for k := 0; k <= f.LastStage(); k++ {
			stage := f.Stage(k)
			self := bounds.FStage{Func: f.Name(), Num: k}
			for _, g := range calledFuncs(stage, env) {
				add(bounds.FStage{Func: g.Name(), Num: g.LastStage()}, self)
			}
			if k > 0 {
				add(bounds.FStage{Func: f.Name(), Num: k - 1}, self)
			}
		}
	}
	return children
}

func calledFuncs(stage *ir.Stage, env *ir.Environment) []*ir.Function {
	seen := make(map[string]bool)
	var names []string
	var walk func(e ir.Expr)
	walk = func(e ir.Expr) {
		switch n := e.(type) {
		case *ir.Call:
			if n.Kind == ir.CallPipelineFunc {
				if _, ok := env.Lookup(n.Name); ok && !seen[n.Name] {
					seen[n.Name] = true
					names = append(names, n.Name)
				}
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
	for _, a := range stage.ArgExprs() {
		walk(a)
	}
	sort.Strings(names)
	out := make([]*ir.Function, len(names))
	for i, n := range names {
		out[i], _ = env.Lookup(n)
	}
	return out
}

// sortedEdges returns the consumer stages of producer in deterministic
// order.
func sortedEdges(children map[bounds.FStage]map[bounds.FStage]bool, producer bounds.FStage) []bounds.FStage {
	set := children[producer]
	out := make([]bounds.FStage, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
