// Package costmodel implements spec.md §4.2's CostModel: per-function point
// costs, the pure-function inlining rewrite, and region/working-set cost
// aggregation over DependenceAnalysis's boxes. Per-op cost comes from
// costvisitor.Walk; the aggregation is keyed by FStage/box rather than
// concrete tensor shapes so it stays valid across the whole symbolic
// bounds-inference pass.
package costmodel

import (
	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/internal/costvisitor"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// FuncCost is func_cost[f]: one point-cost element per stage (index 0 =
// pure definition, index k = update k).
type FuncCost map[string][]bounds.Cost

// Of returns func_cost[f][k], or Unknown if out of range.
func (fc FuncCost) Of(funcName string, stage int) bounds.Cost {
	stages, ok := fc[funcName]
	if !ok || stage < 0 || stage >= len(stages) {
		return bounds.UnknownCost
	}
	return stages[stage]
}

// Build computes func_cost for every function in env, once, up front.
// Element 0 sums costvisitor.Walk over every tuple component of the pure
// definition's values; element k (k>=1) sums over update-k's values AND its
// argument expressions (spec.md §4.2: "reduction-domain index arithmetic
// counts").
func Build(env *ir.Environment) FuncCost {
	fc := make(FuncCost, len(env.All()))
	for _, f := range env.All() {
		stages := make([]bounds.Cost, f.LastStage()+1)
		stages[0] = sumCost(f.Values())
		for k, u := range f.Updates() {
			c := sumCost(u.Values())
			c = c.Add(sumCost(u.Args()))
			stages[k+1] = c
		}
		fc[f.Name()] = stages
	}
	return fc
}

func sumCost(exprs []ir.Expr) bounds.Cost {
	var arith, mem int64
	for _, e := range exprs {
		a, b := costvisitor.Walk(e)
		arith += a
		mem += b
	}
	return bounds.KnownCost(arith, mem)
}
