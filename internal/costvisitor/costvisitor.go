// Package costvisitor implements spec.md §4.1's CostVisitor: a single-pass
// walk of an IR expression that yields (arith_ops, bytes_loaded) for one
// point of evaluation, structured as a type switch over pkg/ir's
// tagged-variant Expr.
package costvisitor

import (
	"github.com/bilbil/haloschedule/internal/schederr"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// externPenalty makes fusing opaque extern stages across group boundaries
// unattractive to the partitioner's benefit search (spec.md §4.1).
const externPenalty = 999

// Walk returns the additive (arith_ops, bytes_loaded) cost of evaluating e
// once. Reaching a Load/Store/For/Allocate/Realize node is a contract
// violation: those only exist in lowered loop bodies, which this
// pre-lowering cost pass never walks (spec.md §4.1, §7 kind 3).
func Walk(e ir.Expr) (arithOps, bytesLoaded int64) {
	switch n := e.(type) {
	case *ir.IntImm, *ir.UIntImm, *ir.FloatImm, *ir.StringImm, *ir.Var:
		return 0, 0

	case *ir.Cast:
		a, b := Walk(n.Value)
		return a + 1, b

	case *ir.BinOp:
		a1, b1 := Walk(n.A)
		a2, b2 := Walk(n.B)
		return a1 + a2 + 1, b1 + b2

	case *ir.Not:
		a, b := Walk(n.X)
		return a + 1, b

	case *ir.Select:
		ac, bc := Walk(n.Cond)
		at, bt := Walk(n.T)
		af, bf := Walk(n.F)
		return ac + at + af + 1, bc + bt + bf

	case *ir.Let:
		av, bv := Walk(n.Value)
		abody, bbody := Walk(n.Body)
		return av + abody, bv + bbody

	case *ir.Call:
		return walkCall(n)

	case *ir.Load, *ir.Store, *ir.For, *ir.Allocate, *ir.Realize:
		schederr.Abort("costvisitor: reached pre-lowering-only node %T", e)
		return 0, 0

	default:
		schederr.Abort("costvisitor: unhandled expression node %T", e)
		return 0, 0
	}
}

func walkCall(n *ir.Call) (arithOps, bytesLoaded int64) {
	var selfArith, selfBytes int64
	switch n.Kind {
	case ir.CallPipelineFunc, ir.CallExternImage:
		selfBytes = n.Ty.ByteWidth()
	case ir.CallExtern:
		selfArith = externPenalty
	case ir.CallIntrinsic:
		selfArith = 1
	default:
		schederr.Abort("costvisitor: unknown call kind %d", n.Kind)
	}
	for _, arg := range n.Args {
		a, b := Walk(arg)
		selfArith += a
		selfBytes += b
	}
	return selfArith, selfBytes
}
