// Package dependence implements spec.md §4.2's DependenceAnalysis component:
// symbolic bounds inference (BoxesRequired), per-stage and per-function
// region-required computation, and the redundant/overlap region arithmetic
// the partitioner's reuse estimate depends on.
//
// The walk is over symbolic ir.Expr argument expressions rather than
// concrete shapes, since a pipeline's bounds are only known once substituted
// against a calling scope (spec.md §3's Interval/DimBounds).
package dependence

import (
	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/internal/schederr"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// BoxesRequired computes the box of argument values a Call to fn needs,
// given the scope (DimBounds) the call's arguments are evaluated in. It
// returns one Interval per argument position of the call, in the order args
// appears — callers combine this across all calls to the same callee with
// bounds.HullBox to get that callee's total region-required box.
func BoxesRequired(args []ir.Expr, scope bounds.DimBounds) bounds.Box {
	box := make(bounds.Box, len(args))
	for i, a := range args {
		box[i] = bounds.Interval{
			Min: boundExpr(a, scope, false),
			Max: boundExpr(a, scope, true),
		}
	}
	return box
}

// boundExpr substitutes each Var in e with its scope interval's Min or Max
// endpoint — whichever endpoint yields e's own maximum (wantMax=true) or
// minimum (wantMax=false) value — then simplifies. Monotonicity decisions
// are made by operandWantMax; operators without a known
// monotone sense (Mul, Div, Mod) are treated as increasing in both operands,
// which holds for this pipeline's image-coordinate domain (non-negative
// indices, positive strides) per spec.md §3's worked examples.
func boundExpr(e ir.Expr, scope bounds.DimBounds, wantMax bool) ir.Expr {
	switch n := e.(type) {
	case *ir.IntImm, *ir.UIntImm, *ir.FloatImm, *ir.StringImm:
		return e

	case *ir.Var:
		iv, ok := scope[n.Name]
		if !ok {
			// Free variable with no scope entry: can't bound it, treat as
			// opaque (neither literal endpoint available downstream).
			return e
		}
		if wantMax {
			return iv.Max
		}
		return iv.Min

	case *ir.Cast:
		return &ir.Cast{Value: boundExpr(n.Value, scope, wantMax), To: n.To}

	case *ir.BinOp:
		return boundBinOp(n, scope, wantMax)

	case *ir.Not:
		// Boolean negation has no numeric monotone sense; leave the operand
		// endpoint choice as given (neither direction dominates).
		return &ir.Not{X: boundExpr(n.X, scope, wantMax)}

	case *ir.Select:
		// Conservative: hull of both branches' requested endpoint. The
		// caller (BoxesRequired) only reads literal-or-not via
		// ir.Simplify/IsLiteral, so returning a BMax/BMin wrapper here is
		// sufficient to let the hull collapse when both branches agree.
		t := boundExpr(n.T, scope, wantMax)
		f := boundExpr(n.F, scope, wantMax)
		if wantMax {
			return ir.Simplify(ir.BinExpr(ir.BMax, t, f))
		}
		return ir.Simplify(ir.BinExpr(ir.BMin, t, f))

	case *ir.Let:
		inner := scope.Overlay(n.Name, bounds.Interval{
			Min: boundExpr(n.Value, scope, false),
			Max: boundExpr(n.Value, scope, true),
		})
		return boundExpr(n.Body, inner, wantMax)

	case *ir.Call:
		// Nested call bounds aren't tracked transitively here: the region
		// this call requires of n is handled by the caller walking n's own
		// definition separately (RegionsRequired). As an operand inside
		// another expression, a call result is opaque.
		return e

	default:
		schederr.Abort("dependence: BoxesRequired reached non-value IR node %T", e)
		return nil // unreachable
	}
}

func boundBinOp(n *ir.BinOp, scope bounds.DimBounds, wantMax bool) ir.Expr {
	aWant, bWant := operandWantMax(n.Op, wantMax)
	a := boundExpr(n.A, scope, aWant)
	b := boundExpr(n.B, scope, bWant)
	return ir.Simplify(&ir.BinOp{Op: n.Op, A: a, B: b})
}

// operandWantMax resolves which endpoint of each operand yields the
// requested endpoint of the whole BinOp.
func operandWantMax(op ir.BinOpKind, wantMax bool) (aWant, bWant bool) {
	switch op {
	case ir.Add, ir.Mul, ir.BMax, ir.BMin:
		return wantMax, wantMax
	case ir.Sub:
		return wantMax, !wantMax
	case ir.Div, ir.Mod:
		// Divisor is assumed positive; increasing in the dividend (A),
		// decreasing influence from an increasing divisor is ignored here
		// since tile/stride divisors in this pipeline's schedules are
		// always literal constants, not scope-bound variables.
		return wantMax, wantMax
	default:
		// Comparisons/logical ops: result isn't a coordinate, bound both
		// operands toward the same endpoint arbitrarily — CostVisitor never
		// asks BoxesRequired to descend into a boolean-typed subexpression
		// in practice (Select conditions are handled separately above).
		return wantMax, wantMax
	}
}
