// Package bounds holds the shared data model of spec.md §3: symbolic
// Interval/Box arithmetic, DimBounds scopes, and the FStage stage
// identifier used as a map key throughout the dependence analysis and
// partitioner.
package bounds

import "github.com/bilbil/haloschedule/pkg/ir"

// Interval is an ordered pair (min, max) of symbolic expressions. Per
// spec.md §3, its extent is max-min+1 when both ends are integer literals,
// otherwise "unknown".
type Interval struct {
	Min, Max ir.Expr
}

// Lit builds a literal interval [lo, hi].
func Lit(lo, hi int64) Interval {
	return Interval{Min: ir.Int64(lo), Max: ir.Int64(hi)}
}

// FromEstimate builds the interval [min, min+extent-1] for a literal
// (min, extent) estimate.
func FromEstimate(min, extent int64) Interval {
	return Lit(min, min+extent-1)
}

// Extent returns max-min+1 and true if both endpoints are literal, else
// (0, false) ("unknown", per spec.md's convention).
func (iv Interval) Extent() (int64, bool) {
	lo, lok := ir.IsLiteral(iv.Min)
	hi, hok := ir.IsLiteral(iv.Max)
	if !lok || !hok {
		return 0, false
	}
	return hi - lo + 1, true
}

// Known reports whether both endpoints are literal.
func (iv Interval) Known() bool {
	_, ok := iv.Extent()
	return ok
}

// Hull returns the per-dimension union (smallest interval containing both).
func Hull(a, b Interval) Interval {
	alo, aok := ir.IsLiteral(a.Min)
	blo, bok := ir.IsLiteral(b.Min)
	var minExpr ir.Expr
	if aok && bok {
		if alo < blo {
			minExpr = a.Min
		} else {
			minExpr = b.Min
		}
	} else {
		minExpr = a.Min // non-literal: keep the first side's symbolic form
	}

	ahi, aok2 := ir.IsLiteral(a.Max)
	bhi, bok2 := ir.IsLiteral(b.Max)
	var maxExpr ir.Expr
	if aok2 && bok2 {
		if ahi > bhi {
			maxExpr = a.Max
		} else {
			maxExpr = b.Max
		}
	} else {
		maxExpr = a.Max
	}
	return Interval{Min: minExpr, Max: maxExpr}
}

// Intersect returns the per-dimension intersection of two known intervals.
// Behavior is only meaningful when both intervals are literal; callers must
// check Known() first for non-literal operands.
func Intersect(a, b Interval) Interval {
	alo, _ := ir.IsLiteral(a.Min)
	blo, _ := ir.IsLiteral(b.Min)
	ahi, _ := ir.IsLiteral(a.Max)
	bhi, _ := ir.IsLiteral(b.Max)
	lo := alo
	if blo > lo {
		lo = blo
	}
	hi := ahi
	if bhi < hi {
		hi = bhi
	}
	return Lit(lo, hi)
}

