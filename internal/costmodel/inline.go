package costmodel

import "github.com/bilbil/haloschedule/pkg/ir"

// PerformInline iteratively substitutes calls into any function named in
// inlines that is pure, using the function's pure definition, until a fixed
// point (spec.md §4.2). Reduction stages are never inlined — inlines only
// ever names pure functions by construction (the partitioner never adds a
// non-pure function's name to a group's inlined set).
//
// Each substituted call becomes a chain of Let bindings (one per pure
// argument), which costvisitor.Walk already prices at zero binding cost plus
// the value and body costs — exactly the "let-folding is the simplifier's
// job" rule spec.md §4.1 describes, so no separate substitution-cost
// bookkeeping is needed here.
func PerformInline(e ir.Expr, inlines map[string]bool, env *ir.Environment) ir.Expr {
	for {
		next, changed := inlineOnce(e, inlines, env)
		if !changed {
			return next
		}
		e = next
	}
}

func inlineOnce(e ir.Expr, inlines map[string]bool, env *ir.Environment) (ir.Expr, bool) {
	switch n := e.(type) {
	case *ir.IntImm, *ir.UIntImm, *ir.FloatImm, *ir.StringImm, *ir.Var:
		return e, false

	case *ir.Cast:
		v, ch := inlineOnce(n.Value, inlines, env)
		return &ir.Cast{Value: v, To: n.To}, ch

	case *ir.BinOp:
		a, ca := inlineOnce(n.A, inlines, env)
		b, cb := inlineOnce(n.B, inlines, env)
		return &ir.BinOp{Op: n.Op, A: a, B: b}, ca || cb

	case *ir.Not:
		x, ch := inlineOnce(n.X, inlines, env)
		return &ir.Not{X: x}, ch

	case *ir.Select:
		cond, c1 := inlineOnce(n.Cond, inlines, env)
		t, c2 := inlineOnce(n.T, inlines, env)
		f, c3 := inlineOnce(n.F, inlines, env)
		return &ir.Select{Cond: cond, T: t, F: f}, c1 || c2 || c3

	case *ir.Let:
		val, c1 := inlineOnce(n.Value, inlines, env)
		body, c2 := inlineOnce(n.Body, inlines, env)
		return &ir.Let{Name: n.Name, Value: val, Body: body}, c1 || c2

	case *ir.Call:
		return inlineCall(n, inlines, env)

	default:
		return e, false
	}
}

func inlineCall(n *ir.Call, inlines map[string]bool, env *ir.Environment) (ir.Expr, bool) {
	args := make([]ir.Expr, len(n.Args))
	changed := false
	for i, a := range n.Args {
		inlined, ch := inlineOnce(a, inlines, env)
		args[i] = inlined
		changed = changed || ch
	}

	if n.Kind != ir.CallPipelineFunc || !inlines[n.Name] {
		return &ir.Call{Kind: n.Kind, Name: n.Name, Args: args, Ty: n.Ty}, changed
	}
	target, ok := env.Lookup(n.Name)
	if !ok || !target.IsPure() || len(target.Values()) == 0 {
		return &ir.Call{Kind: n.Kind, Name: n.Name, Args: args, Ty: n.Ty}, changed
	}

	// This host IR does not model multi-component tuple-call selection, so
	// every Call site is treated as referring to the function's sole value
	// expression (index 0) — the only shape any of this pipeline's test
	// pipelines actually construct.
	body := target.Values()[0]
	for i := len(target.Args()) - 1; i >= 0; i-- {
		body = &ir.Let{Name: target.Args()[i], Value: args[i], Body: body}
	}
	return body, true
}
