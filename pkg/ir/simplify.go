package ir

// Simplify folds constant arithmetic, trivial lets, and constant selects,
// to a fixed point. It is the stand-in for spec.md's external "symbolic
// simplifier `simplify(expr) -> expr`" (collaborator (ii)); bounds inference
// depends on it to recognize when an endpoint has reduced to a literal.
func Simplify(e Expr) Expr {
	for {
		next := simplifyOnce(e)
		if sameExpr(next, e) {
			return next
		}
		e = next
	}
}

// IsLiteral reports whether e simplifies to an integer literal, and returns
// its value.
func IsLiteral(e Expr) (int64, bool) {
	s := Simplify(e)
	if n, ok := s.(*IntImm); ok {
		return n.Value, true
	}
	return 0, false
}

func simplifyOnce(e Expr) Expr {
	switch n := e.(type) {
	case *IntImm, *UIntImm, *FloatImm, *StringImm, *Var:
		return e
	case *Cast:
		v := simplifyOnce(n.Value)
		if lit, ok := v.(*IntImm); ok {
			return &IntImm{Value: lit.Value}
		}
		return &Cast{Value: v, To: n.To}
	case *BinOp:
		a := simplifyOnce(n.A)
		b := simplifyOnce(n.B)
		if av, aok := a.(*IntImm); aok {
			if bv, bok := b.(*IntImm); bok {
				if folded, ok := foldBinOp(n.Op, av.Value, bv.Value); ok {
					return &IntImm{Value: folded}
				}
			}
		}
		return &BinOp{Op: n.Op, A: a, B: b}
	case *Not:
		x := simplifyOnce(n.X)
		if v, ok := x.(*IntImm); ok {
			if v.Value == 0 {
				return &IntImm{Value: 1}
			}
			return &IntImm{Value: 0}
		}
		return &Not{X: x}
	case *Select:
		cond := simplifyOnce(n.Cond)
		t := simplifyOnce(n.T)
		f := simplifyOnce(n.F)
		if v, ok := cond.(*IntImm); ok {
			if v.Value != 0 {
				return t
			}
			return f
		}
		return &Select{Cond: cond, T: t, F: f}
	case *Let:
		val := simplifyOnce(n.Value)
		if _, ok := val.(*IntImm); ok {
			return simplifyOnce(substitute(n.Body, n.Name, val))
		}
		if _, ok := val.(*Var); ok {
			return simplifyOnce(substitute(n.Body, n.Name, val))
		}
		return &Let{Name: n.Name, Value: val, Body: simplifyOnce(n.Body)}
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = simplifyOnce(a)
		}
		return &Call{Kind: n.Kind, Name: n.Name, Args: args, Ty: n.Ty}
	default:
		// Load/Store/For/Allocate/Realize are not valid in value expressions;
		// left untouched here, CostVisitor is the enforcement point.
		return e
	}
}

func foldBinOp(op BinOpKind, a, b int64) (int64, bool) {
	switch op {
	case Add:
		return a + b, true
	case Sub:
		return a - b, true
	case Mul:
		return a * b, true
	case Div:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case Mod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case BMin:
		if a < b {
			return a, true
		}
		return b, true
	case BMax:
		if a > b {
			return a, true
		}
		return b, true
	case EQ:
		return boolInt(a == b), true
	case NE:
		return boolInt(a != b), true
	case LT:
		return boolInt(a < b), true
	case LE:
		return boolInt(a <= b), true
	case GT:
		return boolInt(a > b), true
	case GE:
		return boolInt(a >= b), true
	case LAnd:
		return boolInt(a != 0 && b != 0), true
	case LOr:
		return boolInt(a != 0 || b != 0), true
	default:
		return 0, false
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// substitute replaces every free occurrence of Var(name) in e with val.
func substitute(e Expr, name string, val Expr) Expr {
	switch n := e.(type) {
	case *Var:
		if n.Name == name {
			return val
		}
		return n
	case *IntImm, *UIntImm, *FloatImm, *StringImm:
		return n
	case *Cast:
		return &Cast{Value: substitute(n.Value, name, val), To: n.To}
	case *BinOp:
		return &BinOp{Op: n.Op, A: substitute(n.A, name, val), B: substitute(n.B, name, val)}
	case *Not:
		return &Not{X: substitute(n.X, name, val)}
	case *Select:
		return &Select{
			Cond: substitute(n.Cond, name, val),
			T:    substitute(n.T, name, val),
			F:    substitute(n.F, name, val),
		}
	case *Let:
		if n.Name == name {
			return &Let{Name: n.Name, Value: substitute(n.Value, name, val), Body: n.Body}
		}
		return &Let{Name: n.Name, Value: substitute(n.Value, name, val), Body: substitute(n.Body, name, val)}
	case *Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substitute(a, name, val)
		}
		return &Call{Kind: n.Kind, Name: n.Name, Args: args, Ty: n.Ty}
	default:
		return e
	}
}

func sameExpr(a, b Expr) bool {
	av, aok := a.(*IntImm)
	bv, bok := b.(*IntImm)
	if aok && bok {
		return av.Value == bv.Value
	}
	if aok != bok {
		return false
	}
	if av2, ok := a.(*Var); ok {
		if bv2, ok2 := b.(*Var); ok2 {
			return av2.Name == bv2.Name
		}
		return false
	}
	// Conservative structural-equality fallback for the fixed-point loop:
	// compare printed forms. This keeps simplifyOnce's fixpoint detection
	// correct without a full deep-equality visitor.
	return exprString(a) == exprString(b)
}
