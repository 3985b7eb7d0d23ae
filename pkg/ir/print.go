package ir

import "fmt"

// exprString renders e as a compact debug string. Used by the simplifier's
// fixpoint check and by diagnostics; not meant for round-tripping.
func exprString(e Expr) string {
	switch n := e.(type) {
	case *IntImm:
		return fmt.Sprintf("%d", n.Value)
	case *UIntImm:
		return fmt.Sprintf("%du", n.Value)
	case *FloatImm:
		return fmt.Sprintf("%g", n.Value)
	case *StringImm:
		return fmt.Sprintf("%q", n.Value)
	case *Var:
		return n.Name
	case *Cast:
		return fmt.Sprintf("cast<%s>(%s)", n.To, exprString(n.Value))
	case *BinOp:
		return fmt.Sprintf("(%s %s %s)", exprString(n.A), n.Op, exprString(n.B))
	case *Not:
		return fmt.Sprintf("!(%s)", exprString(n.X))
	case *Select:
		return fmt.Sprintf("select(%s, %s, %s)", exprString(n.Cond), exprString(n.T), exprString(n.F))
	case *Let:
		return fmt.Sprintf("let %s = %s in %s", n.Name, exprString(n.Value), exprString(n.Body))
	case *Call:
		args := ""
		for i, a := range n.Args {
			if i > 0 {
				args += ", "
			}
			args += exprString(a)
		}
		return fmt.Sprintf("%s(%s)", n.Name, args)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", e)
	}
}

// String renders e for external diagnostics (CLI, logging).
func String(e Expr) string { return exprString(e) }
