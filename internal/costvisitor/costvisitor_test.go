package costvisitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bilbil/haloschedule/pkg/ir"
)

func TestWalk_LiteralsAndVars(t *testing.T) {
	a, b := Walk(ir.Int64(5))
	assert.Zero(t, a)
	assert.Zero(t, b)

	a, b = Walk(ir.NewVar("x"))
	assert.Zero(t, a)
	assert.Zero(t, b)
}

func TestWalk_BinOpRecurses(t *testing.T) {
	// (x + 1) * y -> two BinOps, zero-cost leaves => arith 2, bytes 0
	e := ir.BinExpr(ir.Mul, ir.BinExpr(ir.Add, ir.NewVar("x"), ir.Int64(1)), ir.NewVar("y"))
	a, b := Walk(e)
	assert.Equal(t, int64(2), a)
	assert.Zero(t, b)
}

func TestWalk_CastAddsOne(t *testing.T) {
	e := &ir.Cast{Value: ir.NewVar("x"), To: ir.Float32}
	a, _ := Walk(e)
	assert.Equal(t, int64(1), a)
}

func TestWalk_CallPipelineFuncAddsBytes(t *testing.T) {
	e := &ir.Call{Kind: ir.CallPipelineFunc, Name: "P", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Int32}
	a, b := Walk(e)
	assert.Zero(t, a)
	assert.Equal(t, int64(4), b)
}

func TestWalk_CallExternPenalty(t *testing.T) {
	e := &ir.Call{Kind: ir.CallExtern, Name: "blackbox", Ty: ir.Int32}
	a, _ := Walk(e)
	assert.Equal(t, int64(externPenalty), a)
}

func TestWalk_CallIntrinsicAddsOne(t *testing.T) {
	e := &ir.Call{Kind: ir.CallIntrinsic, Name: "sqrt", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Float32}
	a, _ := Walk(e)
	assert.Equal(t, int64(1), a)
}

func TestWalk_SelectSumsAllThreeChildren(t *testing.T) {
	e := &ir.Select{
		Cond: ir.BinExpr(ir.LT, ir.NewVar("x"), ir.Int64(0)),
		T:    ir.Int64(0),
		F:    ir.NewVar("x"),
	}
	a, _ := Walk(e)
	// Cond is one BinOp (1) + Select itself (1) = 2
	assert.Equal(t, int64(2), a)
}

func TestWalk_LoadPanicsContractViolation(t *testing.T) {
	assert.Panics(t, func() { Walk(&ir.Load{Buffer: "buf"}) })
}

func TestWalk_ForPanicsContractViolation(t *testing.T) {
	assert.Panics(t, func() {
		Walk(&ir.For{Var: "x", Min: ir.Int64(0), Extent: ir.Int64(10), Body: ir.Int64(0)})
	})
}
