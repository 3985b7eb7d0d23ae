package scheduleemitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/internal/config"
	"github.com/bilbil/haloschedule/internal/partitioner"
	"github.com/bilbil/haloschedule/pkg/ir"
)

func buildPointwise() (fn *ir.Function, env *ir.Environment) {
	fn = ir.NewFunction("Out", []string{"x", "y"}, []ir.Expr{
		ir.BinExpr(ir.Mul,
			&ir.Call{Kind: ir.CallExternImage, Name: "I", Args: []ir.Expr{ir.NewVar("x"), ir.NewVar("y")}, Ty: ir.Int32},
			ir.Int64(2)),
	}, []ir.Type{ir.Int32})
	fn.SetEstimate("x", 0, 256)
	fn.SetEstimate("y", 0, 256)
	env = ir.NewEnvironment(fn)
	return
}

func pureGroup(fn *ir.Function, tileSizes map[string]int) *partitioner.Group {
	g := &partitioner.Group{
		Output:    bounds.FStage{Func: fn.Name(), Num: 0},
		Members:   []bounds.FStage{{Func: fn.Name(), Num: 0}},
		Inlined:   map[string]bool{},
		TileSizes: tileSizes,
		Reuse:     map[string]bounds.Extent{},
	}
	return g
}

func TestEmit_UntiledOutputComputesRootAndVectorizes(t *testing.T) {
	fn, env := buildPointwise()
	g := pureGroup(fn, map[string]int{})
	lines := Emit([]*partitioner.Group{g}, env, config.Default())

	assert.Contains(t, lines, "Out: compute_root")
	sched := fn.Schedule()
	assert.True(t, sched.ComputeRootCalled)
	assert.NotEmpty(t, sched.VectorizeDim)
	assert.Equal(t, 8, sched.VectorizeFactor) // vec_len=8, Int32 is 4 bytes -> 8 lanes

	// An untiled pure dim is still a single whole loop, not a discarded
	// inner half, so it remains a parallel candidate (spec.md §8 scenario
	// 1's single pointwise output expects F.parallel(y) even though the
	// pipeline was never tiled).
	foundParallel := false
	for _, l := range lines {
		if l == "Out: parallel(y)" {
			foundParallel = true
		}
	}
	assert.True(t, foundParallel, "expected a parallel(y) line, got: %v", lines)
}

func TestEmit_TiledDimsSplitAndReorder(t *testing.T) {
	fn, env := buildPointwise()
	g := pureGroup(fn, map[string]int{"x": 32, "y": 16})
	lines := Emit([]*partitioner.Group{g}, env, config.Default())

	sched := fn.Schedule()
	require.Len(t, sched.Splits, 3) // x, y tile splits + the vectorize split on x_i
	assert.NotEmpty(t, sched.ReorderOrder)

	foundJoined := false
	for _, l := range lines {
		if l == "Out: compute_root" {
			foundJoined = true
		}
	}
	assert.True(t, foundJoined)
}

func TestEmit_InlinedFunctionNeverGetsComputeRoot(t *testing.T) {
	p, _, env := buildChainWithConsumer()
	inlined := &partitioner.Group{
		Output:    bounds.FStage{Func: "C", Num: 0},
		Members:   []bounds.FStage{{Func: "P", Num: 0}, {Func: "C", Num: 0}},
		Inlined:   map[string]bool{"P": true},
		TileSizes: map[string]int{},
		Reuse:     map[string]bounds.Extent{},
	}
	Emit([]*partitioner.Group{inlined}, env, config.Default())

	assert.True(t, p.Schedule().InlineCalled)
	assert.False(t, p.Schedule().ComputeRootCalled)
}

func TestEmit_ParallelismWarningWhenTargetUnreachable(t *testing.T) {
	fn, env := buildPointwise()
	fn.SetEstimate("x", 0, 2)
	fn.SetEstimate("y", 0, 2)
	g := pureGroup(fn, map[string]int{})
	target := config.Machine{Parallelism: 1000, VecLen: 8, FastMemSize: 1024, Balance: 10}
	lines := Emit([]*partitioner.Group{g}, env, target)

	// Both dims are untiled, so both remain parallel candidates (x extent 2,
	// y extent 2): walking outer-to-inner (y then x) parallelizes both,
	// reaching a product of 4 without ever hitting the target of 1000.
	found := false
	for _, l := range lines {
		if l == "Out: warning: parallelism target 1000 not met (achieved 4)" {
			found = true
		}
	}
	assert.True(t, found, "expected a parallelism warning line, got: %v", lines)
}

func TestEmit_UpdateStageOutputGetsComputeRootOnPureSchedule(t *testing.T) {
	in := ir.NewFunction("I", []string{"x"}, nil, []ir.Type{ir.Int32})
	r := ir.NewFunction("R", []string{"x"}, []ir.Expr{ir.Int64(0)}, []ir.Type{ir.Int32})
	r.SetEstimate("x", 0, 64)
	r.AddUpdate(
		[]ir.Expr{ir.BinExpr(ir.Add,
			&ir.Call{Kind: ir.CallPipelineFunc, Name: "R", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Int32},
			&ir.Call{Kind: ir.CallExternImage, Name: "I", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Int32},
		)},
		[]ir.Expr{ir.NewVar("x")},
		[]string{"x"},
		nil,
	)
	env := ir.NewEnvironment(in, r)

	g := &partitioner.Group{
		Output:    bounds.FStage{Func: "R", Num: 1},
		Members:   []bounds.FStage{{Func: "R", Num: 0}, {Func: "R", Num: 1}},
		Inlined:   map[string]bool{},
		TileSizes: map[string]int{},
		Reuse:     map[string]bounds.Extent{},
	}
	lines := Emit([]*partitioner.Group{g}, env, config.Default())

	assert.Contains(t, lines, "R: compute_root")
	assert.True(t, r.Schedule().ComputeRootCalled, "compute_root must be recorded on the pure schedule even when the group's output is a later update stage")
}

func buildChainWithConsumer() (p, c *ir.Function, env *ir.Environment) {
	p = ir.NewFunction("P", []string{"x"}, []ir.Expr{
		ir.BinExpr(ir.Mul,
			&ir.Call{Kind: ir.CallExternImage, Name: "I", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Int32},
			ir.Int64(2)),
	}, []ir.Type{ir.Int32})

	c = ir.NewFunction("C", []string{"x"}, []ir.Expr{
		&ir.Call{Kind: ir.CallPipelineFunc, Name: "P", Args: []ir.Expr{ir.NewVar("x")}, Ty: ir.Int32},
	}, []ir.Type{ir.Int32})
	c.SetEstimate("x", 0, 100)

	env = ir.NewEnvironment(p, c)
	return
}
