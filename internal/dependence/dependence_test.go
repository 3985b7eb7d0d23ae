package dependence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilbil/haloschedule/internal/bounds"
	"github.com/bilbil/haloschedule/pkg/ir"
)

func TestBoxesRequired_IdentityAndOffset(t *testing.T) {
	scope := bounds.DimBounds{
		"x": bounds.Lit(0, 99),
		"y": bounds.Lit(0, 49),
	}
	// args: x, y+1
	args := []ir.Expr{
		ir.NewVar("x"),
		ir.BinExpr(ir.Add, ir.NewVar("y"), ir.Int64(1)),
	}
	box := BoxesRequired(args, scope)
	require.Len(t, box, 2)

	e0, ok := box[0].Extent()
	require.True(t, ok)
	assert.Equal(t, int64(100), e0)

	lo, ok := ir.IsLiteral(box[1].Min)
	require.True(t, ok)
	assert.Equal(t, int64(1), lo)
	hi, ok := ir.IsLiteral(box[1].Max)
	require.True(t, ok)
	assert.Equal(t, int64(50), hi)
}

func TestBoxesRequired_StencilWidens(t *testing.T) {
	scope := bounds.DimBounds{"x": bounds.Lit(0, 9)}
	// blur stencil: x-1 .. x+1
	argMin := ir.BinExpr(ir.Sub, ir.NewVar("x"), ir.Int64(1))
	box := BoxesRequired([]ir.Expr{argMin}, scope)
	lo, ok := ir.IsLiteral(box[0].Min)
	require.True(t, ok)
	assert.Equal(t, int64(-1), lo)
	hi, ok := ir.IsLiteral(box[0].Max)
	require.True(t, ok)
	assert.Equal(t, int64(8), hi)
}

func TestRegionsRequired_HullsCallsToSameCallee(t *testing.T) {
	in := ir.NewFunction("in", []string{"x", "y"}, nil, []ir.Type{ir.Int32})
	blur := ir.NewFunction("blur", []string{"x", "y"}, []ir.Expr{
		ir.BinExpr(ir.Add,
			&ir.Call{Kind: ir.CallPipelineFunc, Name: "in", Args: []ir.Expr{
				ir.NewVar("x"), ir.NewVar("y"),
			}, Ty: ir.Int32},
			&ir.Call{Kind: ir.CallPipelineFunc, Name: "in", Args: []ir.Expr{
				ir.BinExpr(ir.Add, ir.NewVar("x"), ir.Int64(1)), ir.NewVar("y"),
			}, Ty: ir.Int32},
		),
	}, []ir.Type{ir.Int32})

	scope := bounds.DimBounds{"x": bounds.Lit(0, 9), "y": bounds.Lit(0, 9)}
	regions := RegionsRequired(blur.Stage(0), scope)
	require.Contains(t, regions, "in")
	box := regions["in"]
	require.Len(t, box, 2)
	e, ok := box[0].Extent()
	require.True(t, ok)
	assert.Equal(t, int64(11), e) // x .. x+1 over [0,9] -> [0,10]

	_ = in
}

func TestGetPipelineBounds_ChainPropagatesEstimate(t *testing.T) {
	in := ir.NewFunction("in", []string{"x", "y"}, nil, []ir.Type{ir.Int32})
	blur := ir.NewFunction("blur", []string{"x", "y"}, []ir.Expr{
		&ir.Call{Kind: ir.CallPipelineFunc, Name: "in", Args: []ir.Expr{
			ir.BinExpr(ir.Add, ir.NewVar("x"), ir.Int64(1)), ir.NewVar("y"),
		}, Ty: ir.Int32},
	}, []ir.Type{ir.Int32})
	blur.SetEstimate("x", 0, 100)
	blur.SetEstimate("y", 0, 100)

	env := ir.NewEnvironment(in, blur)
	required := GetPipelineBounds([]*ir.Function{blur}, env)

	require.Contains(t, required, "in")
	box := required["in"]
	e0, ok := box[0].Extent()
	require.True(t, ok)
	assert.Equal(t, int64(100), e0)
}

func TestOverlapRegions(t *testing.T) {
	a := bounds.Box{bounds.Lit(0, 9)}
	b := bounds.Box{bounds.Lit(5, 14)}
	extent := OverlapRegions(a, b)
	require.True(t, extent.Known)
	assert.Equal(t, int64(5), extent.Value)

	assert.False(t, OverlapRegions(a, bounds.Box{}).Known)
}

func TestSortedCallees_Deterministic(t *testing.T) {
	m := map[string]bounds.Box{"zeta": nil, "alpha": nil, "mid": nil}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, SortedCallees(m))
}
