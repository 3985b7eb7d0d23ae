// Package pipelineio reads a pipeline description from JSON into the
// internal ir.Function/ir.Environment graph the rest of the auto-scheduler
// operates on: a flat JSON document unmarshaled into a wire struct, then
// translated field-by-field into the in-memory model, with every I/O or
// decode failure wrapped via fmt.Errorf's %w.
package pipelineio

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bilbil/haloschedule/pkg/ir"
)

// PipelineJSON is the wire format: every function the pipeline defines, plus
// the subset of their names that are pipeline outputs.
type PipelineJSON struct {
	Functions []FunctionJSON `json:"functions"`
	Outputs   []string       `json:"outputs"`
}

type TypeJSON struct {
	Code string `json:"code"` // "int", "uint", or "float"
	Bits int    `json:"bits"`
}

type EstimateJSON struct {
	Min    int64 `json:"min"`
	Extent int64 `json:"extent"`
}

type RVarJSON struct {
	Name   string `json:"name"`
	Min    int64  `json:"min"`
	Extent int64  `json:"extent"`
}

type UpdateJSON struct {
	Values []ExprJSON `json:"values"`
	Args   []ExprJSON `json:"args"`
	Dims   []string   `json:"dims"`
	RVars  []RVarJSON `json:"rvars"`
}

type FunctionJSON struct {
	Name        string                  `json:"name"`
	Args        []string                `json:"args"`
	OutputTypes []TypeJSON              `json:"output_types"`
	Values      []ExprJSON              `json:"values"`
	Updates     []UpdateJSON            `json:"updates,omitempty"`
	Estimates   map[string]EstimateJSON `json:"estimates,omitempty"`
}

// ExprJSON is a tagged-union node: Kind selects which of the optional
// fields below are populated, mirroring the Expr type switch in pkg/ir.
type ExprJSON struct {
	Kind string `json:"kind"`

	// imm
	Int    *int64   `json:"int,omitempty"`
	UInt   *uint64  `json:"uint,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	String *string  `json:"string,omitempty"`

	// var
	Name string `json:"name,omitempty"`

	// cast
	To *TypeJSON `json:"to,omitempty"`

	// binop
	Op string    `json:"op,omitempty"`
	A  *ExprJSON `json:"a,omitempty"`
	B  *ExprJSON `json:"b,omitempty"`

	// not
	X *ExprJSON `json:"x,omitempty"`

	// select
	Cond *ExprJSON `json:"cond,omitempty"`
	T    *ExprJSON `json:"t,omitempty"`
	F    *ExprJSON `json:"f,omitempty"`

	// let
	Value *ExprJSON `json:"value,omitempty"`
	Body  *ExprJSON `json:"body,omitempty"`

	// call
	CallKind string     `json:"call_kind,omitempty"`
	Args     []ExprJSON `json:"args,omitempty"`
	Type     *TypeJSON  `json:"type,omitempty"`
}

var binOps = map[string]ir.BinOpKind{
	"+": ir.Add, "-": ir.Sub, "*": ir.Mul, "/": ir.Div, "%": ir.Mod,
	"min": ir.BMin, "max": ir.BMax,
	"==": ir.EQ, "!=": ir.NE, "<": ir.LT, "<=": ir.LE, ">": ir.GT, ">=": ir.GE,
	"&&": ir.LAnd, "||": ir.LOr,
}

var callKinds = map[string]ir.CallKind{
	"pipeline":     ir.CallPipelineFunc,
	"extern_image": ir.CallExternImage,
	"extern":       ir.CallExtern,
	"intrinsic":    ir.CallIntrinsic,
}

func toType(t TypeJSON) (ir.Type, error) {
	switch t.Code {
	case "int":
		return ir.Type{Code: ir.Int, Bits: t.Bits}, nil
	case "uint":
		return ir.Type{Code: ir.UInt, Bits: t.Bits}, nil
	case "float":
		return ir.Type{Code: ir.Float, Bits: t.Bits}, nil
	default:
		return ir.Type{}, fmt.Errorf("pipelineio: unknown type code %q", t.Code)
	}
}

func toExpr(e ExprJSON) (ir.Expr, error) {
	switch e.Kind {
	case "int":
		if e.Int == nil {
			return nil, fmt.Errorf("pipelineio: int node missing \"int\" field")
		}
		return &ir.IntImm{Value: *e.Int}, nil
	case "uint":
		if e.UInt == nil {
			return nil, fmt.Errorf("pipelineio: uint node missing \"uint\" field")
		}
		return &ir.UIntImm{Value: *e.UInt}, nil
	case "float":
		if e.Float == nil {
			return nil, fmt.Errorf("pipelineio: float node missing \"float\" field")
		}
		return &ir.FloatImm{Value: *e.Float}, nil
	case "string":
		if e.String == nil {
			return nil, fmt.Errorf("pipelineio: string node missing \"string\" field")
		}
		return &ir.StringImm{Value: *e.String}, nil
	case "var":
		return ir.NewVar(e.Name), nil
	case "cast":
		if e.To == nil || e.Value == nil {
			return nil, fmt.Errorf("pipelineio: cast node missing \"to\" or \"value\"")
		}
		to, err := toType(*e.To)
		if err != nil {
			return nil, err
		}
		v, err := toExpr(*e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.Cast{Value: v, To: to}, nil
	case "binop":
		op, ok := binOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("pipelineio: unknown binop %q", e.Op)
		}
		if e.A == nil || e.B == nil {
			return nil, fmt.Errorf("pipelineio: binop node missing \"a\" or \"b\"")
		}
		a, err := toExpr(*e.A)
		if err != nil {
			return nil, err
		}
		b, err := toExpr(*e.B)
		if err != nil {
			return nil, err
		}
		return ir.BinExpr(op, a, b), nil
	case "not":
		if e.X == nil {
			return nil, fmt.Errorf("pipelineio: not node missing \"x\"")
		}
		x, err := toExpr(*e.X)
		if err != nil {
			return nil, err
		}
		return &ir.Not{X: x}, nil
	case "select":
		if e.Cond == nil || e.T == nil || e.F == nil {
			return nil, fmt.Errorf("pipelineio: select node missing \"cond\", \"t\", or \"f\"")
		}
		cond, err := toExpr(*e.Cond)
		if err != nil {
			return nil, err
		}
		t, err := toExpr(*e.T)
		if err != nil {
			return nil, err
		}
		f, err := toExpr(*e.F)
		if err != nil {
			return nil, err
		}
		return &ir.Select{Cond: cond, T: t, F: f}, nil
	case "let":
		if e.Value == nil || e.Body == nil {
			return nil, fmt.Errorf("pipelineio: let node missing \"value\" or \"body\"")
		}
		v, err := toExpr(*e.Value)
		if err != nil {
			return nil, err
		}
		b, err := toExpr(*e.Body)
		if err != nil {
			return nil, err
		}
		return &ir.Let{Name: e.Name, Value: v, Body: b}, nil
	case "call":
		kind, ok := callKinds[e.CallKind]
		if !ok {
			return nil, fmt.Errorf("pipelineio: unknown call kind %q", e.CallKind)
		}
		ty := ir.Int32
		if e.Type != nil {
			var err error
			ty, err = toType(*e.Type)
			if err != nil {
				return nil, err
			}
		}
		args := make([]ir.Expr, len(e.Args))
		for i, a := range e.Args {
			av, err := toExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = av
		}
		return &ir.Call{Kind: kind, Name: e.Name, Args: args, Ty: ty}, nil
	default:
		return nil, fmt.Errorf("pipelineio: unknown expr kind %q", e.Kind)
	}
}

func toExprs(es []ExprJSON) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(es))
	for i, e := range es {
		v, err := toExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadPipeline decodes a pipeline JSON document from filename into an
// ir.Environment and the subset of its functions named as outputs, in
// Outputs order.
func ReadPipeline(filename string) (env *ir.Environment, outputs []*ir.Function, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("pipelineio: reading %s: %w", filename, err)
	}

	var doc PipelineJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("pipelineio: parsing %s: %w", filename, err)
	}

	funcs := make([]*ir.Function, 0, len(doc.Functions))
	byName := make(map[string]*ir.Function, len(doc.Functions))
	for _, fj := range doc.Functions {
		outTypes := make([]ir.Type, len(fj.OutputTypes))
		for i, t := range fj.OutputTypes {
			ty, terr := toType(t)
			if terr != nil {
				return nil, nil, fmt.Errorf("pipelineio: function %s: %w", fj.Name, terr)
			}
			outTypes[i] = ty
		}
		values, verr := toExprs(fj.Values)
		if verr != nil {
			return nil, nil, fmt.Errorf("pipelineio: function %s: %w", fj.Name, verr)
		}
		fn := ir.NewFunction(fj.Name, fj.Args, values, outTypes)

		dims := sortedEstimateDims(fj.Estimates)
		for _, d := range dims {
			e := fj.Estimates[d]
			fn.SetEstimate(d, e.Min, e.Extent)
		}

		for _, uj := range fj.Updates {
			uvalues, uerr := toExprs(uj.Values)
			if uerr != nil {
				return nil, nil, fmt.Errorf("pipelineio: function %s update: %w", fj.Name, uerr)
			}
			uargs, aerr := toExprs(uj.Args)
			if aerr != nil {
				return nil, nil, fmt.Errorf("pipelineio: function %s update: %w", fj.Name, aerr)
			}
			rvars := make([]ir.ReductionVar, len(uj.RVars))
			for i, rv := range uj.RVars {
				rvars[i] = ir.ReductionVar{Name: rv.Name, Min: rv.Min, Extent: rv.Extent}
			}
			fn.AddUpdate(uvalues, uargs, uj.Dims, rvars)
		}

		funcs = append(funcs, fn)
		byName[fj.Name] = fn
	}

	env = ir.NewEnvironment(funcs...)

	outputs = make([]*ir.Function, 0, len(doc.Outputs))
	for _, name := range doc.Outputs {
		fn, ok := byName[name]
		if !ok {
			return nil, nil, fmt.Errorf("pipelineio: output %q names no defined function", name)
		}
		outputs = append(outputs, fn)
	}
	return env, outputs, nil
}

func sortedEstimateDims(m map[string]EstimateJSON) []string {
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
