package ir

import "fmt"

// OutermostDim is the implicit trailing dimension every definition's Dims()
// list carries, representing the serial loop enclosing all others.
const OutermostDim = "__outermost"

// ReductionVar is one reduction-domain variable of an update definition,
// with a literal (min, extent) — reduction domains are always concrete.
type ReductionVar struct {
	Name   string
	Min    int64
	Extent int64
}

// Estimate is a literal (min, extent) triple attached to one dimension of a
// pipeline output, per spec.md §6: "schedule().estimates()".
type Estimate struct {
	Min    int64
	Extent int64
}

// UpdateDefinition is one update (k >= 1) of a Function.
type UpdateDefinition struct {
	values []Expr
	args   []Expr // left-hand-side argument expressions, one per pure dim
	dims   []string
	rvars  []ReductionVar
	sched  *StageSchedule
}

func (u *UpdateDefinition) Values() []Expr          { return u.values }
func (u *UpdateDefinition) Args() []Expr             { return u.args }
func (u *UpdateDefinition) Dims() []string            { return u.dims }
func (u *UpdateDefinition) RVars() []ReductionVar     { return u.rvars }
func (u *UpdateDefinition) Schedule() *StageSchedule  { return u.sched }

// SplitDirective records one ScheduleEmitter split(dim, outer, inner, factor) call.
type SplitDirective struct {
	Dim            string
	Outer, Inner   string
	Factor         int
}

// StageSchedule accumulates the directives ScheduleEmitter applies to one
// stage, and the per-dim literal estimates used to decide further splits.
// This is the in-repo stand-in for spec.md §6's "schedule-application
// façade" — it records what a real lowering backend would be told to do.
type StageSchedule struct {
	ComputeRootCalled bool
	InlineCalled      bool
	Splits            []SplitDirective
	ReorderOrder      []string
	VectorizeDim      string
	VectorizeFactor   int
	ParallelDims      []string

	dimEstimates map[string]Estimate
}

func newStageSchedule() *StageSchedule {
	return &StageSchedule{dimEstimates: make(map[string]Estimate)}
}

// DimEstimate returns the current literal (min, extent) for dim, and whether
// one is known.
func (s *StageSchedule) DimEstimate(dim string) (Estimate, bool) {
	e, ok := s.dimEstimates[dim]
	return e, ok
}

func (s *StageSchedule) SetDimEstimate(dim string, e Estimate) {
	s.dimEstimates[dim] = e
}

// ComputeRoot marks the stage as materialized at its own granularity.
func (s *StageSchedule) ComputeRoot() { s.ComputeRootCalled = true }

// ComputeInline marks the stage as expanded into its consumers.
func (s *StageSchedule) ComputeInline() { s.InlineCalled = true }

// Split records a tile split of dim into (outer, inner) by factor, and
// updates the derived dim estimates the way spec.md §4.5 step 3 describes:
// inner := factor, outer := ceil(old/factor).
func (s *StageSchedule) Split(dim, outer, inner string, factor int) {
	s.Splits = append(s.Splits, SplitDirective{Dim: dim, Outer: outer, Inner: inner, Factor: factor})
	old, ok := s.dimEstimates[dim]
	if ok && factor > 0 {
		s.dimEstimates[inner] = Estimate{Min: 0, Extent: int64(factor)}
		s.dimEstimates[outer] = Estimate{Min: 0, Extent: ceilDiv(old.Extent, int64(factor))}
	}
}

func (s *StageSchedule) Reorder(order []string) {
	s.ReorderOrder = append([]string(nil), order...)
}

func (s *StageSchedule) Vectorize(dim string, factor int) {
	s.VectorizeDim = dim
	s.VectorizeFactor = factor
}

func (s *StageSchedule) Parallel(dim string) {
	s.ParallelDims = append(s.ParallelDims, dim)
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Function is a named pipeline node: a pure definition (stage 0) plus an
// ordered list of update definitions (stage k >= 1).
type Function struct {
	name        string
	args        []string
	values      []Expr
	updates     []*UpdateDefinition
	outputTypes []Type
	estimates   map[string]Estimate
	pureSched   *StageSchedule
}

// NewFunction creates a pure definition: F(args...) = values...
func NewFunction(name string, args []string, values []Expr, outputTypes []Type) *Function {
	return &Function{
		name:        name,
		args:        append([]string(nil), args...),
		values:      values,
		outputTypes: outputTypes,
		estimates:   make(map[string]Estimate),
		pureSched:   newStageSchedule(),
	}
}

func (f *Function) Name() string         { return f.name }
func (f *Function) Args() []string       { return f.args }
func (f *Function) Values() []Expr       { return f.values }
func (f *Function) Updates() []*UpdateDefinition { return f.updates }
func (f *Function) OutputTypes() []Type  { return f.outputTypes }
func (f *Function) IsPure() bool         { return len(f.updates) == 0 }
func (f *Function) LastStage() int       { return len(f.updates) }

// AddUpdate appends an update definition R(x) op= expr over reduction
// variables rvars, with left-hand-side argument expressions args and a dim
// order dims (innermost first, trailing OutermostDim included).
func (f *Function) AddUpdate(values, args []Expr, dims []string, rvars []ReductionVar) *UpdateDefinition {
	u := &UpdateDefinition{values: values, args: args, dims: dims, rvars: rvars, sched: newStageSchedule()}
	f.updates = append(f.updates, u)
	return u
}

// SetEstimate records a literal (min, extent) estimate on one pure dim of
// this function's output. Per spec.md §6, user estimates are mandatory on
// every output dimension.
func (f *Function) SetEstimate(dim string, min, extent int64) {
	f.estimates[dim] = Estimate{Min: min, Extent: extent}
}

func (f *Function) Estimate(dim string) (Estimate, bool) {
	e, ok := f.estimates[dim]
	return e, ok
}

func (f *Function) Estimates() map[string]Estimate { return f.estimates }

// PureDims returns the pure dim order for the pure definition: args in
// order, plus the trailing OutermostDim.
func (f *Function) PureDims() []string {
	return append(append([]string(nil), f.args...), OutermostDim)
}

// PureArgExprs returns Var(arg) for each pure argument, in order — the
// pure stage's "left-hand-side argument expressions".
func (f *Function) PureArgExprs() []Expr {
	out := make([]Expr, len(f.args))
	for i, a := range f.args {
		out[i] = NewVar(a)
	}
	return out
}

func (f *Function) Schedule() *StageSchedule { return f.pureSched }

// Stage returns a uniform view over stage k (0 = pure, k>=1 = update k-1).
func (f *Function) Stage(k int) *Stage {
	return &Stage{fn: f, num: k}
}

// Stage is a (function, stage_num) handle with uniform accessors over the
// pure definition or one update definition.
type Stage struct {
	fn  *Function
	num int
}

func (s *Stage) Function() *Function { return s.fn }
func (s *Stage) Num() int            { return s.num }

func (s *Stage) Values() []Expr {
	if s.num == 0 {
		return s.fn.values
	}
	return s.fn.updates[s.num-1].values
}

func (s *Stage) ArgExprs() []Expr {
	if s.num == 0 {
		return s.fn.PureArgExprs()
	}
	return s.fn.updates[s.num-1].args
}

func (s *Stage) Dims() []string {
	if s.num == 0 {
		return s.fn.PureDims()
	}
	return s.fn.updates[s.num-1].dims
}

func (s *Stage) RVars() []ReductionVar {
	if s.num == 0 {
		return nil
	}
	return s.fn.updates[s.num-1].rvars
}

func (s *Stage) Schedule() *StageSchedule {
	if s.num == 0 {
		return s.fn.pureSched
	}
	return s.fn.updates[s.num-1].sched
}

func (s *Stage) String() string { return fmt.Sprintf("%s.%d", s.fn.name, s.num) }
