package ir

import "sort"

// Environment is the set of named functions a pipeline's expressions may
// call into — the host-provided "env" of spec.md §4.3/§6.
type Environment struct {
	funcs map[string]*Function
}

func NewEnvironment(funcs ...*Function) *Environment {
	e := &Environment{funcs: make(map[string]*Function)}
	for _, f := range funcs {
		e.funcs[f.Name()] = f
	}
	return e
}

func (e *Environment) Lookup(name string) (*Function, bool) {
	f, ok := e.funcs[name]
	return f, ok
}

func (e *Environment) All() []*Function {
	names := make([]string, 0, len(e.funcs))
	for n := range e.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Function, len(names))
	for i, n := range names {
		out[i] = e.funcs[n]
	}
	return out
}

// exprCalls collects the distinct pipeline-function names called anywhere
// in e, in first-encountered order.
func exprCalls(e Expr, env *Environment, seen map[string]bool, order *[]string) {
	switch n := e.(type) {
	case *Call:
		if n.Kind == CallPipelineFunc {
			if _, ok := env.Lookup(n.Name); ok && !seen[n.Name] {
				seen[n.Name] = true
				*order = append(*order, n.Name)
			}
		}
		for _, a := range n.Args {
			exprCalls(a, env, seen, order)
		}
	case *BinOp:
		exprCalls(n.A, env, seen, order)
		exprCalls(n.B, env, seen, order)
	case *Cast:
		exprCalls(n.Value, env, seen, order)
	case *Not:
		exprCalls(n.X, env, seen, order)
	case *Select:
		exprCalls(n.Cond, env, seen, order)
		exprCalls(n.T, env, seen, order)
		exprCalls(n.F, env, seen, order)
	case *Let:
		exprCalls(n.Value, env, seen, order)
		exprCalls(n.Body, env, seen, order)
	}
}

// FindDirectCalls returns the distinct functions f's definitions call
// directly (pure values plus every update's values and arguments).
func FindDirectCalls(f *Function, env *Environment) []*Function {
	seen := make(map[string]bool)
	var order []string
	for _, v := range f.Values() {
		exprCalls(v, env, seen, &order)
	}
	for _, u := range f.Updates() {
		for _, v := range u.Values() {
			exprCalls(v, env, seen, &order)
		}
		for _, a := range u.Args() {
			exprCalls(a, env, seen, &order)
		}
	}
	out := make([]*Function, 0, len(order))
	for _, n := range order {
		g, _ := env.Lookup(n)
		out = append(out, g)
	}
	return out
}

// FindTransitiveCalls returns every function reachable from f, not
// including f itself.
func FindTransitiveCalls(f *Function, env *Environment) []*Function {
	visited := make(map[string]bool)
	var order []string
	var walk func(cur *Function)
	walk = func(cur *Function) {
		for _, g := range FindDirectCalls(cur, env) {
			if !visited[g.Name()] {
				visited[g.Name()] = true
				order = append(order, g.Name())
				walk(g)
			}
		}
	}
	walk(f)
	out := make([]*Function, len(order))
	for i, n := range order {
		out[i], _ = env.Lookup(n)
	}
	return out
}

// RealizationOrder returns a producer-before-consumer topological order over
// every function reachable from outputs (outputs included), deterministic
// given the same pipeline: ties are broken by function name.
func RealizationOrder(outputs []*Function, env *Environment) []*Function {
	visited := make(map[string]bool)
	var order []*Function

	var visit func(f *Function)
	visit = func(f *Function) {
		if visited[f.Name()] {
			return
		}
		visited[f.Name()] = true
		deps := FindDirectCalls(f, env)
		sort.Slice(deps, func(i, j int) bool { return deps[i].Name() < deps[j].Name() })
		for _, g := range deps {
			visit(g)
		}
		order = append(order, f)
	}

	sortedOutputs := append([]*Function(nil), outputs...)
	sort.Slice(sortedOutputs, func(i, j int) bool { return sortedOutputs[i].Name() < sortedOutputs[j].Name() })
	for _, f := range sortedOutputs {
		visit(f)
	}
	return order
}
