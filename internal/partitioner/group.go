// Package partitioner implements spec.md §4.4: the greedy fixpoint search
// over fusion choices (INLINE then FAST_MEM merge levels), backed by a
// fusion cache and a per-group analyzer.
package partitioner

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
)

// Group is spec.md §3's Group: an output stage, an ordered set of member
// stages, the subset of member function names that are inlined, a
// dimension->tile-size map (absence meaning "no tiling"), and a
// dimension->bytes-reused map.
// CostOnlyInlined holds function names absorbed by a FAST_MEM merge: spec.md
// §4.4 prices these as if inlined (no separate region-cost/working-set
// accounting) but they remain real, materialized stages tiled at the
// group's granularity — ScheduleEmitter must never turn these into
// compute_inline, only Inlined (populated by the INLINE level) means that.
type Group struct {
	Output          bounds.FStage
	Members         []bounds.FStage
	Inlined         map[string]bool
	CostOnlyInlined map[string]bool
	TileSizes       map[string]int
	Reuse           map[string]bounds.Extent
}

func newGroup(output bounds.FStage) *Group {
	return &Group{
		Output:          output,
		Members:         []bounds.FStage{output},
		Inlined:         make(map[string]bool),
		CostOnlyInlined: make(map[string]bool),
		TileSizes:       make(map[string]int),
		Reuse:           make(map[string]bounds.Extent),
	}
}

// costInlines returns the union of Inlined and CostOnlyInlined — the set
// analyze_group's region-cost and working-set formulas must treat as
// non-materialized, regardless of which merge level produced the entry.
func (g *Group) costInlines() map[string]bool {
	out := make(map[string]bool, len(g.Inlined)+len(g.CostOnlyInlined))
	for k := range g.Inlined {
		out[k] = true
	}
	for k := range g.CostOnlyInlined {
		out[k] = true
	}
	return out
}

// addMembers appends stages not already present, keeping Members sorted by
// FStage.Less so iteration is deterministic (spec.md §5).
func (g *Group) addMembers(stages []bounds.FStage) {
	have := make(map[bounds.FStage]bool, len(g.Members))
	for _, m := range g.Members {
		have[m] = true
	}
	for _, s := range stages {
		if !have[s] {
			g.Members = append(g.Members, s)
			have[s] = true
		}
	}
	sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Less(g.Members[j]) })
}

// HasMember reports whether s belongs to g.
func (g *Group) HasMember(s bounds.FStage) bool {
	for _, m := range g.Members {
		if m == s {
			return true
		}
	}
	return false
}

// MemberFuncs returns the distinct function names among g's members, sorted.
func (g *Group) MemberFuncs() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range g.Members {
		if !seen[m.Func] {
			seen[m.Func] = true
			names = append(names, m.Func)
		}
	}
	sort.Strings(names)
	return names
}

// GroupAnalysis is spec.md §3's GroupAnalysis triple. Per spec.md's own
// definition of this type (distinct from the general Cost/Extent Unknown
// sentinel used elsewhere in the data model), any negative component means
// "could not analyze; treat as incomparable/invalid" — kept literal since
// the INLINE benefit formula legitimately produces negative (bad-fusion)
// values too, and spec.md §4.4 only ever compares GroupAnalysis values
// against this same negative convention, never against bounds.Cost.
type GroupAnalysis struct {
	ArithCost   int64
	MemCost     int64
	Parallelism int64
}

// InvalidAnalysis is the canonical "could not analyze" value.
var InvalidAnalysis = GroupAnalysis{ArithCost: -1, MemCost: -1, Parallelism: -1}

func (a GroupAnalysis) Valid() bool {
	return a.ArithCost >= 0 && a.MemCost >= 0 && a.Parallelism >= 0
}

// FusionChoice is spec.md §3's FusionChoice triple. Equality/ordering for
// cache and dedup purposes ignores TileSizes, per spec.md §3.
type FusionChoice struct {
	Producer  string
	Consumer  bounds.FStage
	TileSizes map[string]int
}

type cacheKey struct {
	Producer string
	Consumer bounds.FStage
}

func (c FusionChoice) key() cacheKey {
	return cacheKey{Producer: c.Producer, Consumer: c.Consumer}
}
