package partitioner

import (
	"sort"

	"github.com/bilbil/haloschedule/internal/bounds"
)

// evaluateInlineChoice is spec.md §4.4's evaluate_inline_choice(choice):
// synthesize the fused group as if producer were spliced into consumer with
// tile sizes all 1 on the consumer's pure dims (per-point inlining), analyze
// producer, consumer, and fused independently, and return
// Σ producer.arith + consumer.arith − fused.arith. Any invalid component
// yields benefit −1.
func evaluateInlineChoice(ac *analysisContext, producer, consumer *Group) int64 {
	fused := synthesizeFusedGroup(producer, consumer, true)

	consumerFn, ok := ac.env.Lookup(consumer.Output.Func)
	if !ok {
		return -1
	}
	pointTiles := make(map[string]int, len(consumerFn.Args()))
	for _, d := range consumerFn.Args() {
		pointTiles[d] = 1
	}

	pAnalysis := analyzeGroup(ac, producer, producer.TileSizes)
	cAnalysis := analyzeGroup(ac, consumer, consumer.TileSizes)
	fAnalysis := analyzeGroup(ac, fused, pointTiles)

	if !pAnalysis.Valid() || !cAnalysis.Valid() || !fAnalysis.Valid() {
		return -1
	}
	return pAnalysis.ArithCost + cAnalysis.ArithCost - fAnalysis.ArithCost
}

// synthesizeFusedGroup builds the hypothetical merged group without
// mutating either input — producer's members join consumer's. Per spec.md
// §9's Open Question 1 resolution, inlined-set population is an aggregation
// into the fused/surviving group only. trueInline distinguishes the INLINE
// level's evaluate_inline_choice (producer becomes genuinely inlined, no
// storage) from the FAST_MEM level's tentative fused-group probe (producer
// stays materialized, priced as cost-only-inlined — see Group.CostOnlyInlined).
func synthesizeFusedGroup(producer, consumer *Group, trueInline bool) *Group {
	fused := &Group{
		Output:          consumer.Output,
		Inlined:         make(map[string]bool, len(consumer.Inlined)),
		CostOnlyInlined: make(map[string]bool, len(consumer.CostOnlyInlined)+len(producer.MemberFuncs())),
		TileSizes:       make(map[string]int),
		Reuse:           make(map[string]bounds.Extent),
	}
	for k, v := range consumer.Inlined {
		fused.Inlined[k] = v
	}
	for k, v := range consumer.CostOnlyInlined {
		fused.CostOnlyInlined[k] = v
	}
	for _, n := range producer.MemberFuncs() {
		if trueInline {
			fused.Inlined[n] = true
		} else {
			fused.CostOnlyInlined[n] = true
		}
	}
	fused.Members = append(append([]bounds.FStage(nil), consumer.Members...), producer.Members...)
	sort.Slice(fused.Members, func(i, j int) bool { return fused.Members[i].Less(fused.Members[j]) })
	return fused
}
