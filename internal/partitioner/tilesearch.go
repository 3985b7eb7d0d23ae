package partitioner

// findBestTileConfig is spec.md §4.4's find_best_tile_config(g): generate
// the canonical tile-configuration set for g.output, analyze each, and
// retain the one with non-increasing arith_cost and strictly decreasing
// mem_cost versus the running best, starting from "no tiling". Per spec.md
// §8's testable property, an all-invalid configuration set falls back to
// the no-tile configuration.
func findBestTileConfig(ac *analysisContext, g *Group) (map[string]int, GroupAnalysis) {
	outFn, ok := ac.env.Lookup(g.Output.Func)
	if !ok {
		return map[string]int{}, InvalidAnalysis
	}
	dims := append([]string(nil), outFn.Args()...)
	extents := ac.extentsForFunc(outFn)
	configs := GenerateTileConfigs(dims, extents)

	bestSizes := map[string]int{}
	bestAnalysis := analyzeGroup(ac, g, bestSizes)

	for _, cfg := range configs {
		a := analyzeGroup(ac, g, cfg)
		if !a.Valid() {
			continue
		}
		if !bestAnalysis.Valid() {
			bestAnalysis = a
			bestSizes = cfg
			continue
		}
		if a.ArithCost <= bestAnalysis.ArithCost && a.MemCost < bestAnalysis.MemCost {
			bestAnalysis = a
			bestSizes = cfg
		}
	}
	return bestSizes, bestAnalysis
}
