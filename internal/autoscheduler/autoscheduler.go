// Package autoscheduler wires spec.md §4's four stages end to end:
// DependenceAnalysis's pipeline bounds, CostModel's per-function costs, the
// Partitioner's greedy fixpoint grouping, and the ScheduleEmitter's
// directive emission, driving analysis -> search -> apply in one ordered
// pass and narrating each phase as it goes.
package autoscheduler

import (
	"fmt"
	"os"
	"sort"

	"github.com/bilbil/haloschedule/internal/config"
	"github.com/bilbil/haloschedule/internal/costmodel"
	"github.com/bilbil/haloschedule/internal/partitioner"
	"github.com/bilbil/haloschedule/internal/schederr"
	"github.com/bilbil/haloschedule/internal/scheduleemitter"
	"github.com/bilbil/haloschedule/pkg/ir"
)

// Result is everything GenerateSchedules produces: the finalized groups (for
// callers that want the raw partition, e.g. tests or a future granularity
// inspector) and the ordered textual directive trace.
type Result struct {
	Groups     []*partitioner.Group
	Directives []string
}

// Verbose controls whether GenerateSchedules narrates its phases to stderr
// as "==> ..." phase lines. Off by default so library callers (tests, the
// façade embedded elsewhere) stay quiet; cmd/haloschedule sets it from its
// -v flag.
var Verbose = false

func narrate(format string, args ...any) {
	if Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// GenerateSchedules runs the full pipeline for one set of pipeline outputs
// against env, targeting machine. It validates every output's estimates
// up front (spec.md §7 kind 1: UserError, surfaced immediately, the
// scheduler never runs), then recovers any *schederr.ContractViolation a
// later stage panics with (spec.md §7 kind 3) and returns it as a plain
// error.
func GenerateSchedules(outputs []*ir.Function, env *ir.Environment, target config.Machine) (result *Result, err error) {
	defer schederr.Recover(&err)

	if verr := validateEstimates(outputs); verr != nil {
		return nil, verr
	}

	narrate("==> Building function cost table\n")
	fc := costmodel.Build(env)

	narrate("==> Partitioning pipeline into fused groups\n")
	p := partitioner.New(env, outputs, fc, target)
	groups := p.Run()
	narrate("    %d group(s) after fixpoint grouping\n", len(groups))

	narrate("==> Emitting schedule directives\n")
	directives := scheduleemitter.Emit(groups, env, target)
	for _, line := range directives {
		narrate("    %s\n", line)
	}

	return &Result{Groups: groups, Directives: directives}, nil
}

// validateEstimates enforces spec.md §6: every pipeline output needs a
// literal estimate on each of its pure dims, checked before any analysis
// runs. Functions are visited in name order so the first error reported is
// deterministic across runs.
func validateEstimates(outputs []*ir.Function) error {
	sorted := make([]*ir.Function, len(outputs))
	copy(sorted, outputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	for _, fn := range sorted {
		for _, d := range fn.Args() {
			est, ok := fn.Estimate(d)
			if !ok {
				return schederr.NewUserError(fn.Name(), d, schederr.ErrMissingEstimate)
			}
			if est.Extent <= 0 {
				return schederr.NewUserError(fn.Name(), d, schederr.ErrNonLiteralEstimate)
			}
		}
	}
	return nil
}
