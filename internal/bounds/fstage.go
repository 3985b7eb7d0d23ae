package bounds

import "fmt"

// FStage is the (function_name, stage_num) pair identifying one definition
// of a pipeline function. stage_num = 0 is the pure definition, k >= 1 is
// the k-th update.
type FStage struct {
	Func string
	Num  int
}

func (s FStage) String() string { return fmt.Sprintf("%s.%d", s.Func, s.Num) }

// Less gives the lexicographic ordering on (name, stage_num) spec.md §3
// requires, used everywhere a deterministic traversal over FStage-keyed
// collections is needed (spec.md §5).
func (s FStage) Less(o FStage) bool {
	if s.Func != o.Func {
		return s.Func < o.Func
	}
	return s.Num < o.Num
}
