// Package schederr defines the auto-scheduler's error values (spec.md §7):
// UserError and ContractViolation. An unknown extent is not an error here;
// it is the Known=false state of bounds.Cost/bounds.Extent. Sentinels
// are package-level `var Err... = errors.New(...)` checked via errors.Is,
// with fmt.Errorf %w-wrapping for context at call boundaries.
package schederr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Wrap these with fmt.Errorf("...: %w", ...)
// at call boundaries when more context is useful; never re-allocate a new
// errors.New for the same condition.
var (
	// ErrMissingEstimate is returned when an output dimension has no user
	// estimate at all.
	ErrMissingEstimate = errors.New("autosched: missing output estimate")

	// ErrNonLiteralEstimate is returned when an output dimension's estimate
	// has an extent that is not positive (extent <= 0).
	ErrNonLiteralEstimate = errors.New("autosched: estimate is not an integer literal")

	// ErrContractViolation marks an internal invariant broken by a caller
	// that should have been prevented upstream (e.g. IR reaching
	// CostVisitor that shouldn't, or removing a fusion-cache entry that
	// isn't there).
	ErrContractViolation = errors.New("autosched: internal contract violation")
)

// UserError reports a problem with the pipeline as given by the user —
// missing or non-literal output estimates. Surfaced immediately; the
// scheduler does not run (spec.md §7 kind 1).
type UserError struct {
	Func string
	Dim  string
	Err  error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("autosched: %s.%s: %v", e.Func, e.Dim, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

func NewUserError(fn, dim string, sentinel error) *UserError {
	return &UserError{Func: fn, Dim: dim, Err: sentinel}
}

// ContractViolation reports an IR shape or invariant that should never be
// observable — e.g. a Load/Store/For/Allocate/Realize node reaching
// CostVisitor, or the fusion cache being asked to remove an entry it does
// not hold. Spec.md §7 kind 3: "These abort."
type ContractViolation struct {
	Msg string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("%v: %s", ErrContractViolation, e.Msg)
}

func (e *ContractViolation) Unwrap() error { return ErrContractViolation }

// Abort panics with a *ContractViolation. Used at the few points in the
// core (CostVisitor's node-kind switch, dependence.BoxesRequired's node walk)
// where spec.md declares the condition fatal-by-contract rather than
// a normal error return.
func Abort(format string, args ...any) {
	panic(&ContractViolation{Msg: fmt.Sprintf(format, args...)})
}

// Recover converts a panicking *ContractViolation into an error, for use in
// a single deferred recover at the outermost entry point
// (autoscheduler.GenerateSchedules). Any other panic value is re-panicked:
// this package only absorbs the contract-violation path it defines.
func Recover(errp *error) {
	if r := recover(); r != nil {
		if cv, ok := r.(*ContractViolation); ok {
			*errp = cv
			return
		}
		panic(r)
	}
}
