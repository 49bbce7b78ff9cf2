// internal/reasoning/errors.go
package reasoning

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan marks model output that cannot be turned into an executable plan.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrHallucinatedTarget marks a MoveTo that points at nothing on the current screen.
	ErrHallucinatedTarget = errors.New("hallucinated target")
)

// PlanningError is returned when no plan, not even a GiveUp, can be produced.
// In practice that only happens when the caller's context is done.
type PlanningError struct {
	Attempts int
	Err      error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// stepError ties a validation failure to the offending step.
func stepError(index int, sentinel error, format string, args ...any) error {
	return fmt.Errorf("step %d: %w: %s", index, sentinel, fmt.Sprintf(format, args...))
}
