// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// ErrorCode classifies an ExecutionError for logs and the session store.
type ErrorCode string

const (
	// ErrCodeInjectionFailure means the OS input layer rejected a primitive.
	ErrCodeInjectionFailure ErrorCode = "INJECTION_FAILURE"
	// ErrCodeUnknownStep means no handler exists for the step kind.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"
)

var (
	// ErrSessionActive is returned by Run while another session is in progress.
	ErrSessionActive = errors.New("a session is already running")

	// Reasons a session ends in Failed without a collaborator error.
	ErrGaveUp         = errors.New("model gave up")
	ErrStuck          = errors.New("stuck")
	ErrCycleCeiling   = errors.New("cycle ceiling reached")
	ErrSessionTimeout = errors.New("session timeout exceeded")
)

// ExecutionError reports that the input layer failed while executing Step.
// A plan that simply had no effect is never an ExecutionError.
type ExecutionError struct {
	Code ErrorCode
	Step schemas.ActionStep
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed (%s): %v", e.Step, e.Code, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SessionError carries the context of a session that ended in Failed.
type SessionError struct {
	SessionID    string
	Cycle        int
	LastSnapshot *schemas.SceneSnapshot
	LastStep     *schemas.ActionStep
	Err          error
}

func (e *SessionError) Error() string {
	step := "none"
	if e.LastStep != nil {
		step = e.LastStep.String()
	}
	return fmt.Sprintf("session %s failed at cycle %d (last step: %s): %v", e.SessionID, e.Cycle, step, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
