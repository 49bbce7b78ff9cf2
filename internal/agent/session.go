// internal/agent/session.go
package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/failsafe"
)

// LoopSession is the state of one command's execution. Only the Controller
// goroutine running the session touches it.
type LoopSession struct {
	ID           string
	Command      schemas.Command
	Cycle        int
	History      []schemas.ExecutionRecord
	Token        *failsafe.CancellationToken
	State        schemas.Outcome
	Reason       string
	LastSnapshot *schemas.SceneSnapshot
	LastStep     *schemas.ActionStep
	StartedAt    time.Time
	EndedAt      time.Time
}

func newSession(cmd schemas.Command) *LoopSession {
	return &LoopSession{
		ID:      uuid.NewString(),
		Command: cmd,
		Token:   failsafe.NewToken(),
		State:   schemas.OutcomeIdle,
	}
}

// transition moves the session to next. Terminal states are never left and
// only a running session can terminate. It reports whether the move happened.
func (s *LoopSession) transition(next schemas.Outcome, reason string) bool {
	switch {
	case s.State == next, s.State.IsTerminal():
		return false
	case s.State == schemas.OutcomeIdle && next != schemas.OutcomeRunning:
		return false
	}
	s.State = next
	switch next {
	case schemas.OutcomeRunning:
		s.StartedAt = time.Now()
	default:
		s.Reason = reason
		s.EndedAt = time.Now()
	}
	return true
}

func (s *LoopSession) append(rec schemas.ExecutionRecord) {
	s.History = append(s.History, rec)
}

// Result is what the caller gets back after a session ends, whatever the outcome.
type Result struct {
	SessionID string                    `json:"session_id"`
	Command   schemas.Command           `json:"command"`
	Outcome   schemas.Outcome           `json:"outcome"`
	Reason    string                    `json:"reason,omitempty"`
	Cycles    int                       `json:"cycles"`
	History   []schemas.ExecutionRecord `json:"history"`
	StartedAt time.Time                 `json:"started_at"`
	EndedAt   time.Time                 `json:"ended_at"`
}

func (s *LoopSession) result() *Result {
	history := make([]schemas.ExecutionRecord, len(s.History))
	copy(history, s.History)
	return &Result{
		SessionID: s.ID,
		Command:   s.Command,
		Outcome:   s.State,
		Reason:    s.Reason,
		Cycles:    s.Cycle,
		History:   history,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}
