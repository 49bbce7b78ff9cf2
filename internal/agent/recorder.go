// internal/agent/recorder.go
package agent

import (
	"context"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Recorder observes a session. Errors are logged by the controller and never
// change the session's course.
type Recorder interface {
	SessionStarted(ctx context.Context, s *LoopSession) error
	SnapshotTaken(ctx context.Context, sessionID string, cycle int, snap schemas.SceneSnapshot) error
	StepExecuted(ctx context.Context, sessionID string, rec schemas.ExecutionRecord) error
	SessionEnded(ctx context.Context, res *Result) error
}
