// internal/store/audit.go
package store

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// AuditLog appends one JSON object per line for every session event, in a
// rotating file. It is an agent.Recorder.
type AuditLog struct {
	mu sync.Mutex
	w  io.WriteCloser
}

var _ agent.Recorder = (*AuditLog)(nil)

// auditEntry is one line of the audit log.
type auditEntry struct {
	Time      time.Time                `json:"time"`
	Event     string                   `json:"event"`
	SessionID string                   `json:"session_id"`
	Command   string                   `json:"command,omitempty"`
	Cycle     int                      `json:"cycle,omitempty"`
	Elements  int                      `json:"elements,omitempty"`
	Record    *schemas.ExecutionRecord `json:"record,omitempty"`
	Outcome   schemas.Outcome          `json:"outcome,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
}

// NewAuditLog opens the rotating audit file configured in cfg.
func NewAuditLog(cfg config.StoreConfig) *AuditLog {
	return newAuditLog(&lumberjack.Logger{
		Filename:   cfg.AuditLog,
		MaxSize:    cfg.AuditMaxSize,
		MaxBackups: cfg.AuditBackups,
		Compress:   true,
	})
}

func newAuditLog(w io.WriteCloser) *AuditLog {
	return &AuditLog{w: w}
}

func (a *AuditLog) write(e auditEntry) error {
	e.Time = time.Now().UTC()
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (a *AuditLog) SessionStarted(_ context.Context, s *agent.LoopSession) error {
	return a.write(auditEntry{Event: "session_started", SessionID: s.ID, Command: s.Command.Text})
}

func (a *AuditLog) SnapshotTaken(_ context.Context, sessionID string, cycle int, snap schemas.SceneSnapshot) error {
	return a.write(auditEntry{Event: "snapshot", SessionID: sessionID, Cycle: cycle, Elements: len(snap.Elements)})
}

func (a *AuditLog) StepExecuted(_ context.Context, sessionID string, rec schemas.ExecutionRecord) error {
	return a.write(auditEntry{Event: "step", SessionID: sessionID, Cycle: rec.Cycle, Record: &rec})
}

func (a *AuditLog) SessionEnded(_ context.Context, res *agent.Result) error {
	return a.write(auditEntry{
		Event:     "session_ended",
		SessionID: res.SessionID,
		Cycle:     res.Cycles,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
	})
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Close()
}
