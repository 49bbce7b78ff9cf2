// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when a session or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// InterruptedReason marks sessions that a previous process left running.
const InterruptedReason = "interrupted"

// SessionSummary is one row of the session history.
type SessionSummary struct {
	ID        string          `json:"id"`
	CommandID string          `json:"command_id"`
	Command   string          `json:"command"`
	Status    schemas.Outcome `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Cycles    int             `json:"cycles"`
	Steps     int             `json:"steps"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// SessionDetail is a session with its full execution history.
type SessionDetail struct {
	SessionSummary
	Records   []schemas.ExecutionRecord `json:"records"`
	Snapshots []int                     `json:"snapshot_cycles"`
}

// Store persists sessions in a SQLite database. It is an agent.Recorder.
type Store struct {
	db            *sql.DB
	log           *zap.Logger
	saveSnapshots bool
	pid           int
	enc           *zstd.Encoder
	dec           *zstd.Decoder
}

var _ agent.Recorder = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, saveSnapshots bool, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	s := &Store{db: db, log: logger.Named("store"), saveSnapshots: saveSnapshots, pid: os.Getpid(), enc: enc, dec: dec}
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES(1)"); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		v = 1
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v < 1 || v > schemaVersion:
		return fmt.Errorf("unknown schema version %d", v)
	}

	for ; v < schemaVersion; v++ {
		if err := s.upgrade(ctx, v); err != nil {
			return fmt.Errorf("upgrade schema to version %d: %w", v+1, err)
		}
		s.log.Info("Upgraded history database schema.", zap.Int("version", v+1))
	}
	return nil
}

func (s *Store) upgrade(ctx context.Context, from int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, upgrades[from]); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", from+1); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the database and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	encErr := s.enc.Close()
	return errors.Join(s.db.Close(), encErr)
}

// RecoverInterrupted marks sessions left running by a crashed process as
// failed. A session whose owning process is still alive is left alone unless
// it started before cutoff, which callers set to now minus the session
// timeout. A zero cutoff only trusts the owner check.
func (s *Store) RecoverInterrupted(ctx context.Context, cutoff time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner_pid, started_at FROM sessions WHERE status = ?", string(schemas.OutcomeRunning))
	if err != nil {
		return 0, fmt.Errorf("recover interrupted sessions: %w", err)
	}
	var stale []string
	for rows.Next() {
		var (
			id, started string
			pid         int
		)
		if err := rows.Scan(&id, &pid, &started); err != nil {
			rows.Close()
			return 0, fmt.Errorf("recover interrupted sessions: %w", err)
		}
		expired := !cutoff.IsZero() && parseTime(started).Before(cutoff)
		if expired || !s.ownerAlive(pid) {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("recover interrupted sessions: %w", err)
	}

	ended := formatTime(time.Now())
	for _, id := range stale {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE sessions SET status = ?, reason = ?, ended_at = ? WHERE id = ? AND status = ?",
			string(schemas.OutcomeFailed), InterruptedReason, ended, id, string(schemas.OutcomeRunning)); err != nil {
			return 0, fmt.Errorf("recover interrupted sessions: %w", err)
		}
	}
	if len(stale) > 0 {
		s.log.Warn("Marked sessions from a previous run as failed.", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

// ownerAlive reports whether another live process may still be recording the
// session. Rows from this process count as dead: sessions run one at a time
// and recovery happens before the next one starts.
func (s *Store) ownerAlive(pid int) bool {
	if pid <= 0 || pid == s.pid {
		return false
	}
	return processAlive(pid)
}

// -- agent.Recorder --

func (s *Store) SessionStarted(ctx context.Context, ls *agent.LoopSession) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions(id, command_id, command, status, started_at, owner_pid) VALUES(?, ?, ?, ?, ?, ?)",
		ls.ID, ls.Command.ID, ls.Command.Text, string(ls.State), formatTime(ls.StartedAt), s.pid)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) SnapshotTaken(ctx context.Context, sessionID string, cycle int, snap schemas.SceneSnapshot) error {
	if !s.saveSnapshots {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	blob := s.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots(session_id, cycle, elements, captured_at, data) VALUES(?, ?, ?, ?, ?)",
		sessionID, cycle, len(snap.Elements), formatTime(snap.CapturedAt), blob)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) StepExecuted(ctx context.Context, sessionID string, rec schemas.ExecutionRecord) error {
	step, err := json.Marshal(rec.Step)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(session_id, cycle, step, success, error, cursor_x, cursor_y, started_at, ended_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Cycle, string(step), rec.Success, rec.Error,
		rec.CursorAfter.X, rec.CursorAfter.Y, formatTime(rec.StartedAt), formatTime(rec.EndedAt))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) SessionEnded(ctx context.Context, res *agent.Result) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = ?, reason = ?, cycles = ?, ended_at = ? WHERE id = ?",
		string(res.Outcome), res.Reason, res.Cycles, formatTime(res.EndedAt), res.SessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// -- Queries --

const summaryColumns = `s.id, s.command_id, s.command, s.status, s.reason, s.cycles, s.started_at, s.ended_at,
	(SELECT COUNT(*) FROM records r WHERE r.session_id = s.id)`

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM sessions s ORDER BY s.started_at DESC, s.rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetSession loads a session by id, or by a unique id prefix.
// The prefix is compared literally; '%' and '_' are not wildcards.
func (s *Store) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is empty: %w", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM sessions s WHERE s.id = ? OR substr(s.id, 1, length(?)) = ? LIMIT 2", id, id, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var matches []SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, sum)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	case len(matches) > 1 && matches[0].ID != id && matches[1].ID != id:
		return nil, fmt.Errorf("session prefix %q is ambiguous", id)
	}
	detail := &SessionDetail{SessionSummary: matches[0]}
	if len(matches) > 1 && matches[1].ID == id {
		detail.SessionSummary = matches[1]
	}

	if detail.Records, err = s.records(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Snapshots, err = s.snapshotCycles(ctx, detail.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// LoadSnapshot decompresses the snapshot taken at the start of cycle.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string, cycle int) (schemas.SceneSnapshot, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots WHERE session_id = ? AND cycle = ?", sessionID, cycle).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return schemas.SceneSnapshot{}, fmt.Errorf("snapshot %s/%d: %w", sessionID, cycle, ErrNotFound)
	}
	if err != nil {
		return schemas.SceneSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return schemas.SceneSnapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap schemas.SceneSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return schemas.SceneSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) records(ctx context.Context, sessionID string) ([]schemas.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle, step, success, error, cursor_x, cursor_y, started_at, ended_at
		 FROM records WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var out []schemas.ExecutionRecord
	for rows.Next() {
		var (
			rec            schemas.ExecutionRecord
			step           string
			started, ended string
		)
		if err := rows.Scan(&rec.Cycle, &step, &rec.Success, &rec.Error,
			&rec.CursorAfter.X, &rec.CursorAfter.Y, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(step), &rec.Step); err != nil {
			return nil, fmt.Errorf("decode step: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.EndedAt = parseTime(ended)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) snapshotCycles(ctx context.Context, sessionID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT cycle FROM snapshots WHERE session_id = ? ORDER BY cycle", sessionID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot index: %w", err)
	}
	defer rows.Close()
	var cycles []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan snapshot index: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (SessionSummary, error) {
	var (
		sum     SessionSummary
		status  string
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&sum.ID, &sum.CommandID, &sum.Command, &status, &sum.Reason,
		&sum.Cycles, &started, &ended, &sum.Steps); err != nil {
		return SessionSummary{}, fmt.Errorf("scan session: %w", err)
	}
	sum.Status = schemas.Outcome(status)
	sum.StartedAt = parseTime(started)
	if ended.Valid {
		t := parseTime(ended.String)
		sum.EndedAt = &t
	}
	return sum, nil
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
