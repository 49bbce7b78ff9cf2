// internal/store/store_test.go
package store

import (
	"context"
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
)

func openTestStore(t *testing.T, saveSnapshots bool) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "deskpilot.db")
	s, err := Open(context.Background(), path, saveSnapshots, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func testSession(id string) *agent.LoopSession {
	return &agent.LoopSession{
		ID:        id,
		Command:   schemas.Command{ID: "cmd-" + id, Text: "click the Submit button"},
		State:     schemas.OutcomeRunning,
		StartedAt: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
	}
}

func testSnapshot() schemas.SceneSnapshot {
	return schemas.SceneSnapshot{
		Elements: []schemas.ScreenElement{
			{Kind: schemas.KindText, Label: "Submit", Box: schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.1, H: 0.05}, Confidence: 0.95, Captions: []string{"button"}},
			{Kind: schemas.KindObject, Label: "button", Box: schemas.BoundingBox{X: 0.39, Y: 0.49, W: 0.12, H: 0.07}, Confidence: 0.88},
		},
		CapturedAt: time.Date(2026, 10, 15, 9, 30, 1, 0, time.UTC),
		Resolution: schemas.Resolution{Width: 1920, Height: 1080},
		Loading:    true,
	}
}

func record(cycle int, step schemas.ActionStep, ok bool) schemas.ExecutionRecord {
	start := time.Date(2026, 10, 15, 9, 30, cycle*2, 0, time.UTC)
	rec := schemas.ExecutionRecord{
		Cycle:       cycle,
		Step:        step,
		StartedAt:   start,
		EndedAt:     start.Add(300 * time.Millisecond),
		Success:     ok,
		CursorAfter: schemas.Cursor{X: 864, Y: 567},
	}
	if !ok {
		rec.Error = "injection refused"
	}
	return rec
}

func TestStore_SessionLifecycle(t *testing.T) {
	s, _ := openTestStore(t, true)
	ctx := context.Background()

	ls := testSession("a1b2c3")
	require.NoError(t, s.SessionStarted(ctx, ls))
	require.NoError(t, s.SnapshotTaken(ctx, ls.ID, 1, testSnapshot()))

	recs := []schemas.ExecutionRecord{
		record(1, schemas.MoveTo(0.45, 0.525), true),
		record(1, schemas.Click(schemas.ButtonLeft), false),
	}
	for _, r := range recs {
		require.NoError(t, s.StepExecuted(ctx, ls.ID, r))
	}
	ended := time.Date(2026, 10, 15, 9, 31, 0, 0, time.UTC)
	require.NoError(t, s.SessionEnded(ctx, &agent.Result{
		SessionID: ls.ID,
		Outcome:   schemas.OutcomeFailed,
		Reason:    "execution failed",
		Cycles:    1,
		EndedAt:   ended,
	}))

	detail, err := s.GetSession(ctx, ls.ID)
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFailed, detail.Status)
	assert.Equal(t, "execution failed", detail.Reason)
	assert.Equal(t, "click the Submit button", detail.Command)
	assert.Equal(t, 2, detail.Steps)
	assert.True(t, ls.StartedAt.Equal(detail.StartedAt))
	require.NotNil(t, detail.EndedAt)
	assert.True(t, ended.Equal(*detail.EndedAt))
	assert.Equal(t, []int{1}, detail.Snapshots)

	if diff := cmp.Diff(recs, detail.Records); diff != "" {
		t.Errorf("records differ after round trip (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	s, _ := openTestStore(t, true)
	ctx := context.Background()
	ls := testSession("snap")
	require.NoError(t, s.SessionStarted(ctx, ls))

	want := testSnapshot()
	require.NoError(t, s.SnapshotTaken(ctx, ls.ID, 3, want))

	got, err := s.LoadSnapshot(ctx, ls.ID, 3)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot differs after round trip (-want +got):\n%s", diff)
	}

	_, err = s.LoadSnapshot(ctx, ls.ID, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SnapshotsDisabled(t *testing.T) {
	s, _ := openTestStore(t, false)
	ctx := context.Background()
	ls := testSession("nosnap")
	require.NoError(t, s.SessionStarted(ctx, ls))
	require.NoError(t, s.SnapshotTaken(ctx, ls.ID, 1, testSnapshot()))

	_, err := s.LoadSnapshot(ctx, ls.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListAndPrefixLookup(t *testing.T) {
	s, _ := openTestStore(t, false)
	ctx := context.Background()

	for i, id := range []string{"aaa111", "aaa222", "bbb333"} {
		ls := testSession(id)
		ls.StartedAt = ls.StartedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SessionStarted(ctx, ls))
	}

	list, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bbb333", list[0].ID)
	assert.Equal(t, "aaa222", list[1].ID)
	assert.Nil(t, list[0].EndedAt)

	d, err := s.GetSession(ctx, "bbb")
	require.NoError(t, err)
	assert.Equal(t, "bbb333", d.ID)

	_, err = s.GetSession(ctx, "aaa")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = s.GetSession(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PrefixLookupIsLiteral(t *testing.T) {
	s, _ := openTestStore(t, false)
	ctx := context.Background()
	for _, id := range []string{"a_c111", "abc222", "a%z333"} {
		require.NoError(t, s.SessionStarted(ctx, testSession(id)))
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "a_", want: "a_c111"},
		{prefix: "ab", want: "abc222"},
		{prefix: "a%", want: "a%z333"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			d, err := s.GetSession(ctx, tt.prefix)
			require.NoError(t, err, "wildcards in the prefix must not widen the match")
			assert.Equal(t, tt.want, d.ID)
		})
	}

	_, err := s.GetSession(ctx, "%")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSession(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deskpilot.db")
	s, err := Open(ctx, path, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.SessionStarted(ctx, testSession("crashed")))
	require.NoError(t, s.SessionStarted(ctx, testSession("finished")))
	require.NoError(t, s.SessionEnded(ctx, &agent.Result{SessionID: "finished", Outcome: schemas.OutcomeCompleted, EndedAt: time.Now()}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.RecoverInterrupted(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err := reopened.GetSession(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFailed, d.Status)
	assert.Equal(t, InterruptedReason, d.Reason)

	d, err = reopened.GetSession(ctx, "finished")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeCompleted, d.Status)
}

// setOwner pretends a session was started by another process.
func setOwner(t *testing.T, s *Store, id string, pid int) {
	t.Helper()
	_, err := s.db.Exec("UPDATE sessions SET owner_pid = ? WHERE id = ?", pid, id)
	require.NoError(t, err)
}

// exitedPID returns the pid of a process that has already been reaped.
func exitedPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestStore_RecoverInterruptedSparesLiveOwners(t *testing.T) {
	s, _ := openTestStore(t, false)
	ctx := context.Background()

	live := testSession("live")
	live.StartedAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.SessionStarted(ctx, live))
	setOwner(t, s, "live", os.Getppid())

	dead := testSession("dead")
	dead.StartedAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.SessionStarted(ctx, dead))
	setOwner(t, s, "dead", exitedPID(t))

	n, err := s.RecoverInterrupted(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err := s.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeRunning, d.Status, "a session another process is still running stays untouched")
	d, err = s.GetSession(ctx, "dead")
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFailed, d.Status)

	// Past the session timeout nothing can still be running it.
	n, err = s.RecoverInterrupted(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	d, err = s.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, InterruptedReason, d.Reason)
}

func TestStore_UpgradesVersionOneDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaV1)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO schema_version(version) VALUES(1)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO sessions(id, command_id, command, status, started_at) VALUES('old', 'c', 'click', 'running', ?)",
		formatTime(time.Now()))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(ctx, path, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	var v int
	require.NoError(t, s.db.QueryRow("SELECT version FROM schema_version").Scan(&v))
	assert.Equal(t, schemaVersion, v)

	// Rows from before owner tracking have no owner and are recovered.
	n, err := s.RecoverInterrupted(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
