// internal/agent/fakes_test.go
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// fakeInput is an OS input layer that records primitives and never sleeps.
type fakeInput struct {
	mu     sync.Mutex
	moves  []schemas.Cursor
	clicks []schemas.MouseButton
	keys   []string
	chars  []rune
	// onChar runs before each character is recorded.
	onChar func(r rune)
	failOn string
	cursor *schemas.Cursor
	slept  time.Duration
}

func (f *fakeInput) fail(kind string) error {
	if f.failOn == kind {
		return errors.New("injection refused: " + kind)
	}
	return nil
}

func (f *fakeInput) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.slept += d
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeInput) MoveCursorTo(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("move"); err != nil {
		return err
	}
	f.moves = append(f.moves, schemas.Cursor{X: x, Y: y})
	return nil
}

func (f *fakeInput) Click(_ context.Context, b schemas.MouseButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("click"); err != nil {
		return err
	}
	f.clicks = append(f.clicks, b)
	return nil
}

func (f *fakeInput) SendKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("key"); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeInput) TypeChar(_ context.Context, r rune) error {
	if f.onChar != nil {
		f.onChar(r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("char"); err != nil {
		return err
	}
	f.chars = append(f.chars, r)
	return nil
}

func (f *fakeInput) Scroll(context.Context, int, int) error { return f.fail("scroll") }

func (f *fakeInput) CursorPosition(context.Context) (schemas.Cursor, error) {
	if f.cursor == nil {
		return schemas.Cursor{}, errors.New("pointer position unknown")
	}
	return *f.cursor, nil
}

func (f *fakeInput) typed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.chars)
}

// scriptedPerceiver returns the same snapshot every cycle unless next is set.
type scriptedPerceiver struct {
	mu    sync.Mutex
	calls int
	snap  schemas.SceneSnapshot
	next  func(call int) (schemas.SceneSnapshot, error)
}

func (p *scriptedPerceiver) Capture(context.Context) (schemas.SceneSnapshot, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	if p.next != nil {
		return p.next(call)
	}
	return p.snap, nil
}

func (p *scriptedPerceiver) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// planFunc adapts a function to Planner.
type planFunc func(ctx context.Context, cmd schemas.Command, snap schemas.SceneSnapshot, history []schemas.ExecutionRecord) (schemas.ActionPlan, error)

func (f planFunc) Plan(ctx context.Context, cmd schemas.Command, snap schemas.SceneSnapshot, history []schemas.ExecutionRecord) (schemas.ActionPlan, error) {
	return f(ctx, cmd, snap, history)
}

// memRecorder keeps everything it is told.
type memRecorder struct {
	mu        sync.Mutex
	started   []string
	snapshots int
	records   []schemas.ExecutionRecord
	ended     []*Result
	err       error
}

func (r *memRecorder) SessionStarted(_ context.Context, s *LoopSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, s.ID)
	return r.err
}

func (r *memRecorder) SnapshotTaken(context.Context, string, int, schemas.SceneSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
	return r.err
}

func (r *memRecorder) StepExecuted(_ context.Context, _ string, rec schemas.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *memRecorder) SessionEnded(_ context.Context, res *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, res)
	return r.err
}

func submitScene() schemas.SceneSnapshot {
	return schemas.SceneSnapshot{
		Resolution: schemas.Resolution{Width: 1920, Height: 1080},
		Elements: []schemas.ScreenElement{{
			Kind:       schemas.KindText,
			Label:      "Submit",
			Box:        schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.1, H: 0.05},
			Confidence: 0.95,
		}},
		CapturedAt: time.Now(),
	}
}
