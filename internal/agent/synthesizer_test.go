// internal/agent/synthesizer_test.go
package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/humanoid"
)

var hd = schemas.Resolution{Width: 1920, Height: 1080}

func newTestSynthesizer(t *testing.T, in *fakeInput) *Synthesizer {
	return NewSynthesizer(humanoid.NewTestHumanoid(in, 42), zaptest.NewLogger(t))
}

func TestSynthesizer_MoveToDenormalizesAgainstResolution(t *testing.T) {
	in := &fakeInput{}
	s := newTestSynthesizer(t, in)

	rec, cur, err := s.Execute(context.Background(), schemas.MoveTo(0.45, 0.525), schemas.Cursor{X: 0, Y: 0}, hd)
	require.NoError(t, err)
	assert.Equal(t, schemas.Cursor{X: 864, Y: 567}, cur)
	assert.Equal(t, cur, rec.CursorAfter)
	assert.True(t, rec.Success)
	assert.Empty(t, rec.Error)

	// The same normalized point on a smaller screen lands elsewhere.
	_, cur, err = s.Execute(context.Background(), schemas.MoveTo(0.45, 0.525), cur, schemas.Resolution{Width: 1280, Height: 720})
	require.NoError(t, err)
	assert.Equal(t, schemas.Cursor{X: 576, Y: 378}, cur)
}

func TestSynthesizer_MoveToClampsEdges(t *testing.T) {
	s := newTestSynthesizer(t, &fakeInput{})
	_, cur, err := s.Execute(context.Background(), schemas.MoveTo(1, 1), schemas.Cursor{X: 100, Y: 100}, hd)
	require.NoError(t, err)
	assert.Equal(t, schemas.Cursor{X: 1919, Y: 1079}, cur)
}

func TestSynthesizer_Primitives(t *testing.T) {
	in := &fakeInput{}
	s := newTestSynthesizer(t, in)
	ctx := context.Background()
	start := schemas.Cursor{X: 5, Y: 6}

	for _, step := range []schemas.ActionStep{
		schemas.Click(""),
		schemas.Click(schemas.ButtonRight),
		schemas.TypeText("ok"),
		schemas.KeyPress("ctrl+s"),
		schemas.Scroll(0, -2),
	} {
		rec, cur, err := s.Execute(ctx, step, start, hd)
		require.NoError(t, err, step.String())
		assert.Equal(t, start, cur, "%s must not move the pointer", step)
		assert.Equal(t, step, rec.Step)
	}
	assert.Equal(t, []schemas.MouseButton{schemas.ButtonLeft, schemas.ButtonRight}, in.clicks)
	assert.Equal(t, "ok", in.typed())
	assert.Equal(t, []string{"ctrl+s"}, in.keys)
}

func TestSynthesizer_WaitSleepsExactly(t *testing.T) {
	in := &fakeInput{}
	s := newTestSynthesizer(t, in)
	_, _, err := s.Execute(context.Background(), schemas.Wait(250), schemas.Cursor{}, hd)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, in.slept)
}

func TestSynthesizer_GiveUpDoesNothing(t *testing.T) {
	in := &fakeInput{}
	s := newTestSynthesizer(t, in)
	rec, cur, err := s.Execute(context.Background(), schemas.GiveUp("cannot find it"), schemas.Cursor{X: 1, Y: 2}, hd)
	require.NoError(t, err)
	assert.True(t, rec.Success)
	assert.Equal(t, schemas.Cursor{X: 1, Y: 2}, cur)
	assert.Empty(t, in.moves)
	assert.Zero(t, in.slept)
}

func TestSynthesizer_InjectionFailure(t *testing.T) {
	in := &fakeInput{failOn: "key"}
	s := newTestSynthesizer(t, in)

	rec, _, err := s.Execute(context.Background(), schemas.KeyPress("enter"), schemas.Cursor{}, hd)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrCodeInjectionFailure, execErr.Code)
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "injection refused")
}

func TestSynthesizer_UnknownStep(t *testing.T) {
	s := newTestSynthesizer(t, &fakeInput{})
	_, _, err := s.Execute(context.Background(), schemas.ActionStep{Kind: "teleport"}, schemas.Cursor{}, hd)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrCodeUnknownStep, execErr.Code)
}
