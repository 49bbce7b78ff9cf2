// internal/agent/synthesizer.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/humanoid"
)

// stepHandler executes one step and returns the cursor afterwards.
type stepHandler func(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, res schemas.Resolution) (schemas.Cursor, error)

// Synthesizer turns validated ActionSteps into humanoid input.
type Synthesizer struct {
	logger   *zap.Logger
	humanoid *humanoid.Humanoid
	handlers map[schemas.ActionKind]stepHandler
}

// NewSynthesizer creates a Synthesizer that drives h.
func NewSynthesizer(h *humanoid.Humanoid, logger *zap.Logger) *Synthesizer {
	s := &Synthesizer{
		logger:   logger.Named("synthesizer"),
		humanoid: h,
		handlers: make(map[schemas.ActionKind]stepHandler),
	}
	s.registerHandlers()
	return s
}

func (s *Synthesizer) registerHandlers() {
	s.handlers[schemas.ActionMoveTo] = s.handleMoveTo
	s.handlers[schemas.ActionClick] = s.handleClick
	s.handlers[schemas.ActionTypeText] = s.handleTypeText
	s.handlers[schemas.ActionKeyPress] = s.handleKeyPress
	s.handlers[schemas.ActionScroll] = s.handleScroll
	s.handlers[schemas.ActionWait] = s.handleWait
	s.handlers[schemas.ActionGiveUp] = s.handleGiveUp
}

// Execute runs step starting from cursor. Coordinates are denormalized against
// res, which must be the resolution of the snapshot the step was planned on.
// The returned record is always populated; the error is an *ExecutionError.
func (s *Synthesizer) Execute(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, res schemas.Resolution) (schemas.ExecutionRecord, schemas.Cursor, error) {
	rec := schemas.ExecutionRecord{Step: step, StartedAt: time.Now()}

	handler, ok := s.handlers[step.Kind]
	if !ok {
		err := &ExecutionError{Code: ErrCodeUnknownStep, Step: step, Err: fmt.Errorf("no handler for step kind %q", step.Kind)}
		return s.finish(rec, cursor, err), cursor, err
	}

	after, err := handler(ctx, step, cursor, res)
	if err != nil {
		execErr := &ExecutionError{Code: ErrCodeInjectionFailure, Step: step, Err: err}
		if ctx.Err() == nil {
			s.logger.Warn("Step execution failed.", zap.Stringer("step", step), zap.Error(err))
		}
		return s.finish(rec, after, execErr), after, execErr
	}
	s.logger.Debug("Step executed.", zap.Stringer("step", step), zap.Int("x", after.X), zap.Int("y", after.Y))
	return s.finish(rec, after, nil), after, nil
}

func (s *Synthesizer) finish(rec schemas.ExecutionRecord, cursor schemas.Cursor, err error) schemas.ExecutionRecord {
	rec.EndedAt = time.Now()
	rec.CursorAfter = cursor
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func (s *Synthesizer) handleMoveTo(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, res schemas.Resolution) (schemas.Cursor, error) {
	x, y := res.Denormalize(step.X, step.Y)
	return s.humanoid.MoveTo(ctx, cursor, schemas.Cursor{X: x, Y: y}, res)
}

func (s *Synthesizer) handleClick(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	button := step.Button
	if button == "" {
		button = schemas.ButtonLeft
	}
	return cursor, s.humanoid.Click(ctx, button)
}

func (s *Synthesizer) handleTypeText(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	return cursor, s.humanoid.Type(ctx, step.Text)
}

func (s *Synthesizer) handleKeyPress(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	return cursor, s.humanoid.KeyPress(ctx, step.Key)
}

func (s *Synthesizer) handleScroll(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	return cursor, s.humanoid.Scroll(ctx, step.DX, step.DY)
}

func (s *Synthesizer) handleWait(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	return cursor, s.humanoid.Wait(ctx, step.DurationMs)
}

// GiveUp performs no input.
func (s *Synthesizer) handleGiveUp(_ context.Context, _ schemas.ActionStep, cursor schemas.Cursor, _ schemas.Resolution) (schemas.Cursor, error) {
	return cursor, nil
}
