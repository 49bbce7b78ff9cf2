// internal/agent/controller.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/failsafe"
	"github.com/xkilldash9x/deskpilot/internal/humanoid"
)

// Perceiver produces the scene snapshot for a cycle.
type Perceiver interface {
	Capture(ctx context.Context) (schemas.SceneSnapshot, error)
}

// Planner turns a command and a scene into an action plan.
type Planner interface {
	Plan(ctx context.Context, cmd schemas.Command, snap schemas.SceneSnapshot, history []schemas.ExecutionRecord) (schemas.ActionPlan, error)
}

// StepExecutor performs one action step.
type StepExecutor interface {
	Execute(ctx context.Context, step schemas.ActionStep, cursor schemas.Cursor, res schemas.Resolution) (schemas.ExecutionRecord, schemas.Cursor, error)
}

// Guard receives the token of the running session so aborts can reach it.
type Guard interface {
	Arm(token *failsafe.CancellationToken)
	Disarm(token *failsafe.CancellationToken)
}

// Dependencies are the collaborators a Controller drives.
type Dependencies struct {
	Perceiver Perceiver
	Planner   Planner
	Executor  StepExecutor
	Guard     Guard
	// Locator is optional; without it the pointer is assumed to start at the screen center.
	Locator   humanoid.CursorLocator
	Recorders []Recorder
}

// Options is the termination and pacing policy of the loop.
type Options struct {
	CycleCeiling     int
	StuckWindow      int
	MinCycleInterval time.Duration
	SettleDelay      time.Duration
	SessionTimeout   time.Duration
}

func OptionsFromConfig(cfg config.LoopConfig) Options {
	return Options{
		CycleCeiling:     cfg.CycleCeiling,
		StuckWindow:      cfg.StuckWindow,
		MinCycleInterval: cfg.MinCycleInterval,
		SettleDelay:      cfg.SettleDelay,
		SessionTimeout:   cfg.SessionTimeout,
	}
}

// Controller runs the perceive, plan, act loop for one command at a time.
type Controller struct {
	deps    Dependencies
	opts    Options
	logger  *zap.Logger
	running atomic.Bool
}

// NewController creates a controller. Non-positive ceiling or window fall back to 20 and 3.
func NewController(deps Dependencies, opts Options, logger *zap.Logger) *Controller {
	if opts.CycleCeiling <= 0 {
		opts.CycleCeiling = 20
	}
	if opts.StuckWindow <= 0 {
		opts.StuckWindow = 3
	}
	return &Controller{deps: deps, opts: opts, logger: logger.Named("controller")}
}

// Running reports whether a session is in progress.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// cycleResult is how a cycle tells the loop whether to continue.
type cycleResult struct {
	next   schemas.Outcome
	reason string
	err    error
}

var continueLoop = cycleResult{next: schemas.OutcomeRunning}

// loopState is carried from one cycle to the next.
type loopState struct {
	cursor  *schemas.Cursor
	limiter *rate.Limiter
	stuck   *stuckDetector
	logger  *zap.Logger
}

// Run executes cmd until it completes, fails, or is aborted. The Result is
// non-nil whenever a session was started. A Failed session also returns a
// *SessionError; an Aborted one does not.
func (c *Controller) Run(ctx context.Context, cmd schemas.Command) (*Result, error) {
	if strings.TrimSpace(cmd.Text) == "" {
		return nil, errors.New("command text is empty")
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}
	defer c.running.Store(false)

	s := newSession(cmd)
	logger := c.logger.With(zap.String("session_id", s.ID))
	c.deps.Guard.Arm(s.Token)
	defer c.deps.Guard.Disarm(s.Token)

	// Recorders keep working through shutdown so the final state is persisted.
	recordCtx := context.WithoutCancel(ctx)

	sessionCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.opts.SessionTimeout > 0 {
		sessionCtx, cancel = context.WithTimeout(ctx, c.opts.SessionTimeout)
	}
	defer cancel()

	s.transition(schemas.OutcomeRunning, "")
	logger.Info("Session started.", zap.String("command", cmd.Text), zap.String("command_id", cmd.ID))
	c.notify(logger, "session_started", func(r Recorder) error { return r.SessionStarted(recordCtx, s) })

	st := &loopState{
		limiter: newLimiter(c.opts.MinCycleInterval),
		stuck:   newStuckDetector(c.opts.StuckWindow),
		logger:  logger,
	}
	var res cycleResult
	for {
		res = c.safeCycle(sessionCtx, ctx, recordCtx, s, st)
		if res.next != schemas.OutcomeRunning {
			break
		}
	}
	s.transition(res.next, res.reason)

	result := s.result()
	c.notify(logger, "session_ended", func(r Recorder) error { return r.SessionEnded(recordCtx, result) })

	fields := []zap.Field{
		zap.String("outcome", string(result.Outcome)),
		zap.String("reason", result.Reason),
		zap.Int("cycles", result.Cycles),
		zap.Int("steps", len(result.History)),
	}
	switch result.Outcome {
	case schemas.OutcomeFailed:
		logger.Error("Session failed.", append(fields, zap.Error(res.err))...)
		return result, &SessionError{
			SessionID:    s.ID,
			Cycle:        s.Cycle,
			LastSnapshot: s.LastSnapshot,
			LastStep:     s.LastStep,
			Err:          res.err,
		}
	case schemas.OutcomeAborted:
		logger.Warn("Session aborted.", fields...)
	default:
		logger.Info("Session completed.", fields...)
	}
	return result, nil
}

// safeCycle runs one cycle and turns a panic into a failure.
func (c *Controller) safeCycle(ctx, parent, recordCtx context.Context, s *LoopSession, st *loopState) (res cycleResult) {
	defer func() {
		if r := recover(); r != nil {
			st.logger.Error("Panic recovered in cycle.",
				zap.Int("cycle", s.Cycle),
				zap.Any("panic_value", r),
				zap.String("stack", string(debug.Stack())))
			err := fmt.Errorf("panic in cycle %d: %v", s.Cycle, r)
			res = cycleResult{next: schemas.OutcomeFailed, reason: err.Error(), err: err}
		}
	}()
	return c.runCycle(ctx, parent, recordCtx, s, st)
}

func (c *Controller) runCycle(ctx, parent, recordCtx context.Context, s *LoopSession, st *loopState) cycleResult {
	if res, tripped := checkpoint(s.Token); tripped {
		return res
	}
	if err := pace(ctx, st.limiter, s.Token); err != nil {
		return interrupted(ctx, parent, err)
	}
	// An abort may have landed while pacing.
	if res, tripped := checkpoint(s.Token); tripped {
		return res
	}
	s.Cycle++
	logger := st.logger.With(zap.Int("cycle", s.Cycle))

	snap, err := c.deps.Perceiver.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx, parent, err)
		}
		return cycleResult{next: schemas.OutcomeFailed, reason: "perception failed: " + err.Error(), err: err}
	}
	s.LastSnapshot = &snap
	c.notify(logger, "snapshot", func(r Recorder) error { return r.SnapshotTaken(recordCtx, s.ID, s.Cycle, snap) })
	logger.Debug("Scene perceived.",
		zap.Int("elements", len(snap.Elements)),
		zap.Bool("loading", snap.Loading),
		zap.Bool("error_dialog", snap.ErrorDialog))

	if st.cursor == nil {
		cur := c.initialCursor(ctx, snap.Resolution, logger)
		st.cursor = &cur
	}

	if st.stuck.observe(snap.ElementSetKey()) {
		reason := st.stuck.reason()
		return cycleResult{next: schemas.OutcomeFailed, reason: reason, err: fmt.Errorf("%w: %s", ErrStuck, reason)}
	}

	plan, err := c.deps.Planner.Plan(ctx, s.Command, snap, s.History)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx, parent, err)
		}
		return cycleResult{next: schemas.OutcomeFailed, reason: "planning failed: " + err.Error(), err: err}
	}
	logger.Info("Executing plan.", zap.Int("steps", len(plan.Steps)), zap.String("rationale", plan.Rationale))

	executed := make([]schemas.ActionStep, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if res, tripped := checkpoint(s.Token); tripped {
			return res
		}
		current := step
		s.LastStep = &current

		rec, cursor, err := c.deps.Executor.Execute(ctx, step, *st.cursor, snap.Resolution)
		rec.Cycle = s.Cycle
		*st.cursor = cursor
		s.append(rec)
		c.notify(logger, "step", func(r Recorder) error { return r.StepExecuted(recordCtx, s.ID, rec) })
		executed = append(executed, step)

		if err != nil {
			if ctx.Err() != nil {
				return interrupted(ctx, parent, err)
			}
			return cycleResult{next: schemas.OutcomeFailed, reason: "execution failed: " + err.Error(), err: err}
		}
		if step.Kind == schemas.ActionGiveUp {
			if step.Reason == "" {
				return cycleResult{next: schemas.OutcomeCompleted, reason: "task completed"}
			}
			return cycleResult{
				next:   schemas.OutcomeFailed,
				reason: step.Reason,
				err:    fmt.Errorf("%w: %s", ErrGaveUp, step.Reason),
			}
		}
	}
	st.stuck.executed(executed)

	if s.Cycle >= c.opts.CycleCeiling {
		return cycleResult{next: schemas.OutcomeFailed, reason: ErrCycleCeiling.Error(), err: ErrCycleCeiling}
	}
	if err := c.settle(ctx, s.Token); err != nil {
		return interrupted(ctx, parent, err)
	}
	return continueLoop
}

// checkpoint reports an Aborted result once the token has tripped.
func checkpoint(token *failsafe.CancellationToken) (cycleResult, bool) {
	if !token.Tripped() {
		return cycleResult{}, false
	}
	reason, _ := token.Reason()
	if reason == "" {
		reason = "abort requested"
	}
	return cycleResult{next: schemas.OutcomeAborted, reason: reason}, true
}

// interrupted classifies a context failure. Process shutdown aborts the
// session; the session's own deadline fails it.
func interrupted(ctx, parent context.Context, cause error) cycleResult {
	if parent.Err() != nil {
		return cycleResult{next: schemas.OutcomeAborted, reason: "shutdown: " + parent.Err().Error()}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return cycleResult{next: schemas.OutcomeFailed, reason: ErrSessionTimeout.Error(), err: fmt.Errorf("%w: %v", ErrSessionTimeout, cause)}
	}
	return cycleResult{next: schemas.OutcomeFailed, reason: cause.Error(), err: cause}
}

// settle gives the UI time to react before the next capture. An abort ends
// the wait early; the next checkpoint handles it.
func (c *Controller) settle(ctx context.Context, token *failsafe.CancellationToken) error {
	if c.opts.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return nil
	case <-t.C:
		return nil
	}
}

func (c *Controller) initialCursor(ctx context.Context, res schemas.Resolution, logger *zap.Logger) schemas.Cursor {
	if c.deps.Locator != nil {
		cur, err := c.deps.Locator.CursorPosition(ctx)
		if err == nil && cur.X >= 0 && cur.Y >= 0 && cur.X < res.Width && cur.Y < res.Height {
			return cur
		}
		logger.Debug("Pointer position unavailable; assuming screen center.", zap.Error(err))
	}
	x, y := res.Center()
	return schemas.Cursor{X: x, Y: y}
}

func (c *Controller) notify(logger *zap.Logger, event string, fn func(Recorder) error) {
	for _, r := range c.deps.Recorders {
		if err := fn(r); err != nil {
			logger.Warn("Recorder failed.", zap.String("event", event), zap.Error(err))
		}
	}
}

// pace waits out the minimum cycle interval. A tripped token ends the wait
// and hands the reservation back.
func pace(ctx context.Context, limiter *rate.Limiter, token *failsafe.CancellationToken) error {
	r := limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-token.Done():
		r.Cancel()
		return nil
	case <-t.C:
		return nil
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
