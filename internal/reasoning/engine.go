// internal/reasoning/engine.go
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/llmutil"
)

// Options configures an Engine.
type Options struct {
	HistoryWindow   int
	MaxPlanAttempts int
	TargetMargin    float64
	MaxWait         time.Duration
	AllowedHotkeys  []string
	UnsafeMode      bool
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

// OptionsFromConfig maps the reasoning and llm sections of the configuration.
func OptionsFromConfig(r config.ReasoningConfig, l config.LLMConfig) Options {
	return Options{
		HistoryWindow:   r.HistoryWindow,
		MaxPlanAttempts: r.MaxPlanAttempts,
		TargetMargin:    r.TargetMargin,
		MaxWait:         r.MaxWait,
		AllowedHotkeys:  r.AllowedHotkeys,
		UnsafeMode:      r.UnsafeMode,
		Temperature:     l.Temperature,
		MaxTokens:       l.MaxTokens,
		Timeout:         l.Timeout,
	}
}

// Engine asks the language model for the next steps and validates its answer.
type Engine struct {
	llm       schemas.LLMClient
	opts      Options
	validator *Validator
	logger    *zap.Logger
}

// NewEngine creates an Engine. At least one attempt is always made.
func NewEngine(llm schemas.LLMClient, opts Options, logger *zap.Logger) *Engine {
	if opts.MaxPlanAttempts < 1 {
		opts.MaxPlanAttempts = 1
	}
	return &Engine{
		llm:       llm,
		opts:      opts,
		validator: NewValidator(opts),
		logger:    logger.Named("reasoning"),
	}
}

// Plan returns a validated plan for the current snapshot. When the model keeps
// failing it degrades to a single GiveUp step instead of returning an error;
// a *PlanningError is returned only once ctx is done.
func (e *Engine) Plan(ctx context.Context, cmd schemas.Command, snap schemas.SceneSnapshot, history []schemas.ExecutionRecord) (schemas.ActionPlan, error) {
	base := buildUserPrompt(cmd, snap, history, e.opts.HistoryWindow)
	prompt := base

	var lastErr error
	modelFailed := false
	for attempt := 1; attempt <= e.opts.MaxPlanAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return schemas.ActionPlan{}, &PlanningError{Attempts: attempt - 1, Err: err}
		}

		raw, err := e.generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return schemas.ActionPlan{}, &PlanningError{Attempts: attempt, Err: err}
			}
			e.logger.Warn("Model invocation failed.", zap.Int("attempt", attempt), zap.Error(err))
			lastErr, modelFailed = err, true
			continue
		}

		plan, err := e.parse(raw, snap)
		if err == nil {
			e.logger.Debug("Plan accepted.",
				zap.Int("attempt", attempt),
				zap.Int("steps", len(plan.Steps)),
				zap.String("rationale", plan.Rationale),
			)
			return plan, nil
		}

		e.logger.Warn("Plan rejected.",
			zap.Int("attempt", attempt),
			zap.Error(err),
			zap.String("response", llmutil.Truncate(raw, 500)),
		)
		lastErr, modelFailed = err, false
		prompt = buildCorrectivePrompt(base, raw, err)
	}

	reason := giveUpReason(lastErr, modelFailed)
	e.logger.Info("Planning budget exhausted, giving up.", zap.String("reason", reason))
	return schemas.ActionPlan{
		Steps:     []schemas.ActionStep{schemas.GiveUp(reason)},
		Rationale: fmt.Sprintf("no acceptable plan after %d attempt(s)", e.opts.MaxPlanAttempts),
	}, nil
}

func (e *Engine) generate(ctx context.Context, userPrompt string) (string, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Options: schemas.GenerationOptions{
			Temperature:     e.opts.Temperature,
			ForceJSONFormat: true,
			MaxTokens:       e.opts.MaxTokens,
		},
	}
	out, err := e.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	return out, nil
}

func (e *Engine) parse(raw string, snap schemas.SceneSnapshot) (schemas.ActionPlan, error) {
	resp, err := llmutil.ParseJSONResponse[planResponse](raw)
	if err != nil {
		return schemas.ActionPlan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return e.validator.Build(resp, snap)
}

func giveUpReason(lastErr error, modelFailed bool) string {
	switch {
	case lastErr == nil:
		return "planning failed"
	case modelFailed:
		return "planning failed: " + lastErr.Error()
	case errors.Is(lastErr, ErrHallucinatedTarget):
		return "no valid target"
	default:
		return "invalid plan: " + strings.Replace(lastErr.Error(), ErrInvalidPlan.Error()+": ", "", 1)
	}
}
