// File: cmd/components.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/failsafe"
	"github.com/xkilldash9x/deskpilot/internal/humanoid"
	"github.com/xkilldash9x/deskpilot/internal/input"
	"github.com/xkilldash9x/deskpilot/internal/llmclient"
	"github.com/xkilldash9x/deskpilot/internal/perception"
	"github.com/xkilldash9x/deskpilot/internal/reasoning"
	"github.com/xkilldash9x/deskpilot/internal/store"
	"github.com/xkilldash9x/deskpilot/internal/vision"
)

// components holds everything one `run` invocation needs, so it can be shut
// down in one place.
type components struct {
	Controller *agent.Controller
	Monitor    *failsafe.Monitor
	LLM        schemas.LLMClient
	Store      *store.Store
	Audit      *store.AuditLog
	logger     *zap.Logger
}

// Shutdown releases resources in reverse order of creation.
func (c *components) Shutdown() {
	var errs []error
	if c.Audit != nil {
		errs = append(errs, c.Audit.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	if c.LLM != nil {
		errs = append(errs, c.LLM.Close())
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Warn("Error during component shutdown.", zap.Error(err))
	}
}

// initializeComponents builds the full perceive, plan, act pipeline from cfg.
// monitor is the process-wide failsafe; it outlives the components.
func initializeComponents(ctx context.Context, cfg *config.Config, monitor *failsafe.Monitor, logger *zap.Logger) (_ *components, err error) {
	c := &components{Monitor: monitor, logger: logger}
	defer func() {
		if err != nil {
			c.Shutdown()
		}
	}()

	var recorders []agent.Recorder
	if cfg.Store.Enabled {
		if c.Store, err = store.Open(ctx, cfg.Store.Path, cfg.Store.SaveSnapshots, logger); err != nil {
			return nil, err
		}
		n, err := c.Store.RecoverInterrupted(ctx, recoveryCutoff(cfg.Loop.SessionTimeout))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logger.Warn("Marked sessions left running by an earlier process as interrupted.", zap.Int("count", n))
		}
		recorders = append(recorders, c.Store)
	}
	if cfg.Store.AuditLog != "" {
		c.Audit = store.NewAuditLog(cfg.Store)
		recorders = append(recorders, c.Audit)
	}

	if c.LLM, err = llmclient.NewClient(cfg.LLM, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	engine := reasoning.NewEngine(c.LLM, reasoning.OptionsFromConfig(cfg.Reasoning, cfg.LLM), logger)

	adapters, err := vision.NewAdapters(cfg.Vision, logger)
	if err != nil {
		return nil, err
	}
	pipeline := perception.NewPipeline(adapters.Capturer, adapters.Recognizer, adapters.Detector,
		perception.OptionsFromConfig(cfg.Perception), logger)

	injector, err := input.New(cfg.Input, logger)
	if err != nil {
		return nil, err
	}
	synth := agent.NewSynthesizer(humanoid.New(cfg.Humanoid, logger, injector), logger)

	c.Controller = agent.NewController(agent.Dependencies{
		Perceiver: pipeline,
		Planner:   engine,
		Executor:  synth,
		Guard:     c.Monitor,
		Locator:   injector,
		Recorders: recorders,
	}, agent.OptionsFromConfig(cfg.Loop), logger)

	return c, nil
}

// recoveryCutoff is the start time before which a running session must be
// stale: its own deadline would have ended it by now.
func recoveryCutoff(sessionTimeout time.Duration) time.Time {
	if sessionTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-sessionTimeout)
}
