// internal/input/injector.go
package input

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/humanoid"
)

// Injector is a humanoid.Executor backed by the operating system.
type Injector interface {
	humanoid.Executor
	humanoid.CursorLocator
}

// New returns the injector selected by cfg.Backend.
func New(cfg config.InputConfig, logger *zap.Logger) (Injector, error) {
	switch cfg.Backend {
	case config.InputDryRun:
		return NewDryRunInjector(logger), nil
	case config.InputXdotool:
		return NewXdotoolInjector(cfg.XdotoolPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown input backend %q. Supported: [%s, %s]", cfg.Backend, config.InputDryRun, config.InputXdotool)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
