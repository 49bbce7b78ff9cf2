// File: cmd/failsafe.go
package cmd

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/failsafe"
)

type failsafeKey struct{}

// Failsafe owns the process-wide abort monitor. Its sources stay registered
// between sessions, so a SIGUSR1 with no session running is logged and ignored
// rather than taking the default action of killing the process.
type Failsafe struct {
	mu      sync.Mutex
	monitor *failsafe.Monitor
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFailsafe returns an idle Failsafe. Start it once the configuration is known.
func NewFailsafe() *Failsafe {
	return &Failsafe{}
}

// WithFailsafe makes f the monitor every command run under ctx shares.
func WithFailsafe(ctx context.Context, f *Failsafe) context.Context {
	return context.WithValue(ctx, failsafeKey{}, f)
}

// FailsafeFrom returns the Failsafe attached by WithFailsafe, if any.
func FailsafeFrom(ctx context.Context) *Failsafe {
	f, _ := ctx.Value(failsafeKey{}).(*Failsafe)
	return f
}

// Start builds the monitor from cfg and starts listening until ctx is done or
// Stop is called. The first successful call fixes the sources; later calls
// return the running monitor.
func (f *Failsafe) Start(ctx context.Context, cfg config.FailsafeConfig, logger *zap.Logger) (*failsafe.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.monitor != nil {
		return f.monitor, nil
	}

	sources, err := failsafeSources(cfg, logger)
	if err != nil {
		return nil, err
	}
	monitor := failsafe.NewMonitor(logger, sources...)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = monitor.Run(runCtx)
	}()

	f.monitor, f.cancel, f.done = monitor, cancel, done
	logger.Debug("Failsafe monitor started.", zap.Int("sources", len(sources)))
	return monitor, nil
}

// Monitor returns the running monitor, or nil before Start.
func (f *Failsafe) Monitor() *failsafe.Monitor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monitor
}

// Stop shuts the monitor down and waits for its sources to return.
func (f *Failsafe) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.monitor, f.cancel, f.done = nil, nil, nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func failsafeSources(cfg config.FailsafeConfig, logger *zap.Logger) ([]failsafe.Source, error) {
	var sources []failsafe.Source
	if len(cfg.Signals) > 0 {
		sig, err := failsafe.NewSignalSource(cfg.Signals)
		if err != nil {
			return nil, err
		}
		sig.Register()
		sources = append(sources, sig)
	}
	if cfg.AbortFile != "" {
		sources = append(sources, failsafe.NewFileSource(cfg.AbortFile, logger))
	}
	return sources, nil
}
