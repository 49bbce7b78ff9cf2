// File: internal/failsafe/monitor.go
package failsafe

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Trigger describes one abort request.
type Trigger struct {
	Source string
	Detail string
	At     time.Time
}

// Source is something the user can use to request an abort: a hotkey hook,
// an OS signal, an abort file. Listen blocks until ctx is done and calls fire
// for every abort request it observes.
type Source interface {
	Name() string
	Listen(ctx context.Context, fire func(Trigger)) error
}

// Monitor listens to every configured Source for the lifetime of the process
// and trips the token of the active session, if there is one. The armed token
// is the only state it shares with the loop.
type Monitor struct {
	logger  *zap.Logger
	sources []Source
	active  atomic.Pointer[CancellationToken]
	fired   atomic.Int64
}

// NewMonitor creates a monitor over the given sources.
func NewMonitor(logger *zap.Logger, sources ...Source) *Monitor {
	return &Monitor{
		logger:  logger.Named("failsafe"),
		sources: sources,
	}
}

// Arm makes token the target of subsequent triggers.
func (m *Monitor) Arm(token *CancellationToken) {
	m.active.Store(token)
}

// Disarm clears the target, but only if it is still token; a newer session's
// token is left alone.
func (m *Monitor) Disarm(token *CancellationToken) {
	m.active.CompareAndSwap(token, nil)
}

// Fired returns how many triggers the monitor has observed.
func (m *Monitor) Fired() int64 {
	return m.fired.Load()
}

// Fire trips the armed token directly. Sources call it through Listen;
// embedding programs may call it themselves.
func (m *Monitor) Fire(t Trigger) {
	m.fired.Add(1)
	token := m.active.Load()
	if token == nil {
		m.logger.Debug("Abort requested with no active session; ignoring.", zap.String("source", t.Source))
		return
	}
	if token.Trip(t.Source + ": " + t.Detail) {
		m.logger.Warn("Abort requested; session will stop at the next checkpoint.",
			zap.String("source", t.Source), zap.String("detail", t.Detail))
	}
}

// Run starts one listener per source and blocks until ctx is cancelled.
// A source that fails is logged and dropped; the others keep listening.
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range m.sources {
		g.Go(func() error {
			m.logger.Debug("Failsafe source listening.", zap.String("source", src.Name()))
			if err := src.Listen(gctx, m.Fire); err != nil && gctx.Err() == nil {
				m.logger.Error("Failsafe source stopped.", zap.String("source", src.Name()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() == nil && len(m.sources) > 0 {
		// Every source failed; keep blocking so Run's lifetime still matches the process.
		m.logger.Error("All failsafe sources stopped; only Fire callers can abort now.")
	}
	<-ctx.Done()
	return nil
}
