// internal/input/dryrun.go
package input

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// ErrCursorUnknown is returned by a dry-run injector before its first move.
var ErrCursorUnknown = errors.New("dry run: pointer position unknown until the first move")

// DryRunInjector logs every primitive instead of injecting it and tracks
// where the pointer would be.
type DryRunInjector struct {
	mu     sync.Mutex
	cursor *schemas.Cursor
	logger *zap.Logger
}

func NewDryRunInjector(logger *zap.Logger) *DryRunInjector {
	return &DryRunInjector{logger: logger.Named("input.dryrun")}
}

// Sleep waits for real so a dry run keeps the pacing of a live one.
func (d *DryRunInjector) Sleep(ctx context.Context, dur time.Duration) error {
	return sleep(ctx, dur)
}

func (d *DryRunInjector) MoveCursorTo(_ context.Context, x, y int) error {
	d.mu.Lock()
	d.cursor = &schemas.Cursor{X: x, Y: y}
	d.mu.Unlock()
	d.logger.Debug("move", zap.Int("x", x), zap.Int("y", y))
	return nil
}

func (d *DryRunInjector) Click(ctx context.Context, button schemas.MouseButton) error {
	fields := []zap.Field{zap.String("button", string(button))}
	if c, err := d.CursorPosition(ctx); err == nil {
		fields = append(fields, zap.Int("x", c.X), zap.Int("y", c.Y))
	}
	d.logger.Info("click", fields...)
	return nil
}

func (d *DryRunInjector) SendKey(_ context.Context, key string) error {
	d.logger.Info("key", zap.String("key", key))
	return nil
}

func (d *DryRunInjector) TypeChar(_ context.Context, r rune) error {
	d.logger.Debug("char", zap.String("char", string(r)))
	return nil
}

func (d *DryRunInjector) Scroll(_ context.Context, dx, dy int) error {
	d.logger.Info("scroll", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

// CursorPosition reports the virtual pointer.
func (d *DryRunInjector) CursorPosition(context.Context) (schemas.Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor == nil {
		return schemas.Cursor{}, ErrCursorUnknown
	}
	return *d.cursor, nil
}
