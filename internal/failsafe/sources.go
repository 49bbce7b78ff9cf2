// File: internal/failsafe/sources.go
package failsafe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChannelSource adapts any push-style notifier (a global-hotkey hook, a UI
// button, a test) into a Source.
type ChannelSource struct {
	name string
	ch   chan Trigger
}

// NewChannelSource returns a source whose Notify never blocks the caller.
func NewChannelSource(name string) *ChannelSource {
	return &ChannelSource{name: name, ch: make(chan Trigger, 1)}
}

func (c *ChannelSource) Name() string { return c.name }

// Notify queues an abort request. Requests arriving while one is already
// pending are coalesced.
func (c *ChannelSource) Notify(detail string) {
	select {
	case c.ch <- Trigger{Source: c.name, Detail: detail, At: time.Now()}:
	default:
	}
}

func (c *ChannelSource) Listen(ctx context.Context, fire func(Trigger)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.ch:
			fire(t)
		}
	}
}

// FileSource fires when an abort file appears. It lets a second terminal
// (`deskpilot abort`) stop a session running in the first.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource watches for path being created or written.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: filepath.Clean(path), logger: logger.Named("abort_file")}
}

func (f *FileSource) Name() string { return "abort-file" }

// Path returns the watched file.
func (f *FileSource) Path() string { return f.path }

func (f *FileSource) Listen(ctx context.Context, fire func(Trigger)) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failsafe: cannot prepare abort file directory: %w", err)
	}
	// A leftover file from an earlier run must not abort the next session.
	f.consume()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failsafe: cannot create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors and `touch` replace files in ways a file watch misses.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failsafe: cannot watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("failsafe: watcher closed")
			}
			if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			detail, _ := os.ReadFile(f.path)
			f.consume()
			fire(Trigger{Source: f.Name(), Detail: string(detail), At: time.Now()})
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("failsafe: watcher closed")
			}
			f.logger.Warn("Abort file watcher error.", zap.Error(err))
		}
	}
}

func (f *FileSource) consume() {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Could not remove abort file.", zap.String("path", f.path), zap.Error(err))
	}
}

// RequestAbort writes the abort file a FileSource is watching.
func RequestAbort(path, detail string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(detail), 0o644)
}
