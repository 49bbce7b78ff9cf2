// internal/vision/capture.go
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/perception"
)

// CommandCapturer grabs the screen by running an external tool that writes a
// PNG to stdout, such as `grim -` on Wayland or `import -window root png:-` on X11.
type CommandCapturer struct {
	argv   []string
	logger *zap.Logger
}

// NewCommandCapturer builds a capturer around argv.
func NewCommandCapturer(argv []string, logger *zap.Logger) *CommandCapturer {
	return &CommandCapturer{argv: argv, logger: logger.Named("vision.capture")}
}

// CaptureScreen implements perception.Capturer.
func (c *CommandCapturer) CaptureScreen(ctx context.Context) (perception.Frame, error) {
	start := time.Now()
	out, err := runTool(ctx, c.argv, nil)
	if err != nil {
		return perception.Frame{}, fmt.Errorf("screen capture failed: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return perception.Frame{}, fmt.Errorf("screen capture produced an unreadable image: %w", err)
	}
	b := img.Bounds()
	c.logger.Debug("Screen captured.",
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.Duration("took", time.Since(start)))
	return perception.Frame{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}
