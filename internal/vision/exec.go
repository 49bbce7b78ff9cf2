// internal/vision/exec.go
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strings"
)

// execCommandContext is swapped in tests.
var execCommandContext = exec.CommandContext

// runTool runs argv with stdin attached and returns its stdout.
func runTool(ctx context.Context, argv []string, stdin io.Reader) ([]byte, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("empty command")
	}
	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w (stderr: %s)", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// encodePNG serializes a frame for tools that read an image on stdin.
func encodePNG(img image.Image) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame as PNG: %w", err)
	}
	return &buf, nil
}
