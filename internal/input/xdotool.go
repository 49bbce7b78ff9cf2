// internal/input/xdotool.go
package input

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// execCommandContext is swapped in tests.
var execCommandContext = exec.CommandContext

// xdotoolKeys maps normalized key names onto X keysyms.
var xdotoolKeys = map[string]string{
	"enter":     "Return",
	"tab":       "Tab",
	"escape":    "Escape",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"insert":    "Insert",
	"space":     "space",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"menu":      "Menu",
	"print":     "Print",
	"+":         "plus",
}

// X button numbers; 4..7 are the wheel.
var xdotoolButtons = map[schemas.MouseButton]string{
	schemas.ButtonLeft:   "1",
	schemas.ButtonMiddle: "2",
	schemas.ButtonRight:  "3",
}

// XdotoolInjector drives an X11 session through the xdotool binary.
type XdotoolInjector struct {
	path   string
	logger *zap.Logger
}

// NewXdotoolInjector uses the xdotool binary at path ("xdotool" when empty).
func NewXdotoolInjector(path string, logger *zap.Logger) *XdotoolInjector {
	if path == "" {
		path = "xdotool"
	}
	return &XdotoolInjector{path: path, logger: logger.Named("input.xdotool")}
}

func (x *XdotoolInjector) run(ctx context.Context, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := execCommandContext(ctx, x.path, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("xdotool %s failed: %w (stderr: %s)", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func (x *XdotoolInjector) Sleep(ctx context.Context, d time.Duration) error { return sleep(ctx, d) }

func (x *XdotoolInjector) MoveCursorTo(ctx context.Context, px, py int) error {
	_, err := x.run(ctx, "mousemove", strconv.Itoa(px), strconv.Itoa(py))
	return err
}

func (x *XdotoolInjector) Click(ctx context.Context, button schemas.MouseButton) error {
	b, ok := xdotoolButtons[button]
	if !ok {
		return fmt.Errorf("unsupported mouse button %q", button)
	}
	_, err := x.run(ctx, "click", b)
	return err
}

func (x *XdotoolInjector) SendKey(ctx context.Context, key string) error {
	_, err := x.run(ctx, "key", "--clearmodifiers", toKeysym(key))
	return err
}

func (x *XdotoolInjector) TypeChar(ctx context.Context, r rune) error {
	_, err := x.run(ctx, "type", "--delay", "0", "--", string(r))
	return err
}

// Scroll clicks the wheel buttons; positive dy scrolls down, positive dx right.
func (x *XdotoolInjector) Scroll(ctx context.Context, dx, dy int) error {
	clicks := func(n int, neg, pos string) error {
		if n == 0 {
			return nil
		}
		button := pos
		if n < 0 {
			button, n = neg, -n
		}
		_, err := x.run(ctx, "click", "--repeat", strconv.Itoa(n), button)
		return err
	}
	if err := clicks(dy, "4", "5"); err != nil {
		return err
	}
	return clicks(dx, "6", "7")
}

// CursorPosition parses `xdotool getmouselocation --shell`.
func (x *XdotoolInjector) CursorPosition(ctx context.Context) (schemas.Cursor, error) {
	out, err := x.run(ctx, "getmouselocation", "--shell")
	if err != nil {
		return schemas.Cursor{}, err
	}
	var c schemas.Cursor
	var seenX, seenY bool
	for _, line := range strings.Split(string(out), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		switch k {
		case "X":
			c.X, seenX = n, true
		case "Y":
			c.Y, seenY = n, true
		}
	}
	if !seenX || !seenY {
		return schemas.Cursor{}, fmt.Errorf("unexpected getmouselocation output: %q", string(out))
	}
	return c, nil
}

// toKeysym rewrites a normalized combination like "ctrl+enter" into "ctrl+Return".
func toKeysym(key string) string {
	if key == "+" {
		return xdotoolKeys["+"]
	}
	parts := strings.Split(key, "+")
	for i, p := range parts {
		if sym, ok := xdotoolKeys[p]; ok {
			parts[i] = sym
		} else if len(p) > 1 && p[0] == 'f' {
			if _, err := strconv.Atoi(p[1:]); err == nil {
				parts[i] = strings.ToUpper(p)
			}
		}
	}
	return strings.Join(parts, "+")
}
