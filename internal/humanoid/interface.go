// Filename: internal/humanoid/interface.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Executor is the OS input layer the humanoid model drives. Implementations
// inject one primitive event per call; all pacing happens in the humanoid.
type Executor interface {
	// Sleep pauses execution, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// MoveCursorTo warps the pointer to an absolute pixel position.
	MoveCursorTo(ctx context.Context, x, y int) error

	// Click presses and releases a button at the current pointer position.
	Click(ctx context.Context, button schemas.MouseButton) error

	// SendKey presses a normalized key or combination such as "ctrl+s".
	SendKey(ctx context.Context, key string) error

	// TypeChar types a single character into the focused window.
	TypeChar(ctx context.Context, r rune) error

	// Scroll turns the wheel by the given number of detents.
	Scroll(ctx context.Context, dx, dy int) error
}

// CursorLocator is implemented by executors that can report where the pointer is.
type CursorLocator interface {
	CursorPosition(ctx context.Context) (schemas.Cursor, error)
}

// KeyBackspace is the key sent when correcting a typo.
const KeyBackspace = "backspace"
