// internal/humanoid/actions.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Click waits a short reaction time, then clicks at the current pointer position.
func (h *Humanoid) Click(ctx context.Context, button schemas.MouseButton) error {
	h.updateFatigue(0.1)
	if err := h.preActionDelay(ctx); err != nil {
		return err
	}
	return h.executor.Click(ctx, button)
}

// KeyPress waits a short reaction time, then presses key.
func (h *Humanoid) KeyPress(ctx context.Context, key string) error {
	h.updateFatigue(0.05)
	if err := h.preActionDelay(ctx); err != nil {
		return err
	}
	return h.executor.SendKey(ctx, key)
}

// Scroll turns the wheel one detent at a time with small gaps between detents.
func (h *Humanoid) Scroll(ctx context.Context, dx, dy int) error {
	h.updateFatigue(0.02 * float64(abs(dx)+abs(dy)))
	if err := h.preActionDelay(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	gapMin, gapMax := h.dynamicConfig.ScrollGapMinMs, h.dynamicConfig.ScrollGapMaxMs
	h.mu.Unlock()

	first := true
	detent := func(sx, sy int) error {
		if !first {
			if err := h.pause(ctx, h.uniformMs(gapMin, gapMax)); err != nil {
				return err
			}
		}
		first = false
		return h.executor.Scroll(ctx, sx, sy)
	}

	for i := 0; i < abs(dy); i++ {
		if err := detent(0, sign(dy)); err != nil {
			return err
		}
	}
	for i := 0; i < abs(dx); i++ {
		if err := detent(sign(dx), 0); err != nil {
			return err
		}
	}
	return nil
}

// Wait sleeps for exactly durationMs milliseconds.
func (h *Humanoid) Wait(ctx context.Context, durationMs int) error {
	return h.pause(ctx, time.Duration(durationMs)*time.Millisecond)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
