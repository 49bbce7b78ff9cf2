// internal/agent/stuck.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// stuckDetector counts consecutive cycles that repeated the same steps
// without changing the scene.
type stuckDetector struct {
	window      int
	hasPrev     bool
	prevKey     string
	prevSteps   []schemas.ActionStep
	streak      int
	streakSteps []schemas.ActionStep
}

func newStuckDetector(window int) *stuckDetector {
	return &stuckDetector{window: window}
}

// observe compares the freshly perceived scene with the previous one and
// judges the previous cycle's steps. It reports whether the streak reached the window.
func (d *stuckDetector) observe(key string) bool {
	noEffect := d.hasPrev && key == d.prevKey && len(d.prevSteps) > 0
	switch {
	case !noEffect:
		d.streak = 0
		d.streakSteps = nil
	case d.streak > 0 && stepsEqual(d.prevSteps, d.streakSteps):
		d.streak++
	default:
		d.streak = 1
		d.streakSteps = d.prevSteps
	}
	d.prevKey = key
	d.hasPrev = true
	d.prevSteps = nil
	return d.window > 0 && d.streak >= d.window
}

// executed records the steps the current cycle ran.
func (d *stuckDetector) executed(steps []schemas.ActionStep) {
	d.prevSteps = steps
}

func (d *stuckDetector) reason() string {
	names := make([]string, len(d.streakSteps))
	for i, s := range d.streakSteps {
		names[i] = s.String()
	}
	return fmt.Sprintf("stuck: [%s] had no visible effect for %d consecutive cycles", strings.Join(names, ", "), d.streak)
}

func stepsEqual(a, b []schemas.ActionStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
