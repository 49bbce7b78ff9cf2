// internal/agent/stuck_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func TestStuckDetector(t *testing.T) {
	wait := []schemas.ActionStep{schemas.Wait(100)}
	scroll := []schemas.ActionStep{schemas.Scroll(0, 1)}

	tests := []struct {
		name   string
		keys   []string
		steps  [][]schemas.ActionStep
		stuck  bool
		streak int
	}{
		{"first observation", []string{"a"}, nil, false, 0},
		{"repeat without effect", []string{"a", "a", "a", "a"}, [][]schemas.ActionStep{wait, wait, wait}, true, 3},
		{"scene changed", []string{"a", "a", "b", "b"}, [][]schemas.ActionStep{wait, wait, wait}, false, 1},
		{"different steps restart the streak", []string{"a", "a", "a", "a"}, [][]schemas.ActionStep{wait, scroll, scroll}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newStuckDetector(3)
			var stuck bool
			for i, key := range tt.keys {
				stuck = d.observe(key)
				if i < len(tt.steps) {
					d.executed(tt.steps[i])
				}
			}
			assert.Equal(t, tt.stuck, stuck)
			assert.Equal(t, tt.streak, d.streak)
		})
	}
}

func TestStuckDetector_Reason(t *testing.T) {
	d := newStuckDetector(1)
	d.observe("a")
	d.executed([]schemas.ActionStep{schemas.KeyPress("enter")})
	assert.True(t, d.observe("a"))
	assert.Equal(t, `stuck: [KeyPress(enter)] had no visible effect for 1 consecutive cycles`, d.reason())
}
