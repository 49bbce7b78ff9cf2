package schemas_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// getTestTime provides a fixed timestamp for reproducible snapshots.
func getTestTime(t *testing.T) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, "2026-10-15T10:00:00.123456789Z")
	require.NoError(t, err, "Test setup failed: unable to parse fixed timestamp")
	return ts
}

func TestBoundingBox_Geometry(t *testing.T) {
	button := schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.2, H: 0.1}
	label := schemas.BoundingBox{X: 0.45, Y: 0.52, W: 0.1, H: 0.05}

	cx, cy := button.Center()
	assert.InDelta(t, 0.5, cx, 1e-9)
	assert.InDelta(t, 0.55, cy, 1e-9)
	assert.InDelta(t, 0.02, button.Area(), 1e-9)

	assert.InDelta(t, label.Area(), button.Intersection(label), 1e-9)
	assert.InDelta(t, 1.0, button.OverlapRatio(label), 1e-9, "a label fully inside a button overlaps completely")
	assert.InDelta(t, 1.0, label.OverlapRatio(button), 1e-9, "the ratio is symmetric")

	far := schemas.BoundingBox{X: 0.9, Y: 0.9, W: 0.05, H: 0.05}
	assert.Zero(t, button.Intersection(far))
	assert.Zero(t, button.OverlapRatio(far))

	degenerate := schemas.BoundingBox{X: 0.5, Y: 0.5}
	assert.Zero(t, degenerate.Area())
	assert.Zero(t, button.OverlapRatio(degenerate))
}

func TestBoundingBox_Contains(t *testing.T) {
	b := schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.1, H: 0.05}
	assert.True(t, b.Contains(0.45, 0.525, 0))
	assert.True(t, b.Contains(0.4, 0.5, 0), "edges are inside")
	assert.False(t, b.Contains(0.505, 0.525, 0))
	assert.True(t, b.Contains(0.505, 0.525, 0.01), "margin grows the box")
}

func TestResolution_Denormalize(t *testing.T) {
	tests := []struct {
		name   string
		res    schemas.Resolution
		x, y   float64
		px, py int
	}{
		{"center of Submit", schemas.Resolution{Width: 1920, Height: 1080}, 0.45, 0.525, 864, 567},
		{"smaller screen", schemas.Resolution{Width: 1280, Height: 720}, 0.45, 0.525, 576, 378},
		{"origin", schemas.Resolution{Width: 1920, Height: 1080}, 0, 0, 0, 0},
		{"far corner clamps to the last pixel", schemas.Resolution{Width: 1920, Height: 1080}, 1, 1, 1919, 1079},
		{"out of range clamps", schemas.Resolution{Width: 800, Height: 600}, -0.2, 1.7, 0, 599},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px, py := tt.res.Denormalize(tt.x, tt.y)
			assert.Equal(t, tt.px, px)
			assert.Equal(t, tt.py, py)
		})
	}

	cx, cy := schemas.Resolution{Width: 1920, Height: 1080}.Center()
	assert.Equal(t, 960, cx)
	assert.Equal(t, 540, cy)
}

func TestSceneSnapshot_ElementSetKey(t *testing.T) {
	ts := getTestTime(t)
	a := schemas.SceneSnapshot{
		CapturedAt: ts,
		Elements: []schemas.ScreenElement{
			{Kind: schemas.KindText, Label: "Submit", Box: schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.1, H: 0.05}, Confidence: 0.9},
			{Kind: schemas.KindObject, Label: "button", Box: schemas.BoundingBox{X: 0.39, Y: 0.49, W: 0.12, H: 0.07}, Confidence: 0.8},
		},
	}
	b := schemas.SceneSnapshot{
		CapturedAt: ts.Add(time.Second),
		Elements: []schemas.ScreenElement{
			{Kind: schemas.KindObject, Label: "button", Box: schemas.BoundingBox{X: 0.391, Y: 0.49, W: 0.12, H: 0.07}, Confidence: 0.7},
			{Kind: schemas.KindText, Label: " submit ", Box: schemas.BoundingBox{X: 0.4, Y: 0.5, W: 0.1, H: 0.05}, Confidence: 0.95},
		},
	}
	assert.Equal(t, a.ElementSetKey(), b.ElementSetKey(), "order, case, confidence and sub-percent jitter are ignored")

	c := a
	c.Elements = append([]schemas.ScreenElement{}, a.Elements...)
	c.Elements[0].Label = "Cancel"
	assert.NotEqual(t, a.ElementSetKey(), c.ElementSetKey())
}

func TestActionStep_String(t *testing.T) {
	tests := map[string]schemas.ActionStep{
		"MoveTo(0.450,0.525)":       schemas.MoveTo(0.45, 0.525),
		"Click(left)":               schemas.Click(schemas.ButtonLeft),
		`TypeText("hello world")`:   schemas.TypeText("hello world"),
		"KeyPress(ctrl+s)":          schemas.KeyPress("ctrl+s"),
		"Scroll(0,-3)":              schemas.Scroll(0, -3),
		"Wait(250)":                 schemas.Wait(250),
		`GiveUp("no valid target")`: schemas.GiveUp("no valid target"),
		"Unknown(teleport)":         {Kind: "teleport"},
	}
	for want, step := range tests {
		assert.Equal(t, want, step.String())
	}
}

func TestActionStep_Comparable(t *testing.T) {
	assert.True(t, schemas.KeyPress("enter") == schemas.KeyPress("enter"))
	assert.False(t, schemas.KeyPress("enter") == schemas.KeyPress("tab"))
}

func TestActionPlan_IsGiveUp(t *testing.T) {
	assert.True(t, schemas.ActionPlan{Steps: []schemas.ActionStep{schemas.GiveUp("")}}.IsGiveUp())
	assert.False(t, schemas.ActionPlan{Steps: []schemas.ActionStep{schemas.Wait(10), schemas.GiveUp("")}}.IsGiveUp())
	assert.False(t, schemas.ActionPlan{}.IsGiveUp())
}

func TestOutcome_IsTerminal(t *testing.T) {
	assert.False(t, schemas.OutcomeIdle.IsTerminal())
	assert.False(t, schemas.OutcomeRunning.IsTerminal())
	assert.True(t, schemas.OutcomeCompleted.IsTerminal())
	assert.True(t, schemas.OutcomeAborted.IsTerminal())
	assert.True(t, schemas.OutcomeFailed.IsTerminal())
}
