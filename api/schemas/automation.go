// File: api/schemas/automation.go
package schemas

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// -- Perception Schemas --

// ElementKind distinguishes where a screen element came from.
type ElementKind string

const (
	KindText   ElementKind = "text"
	KindObject ElementKind = "object"
)

// BoundingBox is a rectangle in normalized screen coordinates (0..1),
// relative to the size of the frame it was recognized in.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center point of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the normalized area of the box.
func (b BoundingBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Intersection returns the area shared by two boxes.
func (b BoundingBox) Intersection(o BoundingBox) float64 {
	left := math.Max(b.X, o.X)
	top := math.Max(b.Y, o.Y)
	right := math.Min(b.X+b.W, o.X+o.W)
	bottom := math.Min(b.Y+b.H, o.Y+o.H)
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}

// OverlapRatio is the intersection divided by the smaller of the two areas.
// A label fully inside a button scores 1.0.
func (b BoundingBox) OverlapRatio(o BoundingBox) float64 {
	smaller := math.Min(b.Area(), o.Area())
	if smaller <= 0 {
		return 0
	}
	return b.Intersection(o) / smaller
}

// Contains reports whether the normalized point lies inside the box grown by margin on every side.
func (b BoundingBox) Contains(x, y, margin float64) bool {
	return x >= b.X-margin && x <= b.X+b.W+margin &&
		y >= b.Y-margin && y <= b.Y+b.H+margin
}

// ScreenElement is one recognized unit on screen.
type ScreenElement struct {
	Kind       ElementKind `json:"kind"`
	Label      string      `json:"label"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	// Captions holds labels of co-located elements of the other kind,
	// e.g. the text printed on a detected button.
	Captions []string `json:"captions,omitempty"`
}

// Resolution is the pixel size of a captured frame.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Denormalize maps a normalized point onto this resolution, clamped to the last pixel.
func (r Resolution) Denormalize(x, y float64) (int, int) {
	px := int(math.Round(x * float64(r.Width)))
	py := int(math.Round(y * float64(r.Height)))
	return clampInt(px, 0, r.Width-1), clampInt(py, 0, r.Height-1)
}

// Center returns the pixel at the middle of the screen.
func (r Resolution) Center() (int, int) {
	return r.Width / 2, r.Height / 2
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SceneSnapshot is the fused perception output of one cycle. Snapshots are
// produced once and never patched; the next cycle produces a new one.
type SceneSnapshot struct {
	Elements    []ScreenElement `json:"elements"`
	CapturedAt  time.Time       `json:"captured_at"`
	Resolution  Resolution      `json:"resolution"`
	Loading     bool            `json:"loading,omitempty"`
	ErrorDialog bool            `json:"error_dialog,omitempty"`
}

// ElementSetKey fingerprints the set of elements independently of order.
// Boxes are quantized to hundredths so recognizer jitter does not register as change.
func (s SceneSnapshot) ElementSetKey() string {
	keys := make([]string, 0, len(s.Elements))
	for _, e := range s.Elements {
		keys = append(keys, fmt.Sprintf("%s|%s|%.2f,%.2f,%.2f,%.2f",
			e.Kind, strings.ToLower(strings.TrimSpace(e.Label)), e.Box.X, e.Box.Y, e.Box.W, e.Box.H))
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}

// -- Command & Action Schemas --

// Command is the user's natural-language instruction for one session.
type Command struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ActionKind is the discriminator of the ActionStep variant.
type ActionKind string

const (
	ActionMoveTo   ActionKind = "move_to"
	ActionClick    ActionKind = "click"
	ActionTypeText ActionKind = "type_text"
	ActionKeyPress ActionKind = "key_press"
	ActionScroll   ActionKind = "scroll"
	ActionWait     ActionKind = "wait"
	ActionGiveUp   ActionKind = "give_up"
)

// MouseButton identifies a mouse button.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// ActionStep is a closed tagged variant; only the fields of its Kind are meaningful.
// It is comparable, so two steps are structurally identical iff they are ==.
type ActionStep struct {
	Kind       ActionKind  `json:"kind"`
	X          float64     `json:"x,omitempty"`
	Y          float64     `json:"y,omitempty"`
	Button     MouseButton `json:"button,omitempty"`
	Text       string      `json:"text,omitempty"`
	Key        string      `json:"key,omitempty"`
	DX         int         `json:"dx,omitempty"`
	DY         int         `json:"dy,omitempty"`
	DurationMs int         `json:"duration_ms,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

func MoveTo(x, y float64) ActionStep { return ActionStep{Kind: ActionMoveTo, X: x, Y: y} }
func Click(b MouseButton) ActionStep { return ActionStep{Kind: ActionClick, Button: b} }
func TypeText(text string) ActionStep { return ActionStep{Kind: ActionTypeText, Text: text} }
func KeyPress(key string) ActionStep { return ActionStep{Kind: ActionKeyPress, Key: key} }
func Scroll(dx, dy int) ActionStep { return ActionStep{Kind: ActionScroll, DX: dx, DY: dy} }
func Wait(durationMs int) ActionStep { return ActionStep{Kind: ActionWait, DurationMs: durationMs} }
func GiveUp(reason string) ActionStep { return ActionStep{Kind: ActionGiveUp, Reason: reason} }

// String renders the step the way it appears in logs and prompts.
func (s ActionStep) String() string {
	switch s.Kind {
	case ActionMoveTo:
		return fmt.Sprintf("MoveTo(%.3f,%.3f)", s.X, s.Y)
	case ActionClick:
		return fmt.Sprintf("Click(%s)", s.Button)
	case ActionTypeText:
		return fmt.Sprintf("TypeText(%q)", s.Text)
	case ActionKeyPress:
		return fmt.Sprintf("KeyPress(%s)", s.Key)
	case ActionScroll:
		return fmt.Sprintf("Scroll(%d,%d)", s.DX, s.DY)
	case ActionWait:
		return fmt.Sprintf("Wait(%d)", s.DurationMs)
	case ActionGiveUp:
		return fmt.Sprintf("GiveUp(%q)", s.Reason)
	default:
		return fmt.Sprintf("Unknown(%s)", s.Kind)
	}
}

// ActionPlan is the validated output of one planning round.
type ActionPlan struct {
	Steps     []ActionStep `json:"steps"`
	Rationale string       `json:"rationale,omitempty"`
}

// IsGiveUp reports whether the plan is the single-step GiveUp plan.
func (p ActionPlan) IsGiveUp() bool {
	return len(p.Steps) == 1 && p.Steps[0].Kind == ActionGiveUp
}

// Cursor is a pixel position on the current screen.
type Cursor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ExecutionRecord is the outcome of executing one ActionStep.
type ExecutionRecord struct {
	Cycle       int        `json:"cycle"`
	Step        ActionStep `json:"step"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     time.Time  `json:"ended_at"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	CursorAfter Cursor     `json:"cursor_after"`
}

// Outcome is the lifecycle state of a session.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// IsTerminal reports whether no further transition is allowed out of o.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeCompleted || o == OutcomeAborted || o == OutcomeFailed
}
