// internal/humanoid/vector.go
package humanoid

import (
	"math"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Vector2D is a point or direction in pixel space.
type Vector2D struct {
	X float64
	Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vector2D) Mul(s float64) Vector2D { return Vector2D{X: v.X * s, Y: v.Y * s} }

// Mag uses math.Hypot for numerical stability.
func (v Vector2D) Mag() float64 { return math.Hypot(v.X, v.Y) }

func (v Vector2D) Dist(o Vector2D) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Normalize returns the unit vector in v's direction, or zero for the zero vector.
func (v Vector2D) Normalize() Vector2D {
	mag := v.Mag()
	if mag < 1e-9 {
		return Vector2D{}
	}
	return v.Mul(1.0 / mag)
}

// Perp returns v rotated by 90 degrees.
func (v Vector2D) Perp() Vector2D { return Vector2D{X: -v.Y, Y: v.X} }

func fromCursor(c schemas.Cursor) Vector2D { return Vector2D{X: float64(c.X), Y: float64(c.Y)} }

// toCursor rounds v to the nearest pixel inside a width x height screen.
func toCursor(v Vector2D, width, height int) schemas.Cursor {
	x := int(math.Round(v.X))
	y := int(math.Round(v.Y))
	return schemas.Cursor{X: clampInt(x, 0, width-1), Y: clampInt(y, 0, height-1)}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
