// internal/humanoid/trajectory.go
package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// fittsTargetWidth is the assumed target width (W) in pixels.
const fittsTargetWidth = 30.0

// computeEaseInOutCubic gives a smooth acceleration and deceleration profile.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration is the movement time predicted by Fitts's law, +/- 15%.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := math.Log2(1.0 + distance/fittsTargetWidth)
	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	return msDuration(mt)
}

// bezierPath samples a cubic Bezier from start to end at eased parameters.
// The control points sit at 1/3 and 2/3 of the straight line, pushed sideways
// by up to curveVariance * distance.
func (h *Humanoid) bezierPath(start, end Vector2D, points int) []Vector2D {
	dist := start.Dist(end)
	dir := end.Sub(start).Normalize()
	normal := dir.Perp()

	h.mu.Lock()
	spread := h.dynamicConfig.CurveVariance * dist
	off1 := (h.rng.Float64()*2 - 1) * spread
	off2 := (h.rng.Float64()*2 - 1) * spread
	h.mu.Unlock()

	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3)).Add(normal.Mul(off1))
	p2 := start.Add(dir.Mul(dist * 2 / 3)).Add(normal.Mul(off2))

	path := make([]Vector2D, points)
	for i := 0; i < points; i++ {
		t := computeEaseInOutCubic(float64(i+1) / float64(points))
		omt := 1.0 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	return path
}

// pathPoints picks how many samples a movement of duration d gets.
func (h *Humanoid) pathPoints(d time.Duration) int {
	h.mu.Lock()
	cfg := h.dynamicConfig
	h.mu.Unlock()

	n := int(d / (10 * time.Millisecond))
	lo, hi := max(cfg.MinPathPoints, 2), max(cfg.MaxPathPoints, cfg.MinPathPoints)
	return max(lo, min(n, hi))
}

// perturb adds Perlin drift and Gaussian tremor to an intermediate point.
func (h *Humanoid) perturb(p Vector2D) Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.noiseTime += 0.08
	amp := h.dynamicConfig.PerlinAmplitude
	drift := Vector2D{
		X: h.noiseX.Noise1D(h.noiseTime) * amp,
		Y: h.noiseY.Noise1D(h.noiseTime) * amp,
	}
	strength := h.dynamicConfig.GaussianStrength * (0.5 + h.rng.Float64())
	tremor := Vector2D{X: h.rng.NormFloat64() * strength, Y: h.rng.NormFloat64() * strength}
	return p.Add(drift).Add(tremor)
}

// MoveTo glides the pointer from `from` to `to` and returns the final cursor,
// which is always exactly `to` (clamped to the screen).
func (h *Humanoid) MoveTo(ctx context.Context, from, to schemas.Cursor, res schemas.Resolution) (schemas.Cursor, error) {
	target := toCursor(fromCursor(to), res.Width, res.Height)
	start, end := fromCursor(from), fromCursor(target)
	dist := start.Dist(end)

	h.mu.Lock()
	snap := h.dynamicConfig.SnapDistance
	delayMin, delayMax := h.dynamicConfig.PointDelayMinMs, h.dynamicConfig.PointDelayMaxMs
	h.mu.Unlock()

	if dist < snap {
		if err := h.executor.MoveCursorTo(ctx, target.X, target.Y); err != nil {
			return from, err
		}
		return target, nil
	}

	h.updateFatigue(dist / 1000.0)
	duration := h.fittsDuration(dist)
	points := h.pathPoints(duration)
	path := h.bezierPath(start, end, points)

	current := from
	for i, p := range path {
		if i == len(path)-1 {
			p = end
		} else {
			p = h.perturb(p)
		}
		next := toCursor(p, res.Width, res.Height)
		if err := h.executor.MoveCursorTo(ctx, next.X, next.Y); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("Failed to dispatch pointer move.", zap.Error(err))
			}
			return current, err
		}
		current = next

		if i < len(path)-1 {
			if err := h.executor.Sleep(ctx, h.uniformMs(delayMin, delayMax)); err != nil {
				return current, err
			}
		}
	}
	return current, nil
}
