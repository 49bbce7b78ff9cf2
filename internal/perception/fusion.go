// File: internal/perception/fusion.go
package perception

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// FusionOptions are the thresholds applied when merging recognizer output.
type FusionOptions struct {
	ConfidenceFloor  float64
	OverlapThreshold float64
}

// Fuse merges text and object candidates found in a width x height frame into
// an ordered element list. The result depends only on its inputs.
func Fuse(width, height int, text, objects []Candidate, opts FusionOptions) []schemas.ScreenElement {
	pool := make([]schemas.ScreenElement, 0, len(text)+len(objects))
	for _, group := range [][]Candidate{text, objects} {
		for _, c := range group {
			el, ok := normalize(c, width, height)
			if !ok || el.Confidence < opts.ConfidenceFloor {
				continue
			}
			pool = append(pool, el)
		}
	}

	// Strongest first, so a kept element always outranks whatever it absorbs.
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return readingOrderLess(a, b)
	})

	kept := make([]schemas.ScreenElement, 0, len(pool))
	for _, cand := range pool {
		duplicate := false
		for i := range kept {
			if kept[i].Kind == cand.Kind && kept[i].Box.OverlapRatio(cand.Box) > opts.OverlapThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		for i := range kept {
			if kept[i].Kind != cand.Kind && kept[i].Box.OverlapRatio(cand.Box) > opts.OverlapThreshold {
				kept[i].Captions = appendUnique(kept[i].Captions, cand.Label)
				cand.Captions = appendUnique(cand.Captions, kept[i].Label)
			}
		}
		kept = append(kept, cand)
	}

	sort.SliceStable(kept, func(i, j int) bool { return readingOrderLess(kept[i], kept[j]) })
	return kept
}

// readingOrderLess orders top-to-bottom, then left-to-right, then by kind and label.
func readingOrderLess(a, b schemas.ScreenElement) bool {
	if a.Box.Y != b.Box.Y {
		return a.Box.Y < b.Box.Y
	}
	if a.Box.X != b.Box.X {
		return a.Box.X < b.Box.X
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Label < b.Label
}

// normalize converts a pixel candidate into a normalized element clamped to the frame.
func normalize(c Candidate, width, height int) (schemas.ScreenElement, bool) {
	if width <= 0 || height <= 0 {
		return schemas.ScreenElement{}, false
	}
	label := strings.TrimSpace(c.Label)
	if label == "" {
		return schemas.ScreenElement{}, false
	}
	x0, x1 := clamp(c.Box.X, 0, width), clamp(c.Box.X+c.Box.W, 0, width)
	y0, y1 := clamp(c.Box.Y, 0, height), clamp(c.Box.Y+c.Box.H, 0, height)
	if x1 <= x0 || y1 <= y0 {
		return schemas.ScreenElement{}, false
	}
	conf := c.Confidence
	if conf > 1 {
		conf = 1
	}
	w, h := float64(width), float64(height)
	return schemas.ScreenElement{
		Kind:  c.Kind,
		Label: label,
		Box: schemas.BoundingBox{
			X: float64(x0) / w,
			Y: float64(y0) / h,
			W: float64(x1-x0) / w,
			H: float64(y1-y0) / h,
		},
		Confidence: conf,
	}, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// sceneFlags derives the busy / error hints shown to the planner.
func sceneFlags(elements []schemas.ScreenElement, loadingLabels []string) (loading, errorDialog bool) {
	for _, el := range elements {
		label := strings.ToLower(el.Label)
		switch el.Kind {
		case schemas.KindObject:
			for _, l := range loadingLabels {
				if l != "" && strings.Contains(label, strings.ToLower(l)) {
					loading = true
				}
			}
		case schemas.KindText:
			if strings.Contains(label, "error") {
				errorDialog = true
			}
		}
	}
	return loading, errorDialog
}
