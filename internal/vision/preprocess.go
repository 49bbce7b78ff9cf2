// internal/vision/preprocess.go
package vision

import (
	"image"
	"image/draw"
)

// stretchClip is the share of pixels allowed to saturate at each end of the
// contrast stretch, so a few pure-black or pure-white pixels don't pin the range.
const stretchClip = 0.01

// PrepareForOCR returns a cleaned grayscale copy of img with the same bounds,
// so recognizer coordinates still line up with the original frame. It
// converts to grayscale, stretches contrast between the 1st and 99th
// luminance percentiles and removes speckle with a 3x3 median filter.
func PrepareForOCR(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	stretchContrast(gray)
	return medianFilter(gray)
}

// stretchContrast maps the clipped luminance range onto 0..255 in place. A
// flat image is left alone.
func stretchContrast(g *image.Gray) {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	clip := int(float64(len(g.Pix)) * stretchClip)

	lo, seen := 0, 0
	for ; lo < 255; lo++ {
		seen += hist[lo]
		if seen > clip {
			break
		}
	}
	hi, seen := 255, 0
	for ; hi > 0; hi-- {
		seen += hist[hi]
		if seen > clip {
			break
		}
	}
	if hi <= lo {
		return
	}

	var lut [256]uint8
	for v := range lut {
		switch {
		case v <= lo:
			lut[v] = 0
		case v >= hi:
			lut[v] = 255
		default:
			lut[v] = uint8((v - lo) * 255 / (hi - lo))
		}
	}
	for i, v := range g.Pix {
		g.Pix[i] = lut[v]
	}
}

// medianFilter returns a 3x3 median-filtered copy of g. Border pixels are
// copied unchanged.
func medianFilter(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, g.Pix)
	if b.Dx() < 3 || b.Dy() < 3 {
		return out
	}

	var win [9]uint8
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				row := g.PixOffset(x-1, y+dy)
				n += copy(win[n:], g.Pix[row:row+3])
			}
			out.Pix[out.PixOffset(x, y)] = median9(win)
		}
	}
	return out
}

func median9(w [9]uint8) uint8 {
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j] < w[j-1]; j-- {
			w[j], w[j-1] = w[j-1], w[j]
		}
	}
	return w[4]
}
