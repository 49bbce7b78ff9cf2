// internal/vision/tesseract.go
package vision

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

// Column positions in tesseract's TSV output.
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

// tsvWordLevel marks rows that describe a single word.
const tsvWordLevel = 5

// TesseractRecognizer runs the tesseract CLI over each frame.
type TesseractRecognizer struct {
	path   string
	lang   string
	logger *zap.Logger
	// preprocess cleans each frame with PrepareForOCR before recognition.
	preprocess bool
}

func NewTesseractRecognizer(path, lang string, logger *zap.Logger) *TesseractRecognizer {
	if path == "" {
		path = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &TesseractRecognizer{path: path, lang: lang, logger: logger.Named("vision.ocr")}
}

// RecognizeText implements perception.TextRecognizer.
func (r *TesseractRecognizer) RecognizeText(ctx context.Context, frame perception.Frame) ([]perception.Candidate, error) {
	img := frame.Image
	if r.preprocess {
		img = PrepareForOCR(img)
	}
	buf, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	out, err := runTool(ctx, []string{r.path, "stdin", "stdout", "-l", r.lang, "tsv"}, buf)
	if err != nil {
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}
	words, skipped := parseTSV(string(out))
	r.logger.Debug("Text recognized.", zap.Int("words", len(words)), zap.Int("skipped_rows", skipped))
	return words, nil
}

// parseTSV keeps the word rows with text and a real confidence. Malformed
// rows are counted and dropped.
func parseTSV(out string) ([]perception.Candidate, int) {
	var words []perception.Candidate
	skipped := 0
	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < tsvColumns {
			skipped++
			continue
		}
		if level, err := strconv.Atoi(cols[tsvLevel]); err != nil || level != tsvWordLevel {
			continue
		}
		text := strings.TrimSpace(cols[tsvText])
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if err != nil {
			skipped++
			continue
		}
		if text == "" || conf < 0 {
			continue
		}
		box, ok := parseBox(cols[tsvLeft], cols[tsvTop], cols[tsvWidth], cols[tsvHeight])
		if !ok {
			skipped++
			continue
		}
		words = append(words, perception.Candidate{
			Kind:       schemas.KindText,
			Label:      text,
			Box:        box,
			Confidence: conf / 100,
		})
	}
	return words, skipped
}

func parseBox(left, top, width, height string) (perception.PixelBox, bool) {
	var v [4]int
	for i, s := range []string{left, top, width, height} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return perception.PixelBox{}, false
		}
		v[i] = n
	}
	return perception.PixelBox{X: v[0], Y: v[1], W: v[2], H: v[3]}, true
}
