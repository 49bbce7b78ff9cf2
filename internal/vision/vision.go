// internal/vision/vision.go
package vision

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

// Adapters bundles the collaborators a perception pipeline needs.
type Adapters struct {
	Capturer   perception.Capturer
	Recognizer perception.TextRecognizer
	Detector   perception.ObjectDetector
}

// NewAdapters builds the command-backed adapters described by cfg.
func NewAdapters(cfg config.VisionConfig, logger *zap.Logger) (Adapters, error) {
	if len(cfg.CaptureCommand) == 0 {
		return Adapters{}, errors.New("vision.capture_command is required")
	}
	ocr := NewTesseractRecognizer(cfg.TesseractPath, cfg.TesseractLang, logger)
	ocr.preprocess = cfg.Preprocess
	a := Adapters{
		Capturer:   NewCommandCapturer(cfg.CaptureCommand, logger),
		Recognizer: ocr,
		Detector:   NopDetector{},
	}
	if len(cfg.DetectorCommand) > 0 {
		a.Detector = NewCommandDetector(cfg.DetectorCommand, logger)
	}
	return a, nil
}
