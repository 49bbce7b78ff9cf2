// internal/vision/detector.go
package vision

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// detection is one entry of the detector's JSON output. Box is x, y, w, h in pixels.
type detection struct {
	Label      string  `json:"label"`
	Box        [4]int  `json:"box"`
	Confidence float64 `json:"confidence"`
}

// CommandDetector pipes a PNG frame to an external object detector (a YOLO
// wrapper script, typically) and reads a JSON array of detections back.
type CommandDetector struct {
	argv   []string
	logger *zap.Logger
}

func NewCommandDetector(argv []string, logger *zap.Logger) *CommandDetector {
	return &CommandDetector{argv: argv, logger: logger.Named("vision.detector")}
}

// DetectObjects implements perception.ObjectDetector.
func (d *CommandDetector) DetectObjects(ctx context.Context, frame perception.Frame) ([]perception.Candidate, error) {
	buf, err := encodePNG(frame.Image)
	if err != nil {
		return nil, err
	}
	out, err := runTool(ctx, d.argv, buf)
	if err != nil {
		return nil, fmt.Errorf("object detector failed: %w", err)
	}
	var dets []detection
	if err := json.Unmarshal(out, &dets); err != nil {
		return nil, fmt.Errorf("object detector returned malformed output: %w", err)
	}
	cands := make([]perception.Candidate, 0, len(dets))
	for _, det := range dets {
		if det.Label == "" {
			continue
		}
		cands = append(cands, perception.Candidate{
			Kind:       schemas.KindObject,
			Label:      det.Label,
			Box:        perception.PixelBox{X: det.Box[0], Y: det.Box[1], W: det.Box[2], H: det.Box[3]},
			Confidence: det.Confidence,
		})
	}
	d.logger.Debug("Objects detected.", zap.Int("count", len(cands)))
	return cands, nil
}

// NopDetector reports no objects. It is used when no detector command is configured.
type NopDetector struct{}

func (NopDetector) DetectObjects(context.Context, perception.Frame) ([]perception.Candidate, error) {
	return nil, nil
}
