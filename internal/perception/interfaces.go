// File: internal/perception/interfaces.go
package perception

import (
	"context"
	"image"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// Frame is one captured screen image.
type Frame struct {
	Image  image.Image
	Width  int
	Height int
}

// PixelBox is a rectangle in frame pixels as reported by a recognizer.
type PixelBox struct {
	X, Y, W, H int
}

// Candidate is a recognizer hit before fusion.
type Candidate struct {
	Kind       schemas.ElementKind
	Label      string
	Box        PixelBox
	Confidence float64
}

// Capturer grabs the current screen.
type Capturer interface {
	CaptureScreen(ctx context.Context) (Frame, error)
}

// TextRecognizer finds text regions in a frame.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, frame Frame) ([]Candidate, error)
}

// ObjectDetector finds UI objects (buttons, fields, icons) in a frame.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, frame Frame) ([]Candidate, error)
}
