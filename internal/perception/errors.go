// File: internal/perception/errors.go
package perception

import "fmt"

// CaptureError reports that the screen itself could not be captured.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("screen capture failed: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// PerceptionError wraps any failure that prevents a snapshot from being
// produced: capture, text recognition or object detection.
type PerceptionError struct {
	Stage string
	Err   error
}

func (e *PerceptionError) Error() string {
	return fmt.Sprintf("perception failed at %s: %v", e.Stage, e.Err)
}

func (e *PerceptionError) Unwrap() error { return e.Err }

// Pipeline stages named in PerceptionError.
const (
	StageCapture   = "capture"
	StageOCR       = "ocr"
	StageDetection = "detection"
)
