// File: internal/perception/pipeline_test.go
package perception_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/mocks"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

type pipelineFixture struct {
	capturer *mocks.MockCapturer
	ocr      *mocks.MockTextRecognizer
	detector *mocks.MockObjectDetector
	pipeline *perception.Pipeline
}

func newPipelineFixture(t *testing.T, opts perception.Options) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		capturer: new(mocks.MockCapturer),
		ocr:      new(mocks.MockTextRecognizer),
		detector: new(mocks.MockObjectDetector),
	}
	f.pipeline = perception.NewPipeline(f.capturer, f.ocr, f.detector, opts, zaptest.NewLogger(t))
	return f
}

func testOptions() perception.Options {
	return perception.Options{
		Fusion:           perception.FusionOptions{ConfidenceFloor: 0.6, OverlapThreshold: 0.7},
		CaptureTimeout:   time.Second,
		OCRTimeout:       time.Second,
		DetectionTimeout: time.Second,
		LoadingLabels:    []string{"spinner"},
	}
}

func testFrame() perception.Frame {
	return perception.Frame{Image: image.NewRGBA(image.Rect(0, 0, 1920, 1080)), Width: 1920, Height: 1080}
}

func TestPipeline_CaptureSuccess(t *testing.T) {
	f := newPipelineFixture(t, testOptions())
	frame := testFrame()

	f.capturer.On("CaptureScreen", mock.Anything).Return(frame, nil).Once()
	f.ocr.On("RecognizeText", mock.Anything, frame).Return([]perception.Candidate{
		{Label: "Submit", Box: perception.PixelBox{X: 840, Y: 560, W: 50, H: 16}, Confidence: 0.95},
		{Label: "noise", Box: perception.PixelBox{X: 10, Y: 10, W: 20, H: 10}, Confidence: 0.3},
	}, nil).Once()
	f.detector.On("DetectObjects", mock.Anything, frame).Return([]perception.Candidate{
		{Label: "button", Box: perception.PixelBox{X: 820, Y: 550, W: 100, H: 40}, Confidence: 0.88},
	}, nil).Once()

	snap, err := f.pipeline.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schemas.Resolution{Width: 1920, Height: 1080}, snap.Resolution)
	assert.False(t, snap.CapturedAt.IsZero())
	require.Len(t, snap.Elements, 2)

	kinds := map[schemas.ElementKind]schemas.ScreenElement{}
	for _, el := range snap.Elements {
		kinds[el.Kind] = el
	}
	assert.Equal(t, "Submit", kinds[schemas.KindText].Label)
	assert.Equal(t, "button", kinds[schemas.KindObject].Label)
	assert.Contains(t, kinds[schemas.KindText].Captions, "button")
	assert.False(t, snap.Loading)

	f.capturer.AssertExpectations(t)
	f.ocr.AssertExpectations(t)
	f.detector.AssertExpectations(t)
}

func TestPipeline_CaptureFailureIsTyped(t *testing.T) {
	f := newPipelineFixture(t, testOptions())
	f.capturer.On("CaptureScreen", mock.Anything).Return(perception.Frame{}, errors.New("no display")).Once()

	_, err := f.pipeline.Capture(context.Background())
	require.Error(t, err)

	var perr *perception.PerceptionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, perception.StageCapture, perr.Stage)

	var cerr *perception.CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "no display")

	f.ocr.AssertNotCalled(t, "RecognizeText", mock.Anything, mock.Anything)
	f.detector.AssertNotCalled(t, "DetectObjects", mock.Anything, mock.Anything)
}

func TestPipeline_EmptyFrameIsCaptureError(t *testing.T) {
	f := newPipelineFixture(t, testOptions())
	f.capturer.On("CaptureScreen", mock.Anything).Return(perception.Frame{}, nil).Once()

	_, err := f.pipeline.Capture(context.Background())
	var cerr *perception.CaptureError
	assert.ErrorAs(t, err, &cerr)
}

func TestPipeline_RecognizerFailure(t *testing.T) {
	f := newPipelineFixture(t, testOptions())
	frame := testFrame()
	f.capturer.On("CaptureScreen", mock.Anything).Return(frame, nil).Once()
	f.ocr.On("RecognizeText", mock.Anything, frame).Return(nil, errors.New("tesseract crashed")).Once()
	f.detector.On("DetectObjects", mock.Anything, frame).Return([]perception.Candidate{}, nil).Maybe()

	_, err := f.pipeline.Capture(context.Background())
	var perr *perception.PerceptionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, perception.StageOCR, perr.Stage)

	var cerr *perception.CaptureError
	assert.False(t, errors.As(err, &cerr), "recognizer failures are not capture failures")
}

func TestPipeline_DetectorTimeout(t *testing.T) {
	opts := testOptions()
	opts.DetectionTimeout = 20 * time.Millisecond
	f := newPipelineFixture(t, opts)
	frame := testFrame()

	f.capturer.On("CaptureScreen", mock.Anything).Return(frame, nil).Once()
	f.ocr.On("RecognizeText", mock.Anything, frame).Return([]perception.Candidate{}, nil).Maybe()
	// The detector ignores its context and hangs past the budget.
	f.detector.On("DetectObjects", mock.Anything, frame).
		After(300*time.Millisecond).
		Return([]perception.Candidate{}, nil).Once()

	start := time.Now()
	_, err := f.pipeline.Capture(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	var perr *perception.PerceptionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, perception.StageDetection, perr.Stage)
	assert.ErrorIs(t, err, perception.ErrTimeout)
}

func TestPipeline_LoadingFlag(t *testing.T) {
	f := newPipelineFixture(t, testOptions())
	frame := testFrame()
	f.capturer.On("CaptureScreen", mock.Anything).Return(frame, nil).Once()
	f.ocr.On("RecognizeText", mock.Anything, frame).Return([]perception.Candidate{}, nil).Once()
	f.detector.On("DetectObjects", mock.Anything, frame).Return([]perception.Candidate{
		{Label: "spinner", Box: perception.PixelBox{X: 900, Y: 500, W: 64, H: 64}, Confidence: 0.9},
	}, nil).Once()

	snap, err := f.pipeline.Capture(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Loading)
}
