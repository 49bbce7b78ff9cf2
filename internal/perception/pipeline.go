// File: internal/perception/pipeline.go
package perception

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// Options configures a Pipeline.
type Options struct {
	Fusion           FusionOptions
	CaptureTimeout   time.Duration
	OCRTimeout       time.Duration
	DetectionTimeout time.Duration
	LoadingLabels    []string
}

// OptionsFromConfig maps the perception section of the configuration.
func OptionsFromConfig(cfg config.PerceptionConfig) Options {
	return Options{
		Fusion: FusionOptions{
			ConfidenceFloor:  cfg.ConfidenceFloor,
			OverlapThreshold: cfg.OverlapThreshold,
		},
		CaptureTimeout:   cfg.CaptureTimeout,
		OCRTimeout:       cfg.OCRTimeout,
		DetectionTimeout: cfg.DetectionTimeout,
		LoadingLabels:    cfg.LoadingLabels,
	}
}

// Pipeline captures the screen and fuses recognizer output into a SceneSnapshot.
type Pipeline struct {
	capturer Capturer
	ocr      TextRecognizer
	detector ObjectDetector
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline wires the perception collaborators together.
func NewPipeline(capturer Capturer, ocr TextRecognizer, detector ObjectDetector, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		capturer: capturer,
		ocr:      ocr,
		detector: detector,
		opts:     opts,
		logger:   logger.Named("perception"),
		now:      time.Now,
	}
}

// Capture produces a fresh snapshot of the current screen. Capture failures are
// not retried here; they surface as a *PerceptionError wrapping a *CaptureError.
func (p *Pipeline) Capture(ctx context.Context) (schemas.SceneSnapshot, error) {
	start := p.now()

	frame, err := callWithTimeout(ctx, p.opts.CaptureTimeout, p.capturer.CaptureScreen)
	if err == nil && (frame.Width <= 0 || frame.Height <= 0) {
		err = fmt.Errorf("capturer returned an empty %dx%d frame", frame.Width, frame.Height)
	}
	if err != nil {
		return schemas.SceneSnapshot{}, &PerceptionError{Stage: StageCapture, Err: &CaptureError{Err: err}}
	}
	capturedAt := p.now()

	var text, objects []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := callWithTimeout(gctx, p.opts.OCRTimeout, func(c context.Context) ([]Candidate, error) {
			return p.ocr.RecognizeText(c, frame)
		})
		if err != nil {
			return &PerceptionError{Stage: StageOCR, Err: err}
		}
		text = res
		return nil
	})
	g.Go(func() error {
		res, err := callWithTimeout(gctx, p.opts.DetectionTimeout, func(c context.Context) ([]Candidate, error) {
			return p.detector.DetectObjects(c, frame)
		})
		if err != nil {
			return &PerceptionError{Stage: StageDetection, Err: err}
		}
		objects = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return schemas.SceneSnapshot{}, err
	}

	for i := range text {
		text[i].Kind = schemas.KindText
	}
	for i := range objects {
		objects[i].Kind = schemas.KindObject
	}

	elements := Fuse(frame.Width, frame.Height, text, objects, p.opts.Fusion)
	loading, errorDialog := sceneFlags(elements, p.opts.LoadingLabels)

	p.logger.Debug("Scene captured.",
		zap.Int("text_candidates", len(text)),
		zap.Int("object_candidates", len(objects)),
		zap.Int("elements", len(elements)),
		zap.Int("width", frame.Width),
		zap.Int("height", frame.Height),
		zap.Bool("loading", loading),
		zap.Bool("error_dialog", errorDialog),
		zap.Duration("duration", p.now().Sub(start)),
	)

	return schemas.SceneSnapshot{
		Elements:    elements,
		CapturedAt:  capturedAt,
		Resolution:  schemas.Resolution{Width: frame.Width, Height: frame.Height},
		Loading:     loading,
		ErrorDialog: errorDialog,
	}, nil
}

// ErrTimeout marks a collaborator call that exceeded its configured budget.
var ErrTimeout = errors.New("collaborator timed out")

// callWithTimeout runs fn under a deadline and stops waiting when it passes,
// even if fn ignores its context. fn's goroutine finishes on its own; its
// late result is discarded.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
	}
}
