// internal/vision/vision_test.go
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t64\t48\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t40\t12\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t30\t12\t96.5\tSubmit\n" +
	"5\t1\t1\t1\t1\t2\t45\t10\t5\t12\t-1\t \n" +
	"5\t1\t1\t1\t1\t3\t52\t10\tbad\t12\t90\tBroken\n" +
	"5\t1\t1\t1\t1\t4\t60\t10\t20\t12\t41\tCancel\n"

// TestHelperProcess stands in for the capture, OCR and detector binaries.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("HELPER_EXPECT_PNG") == "1" {
		img, err := png.Decode(os.Stdin)
		if err != nil {
			fmt.Fprint(os.Stderr, "stdin was not a PNG")
			os.Exit(3)
		}
		if _, gray := img.(*image.Gray); os.Getenv("HELPER_EXPECT_GRAY") == "1" && !gray {
			fmt.Fprintf(os.Stderr, "stdin was %T, not grayscale", img)
			os.Exit(4)
		}
	}
	switch os.Getenv("HELPER_MODE") {
	case "png":
		_ = png.Encode(os.Stdout, image.NewRGBA(image.Rect(0, 0, 64, 48)))
	case "garbage":
		fmt.Fprint(os.Stdout, "not an image")
	case "fail":
		fmt.Fprint(os.Stderr, "cannot connect to display")
		os.Exit(1)
	default:
		fmt.Fprint(os.Stdout, os.Getenv("HELPER_STDOUT"))
	}
	os.Exit(0)
}

func fakeTool(t *testing.T, env ...string) *[]string {
	t.Helper()
	var argv []string
	orig := execCommandContext
	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		argv = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
		return cmd
	}
	t.Cleanup(func() { execCommandContext = orig })
	return &argv
}

func testFrame() perception.Frame {
	return perception.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 48)), Width: 64, Height: 48}
}

func TestCommandCapturer_DecodesPNG(t *testing.T) {
	argv := fakeTool(t, "HELPER_MODE=png")
	c := NewCommandCapturer([]string{"grim", "-"}, zaptest.NewLogger(t))

	frame, err := c.CaptureScreen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 48, frame.Height)
	assert.Equal(t, []string{"grim", "-"}, *argv)
}

func TestCommandCapturer_Failures(t *testing.T) {
	fakeTool(t, "HELPER_MODE=fail")
	c := NewCommandCapturer([]string{"grim", "-"}, zaptest.NewLogger(t))
	_, err := c.CaptureScreen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot connect to display")

	fakeTool(t, "HELPER_MODE=garbage")
	_, err = c.CaptureScreen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable image")

	_, err = NewCommandCapturer(nil, zaptest.NewLogger(t)).CaptureScreen(context.Background())
	assert.Error(t, err)
}

func TestParseTSV(t *testing.T) {
	words, skipped := parseTSV(sampleTSV)
	require.Len(t, words, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, perception.Candidate{
		Kind:       schemas.KindText,
		Label:      "Submit",
		Box:        perception.PixelBox{X: 10, Y: 10, W: 30, H: 12},
		Confidence: 0.965,
	}, words[0])
	assert.Equal(t, "Cancel", words[1].Label)
	assert.InDelta(t, 0.41, words[1].Confidence, 1e-9)
}

func TestTesseractRecognizer_RunsCLI(t *testing.T) {
	argv := fakeTool(t, "HELPER_EXPECT_PNG=1", "HELPER_STDOUT="+sampleTSV)
	r := NewTesseractRecognizer("", "deu", zaptest.NewLogger(t))

	words, err := r.RecognizeText(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Len(t, words, 2)
	assert.Equal(t, []string{"tesseract", "stdin", "stdout", "-l", "deu", "tsv"}, *argv)
}

func TestTesseractRecognizer_Preprocess(t *testing.T) {
	fakeTool(t, "HELPER_EXPECT_PNG=1", "HELPER_EXPECT_GRAY=1", "HELPER_STDOUT="+sampleTSV)
	r := NewTesseractRecognizer("", "", zaptest.NewLogger(t))
	r.preprocess = true

	words, err := r.RecognizeText(context.Background(), testFrame())
	require.NoError(t, err, "the CLI should receive a grayscale PNG")
	assert.Len(t, words, 2)
}

func TestCommandDetector(t *testing.T) {
	out := `[{"label":"button","box":[820,550,100,40],"confidence":0.88},{"label":"","box":[0,0,1,1],"confidence":0.9}]`
	argv := fakeTool(t, "HELPER_EXPECT_PNG=1", "HELPER_STDOUT="+out)
	d := NewCommandDetector([]string{"yolo-ui", "--json"}, zaptest.NewLogger(t))

	cands, err := d.DetectObjects(context.Background(), testFrame())
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, perception.Candidate{
		Kind:       schemas.KindObject,
		Label:      "button",
		Box:        perception.PixelBox{X: 820, Y: 550, W: 100, H: 40},
		Confidence: 0.88,
	}, cands[0])
	assert.Equal(t, []string{"yolo-ui", "--json"}, *argv)
}

func TestCommandDetector_MalformedOutput(t *testing.T) {
	fakeTool(t, "HELPER_STDOUT={\"oops\":")
	d := NewCommandDetector([]string{"yolo-ui"}, zaptest.NewLogger(t))
	_, err := d.DetectObjects(context.Background(), testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestEncodePNG_RoundTrip(t *testing.T) {
	buf, err := encodePNG(image.NewRGBA(image.Rect(0, 0, 3, 2)))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}

func TestNewAdapters(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewAdapters(config.VisionConfig{}, logger)
	assert.Error(t, err)

	a, err := NewAdapters(config.VisionConfig{CaptureCommand: []string{"grim", "-"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, NopDetector{}, a.Detector)
	assert.False(t, a.Recognizer.(*TesseractRecognizer).preprocess)

	a, err = NewAdapters(config.VisionConfig{CaptureCommand: []string{"grim", "-"}, Preprocess: true}, logger)
	require.NoError(t, err)
	assert.True(t, a.Recognizer.(*TesseractRecognizer).preprocess)

	a, err = NewAdapters(config.VisionConfig{
		CaptureCommand:  []string{"grim", "-"},
		DetectorCommand: []string{"yolo-ui"},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &CommandDetector{}, a.Detector)
}
