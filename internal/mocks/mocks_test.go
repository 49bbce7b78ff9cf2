// File: internal/mocks/mocks_test.go
package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

var (
	_ schemas.LLMClient         = (*MockLLMClient)(nil)
	_ perception.Capturer       = (*MockCapturer)(nil)
	_ perception.TextRecognizer = (*MockTextRecognizer)(nil)
	_ perception.ObjectDetector = (*MockObjectDetector)(nil)
)

func TestMockLLMClient_CancelledContextSkipsExpectations(t *testing.T) {
	m := new(MockLLMClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, schemas.GenerationRequest{})
	require.ErrorIs(t, err, context.Canceled)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMockLLMClient_ReturnsConfiguredValues(t *testing.T) {
	m := new(MockLLMClient)
	m.On("Generate", mock.Anything, mock.Anything).Return(`{"steps":[]}`, nil).Once()
	m.On("Close").Return(nil)

	out, err := m.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"steps":[]}`, out)
	require.NoError(t, m.Close())
	m.AssertExpectations(t)
}

func TestMockRecognizers_NilResults(t *testing.T) {
	boom := errors.New("tesseract crashed")

	ocr := new(MockTextRecognizer)
	ocr.On("RecognizeText", mock.Anything, mock.Anything).Return(nil, boom)
	got, err := ocr.RecognizeText(context.Background(), perception.Frame{})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)

	det := new(MockObjectDetector)
	det.On("DetectObjects", mock.Anything, mock.Anything).Return([]perception.Candidate{{Label: "button"}}, nil)
	objs, err := det.DetectObjects(context.Background(), perception.Frame{})
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}
