// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/perception"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Perception Collaborator Mocks --

// MockCapturer mocks perception.Capturer.
type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) CaptureScreen(ctx context.Context) (perception.Frame, error) {
	args := m.Called(ctx)
	return args.Get(0).(perception.Frame), args.Error(1)
}

// MockTextRecognizer mocks perception.TextRecognizer.
type MockTextRecognizer struct {
	mock.Mock
}

func (m *MockTextRecognizer) RecognizeText(ctx context.Context, frame perception.Frame) ([]perception.Candidate, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]perception.Candidate), args.Error(1)
}

// MockObjectDetector mocks perception.ObjectDetector.
type MockObjectDetector struct {
	mock.Mock
}

func (m *MockObjectDetector) DetectObjects(ctx context.Context, frame perception.Frame) ([]perception.Candidate, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]perception.Candidate), args.Error(1)
}
