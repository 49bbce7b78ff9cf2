// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// localAPIKey is sent when the local server does not check keys; the SDK
// refuses to build requests without one.
const localAPIKey = "local"

// OpenAIClient talks to a local OpenAI-compatible server (llama.cpp, LM Studio,
// vLLM) through the official SDK.
type OpenAIClient struct {
	client         openai.Client
	config         config.LLMConfig
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

// NewOpenAIClient initializes the client. The endpoint is the server's /v1 base URL.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("an OpenAI-compatible model name is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = localAPIKey
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint),
		option.WithAPIKey(apiKey),
		// Retries are driven by our own backoff policy.
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	maxElapsed := cfg.MaxRetryElapsed
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
		logger: logger.Named("llm_client.openai"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}, nil
}

// Generate runs a single chat completion and returns the first choice's text.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	params := c.buildParams(req)

	var responseContent string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return c.classifyError(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai-compatible server returned no choices"))
		}

		c.logger.Info("LLM generation complete (OpenAI-compatible)",
			zap.String("model", resp.Model),
			zap.Duration("duration", time.Since(startTime)),
			zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		)
		responseContent = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (c *OpenAIClient) buildParams(req schemas.GenerationRequest) openai.ChatCompletionNewParams {
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(temperature),
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// classifyError marks everything except throttling and server-side failures as permanent.
func (c *OpenAIClient) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		c.logger.Error("OpenAI-compatible server returned error status", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusBadGateway:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}

// Close is a no-op; the SDK client holds no resources of its own.
func (c *OpenAIClient) Close() error { return nil }
