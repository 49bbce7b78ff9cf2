// internal/llmclient/helper_test.go
package llmclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

func testLLMConfig(provider, endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:        provider,
		Model:           "test-model",
		Endpoint:        endpoint,
		Timeout:         5 * time.Second,
		Temperature:     0.2,
		MaxTokens:       256,
		MaxRetryElapsed: 2 * time.Second,
	}
}

// fastBackoff keeps retry tests quick.
func fastBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Millisecond), 3)
}

func createTestRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "System prompt instructions.",
		UserPrompt:   "User query.",
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}
}
