// File: api/schemas/interfaces.go
package schemas

import "context"

// -- LLM Schemas & Interface --

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, asks the model to output valid JSON.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on generated tokens; 0 leaves it to the server.
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input.
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a locally hosted
// language model, abstracting the specifics of the inference server.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}
