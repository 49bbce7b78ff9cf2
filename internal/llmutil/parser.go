// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// \x60 is a backtick; raw strings cannot hold one.
	fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ExtractJSON isolates the JSON document inside a model response. Local models
// routinely wrap their answer in a markdown fence or surround it with chatter.
// Objects take priority over arrays.
func ExtractJSON(response string) string {
	s := strings.TrimSpace(response)
	if m := fencedBlockRegex.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	if fb, lb := strings.Index(s, "{"), strings.LastIndex(s, "}"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	if fb, lb := strings.Index(s, "["), strings.LastIndex(s, "]"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	return s
}

// ParseJSONResponse decodes a model response into T after stripping markdown
// and conversational wrapping.
func ParseJSONResponse[T any](response string) (*T, error) {
	doc := ExtractJSON(response)
	if doc == "" {
		return nil, fmt.Errorf("LLM response contained no JSON")
	}
	var result T
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(doc, 500))
	}
	return &result, nil
}

// Truncate shortens s to maxLen bytes for logging.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
