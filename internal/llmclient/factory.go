// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/config"
)

// lookupHost is swapped in tests.
var lookupHost = net.DefaultResolver.LookupHost

// NewClient creates an LLMClient for the configured provider. Only endpoints
// that resolve to a loopback address are accepted; the agent never ships screen
// contents off the machine.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if err := RequireLoopback(cfg.Endpoint); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderOllama, config.ProviderOpenAI)
	}
}

// RequireLoopback fails unless every address the endpoint's host resolves to
// is a loopback address.
func RequireLoopback(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid LLM endpoint %q: %w", endpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("LLM endpoint %q has no host", endpoint)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !ip.IsLoopback() {
			return fmt.Errorf("LLM endpoint %q is not a loopback address", endpoint)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addrs, err := lookupHost(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve LLM endpoint host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("LLM endpoint host %q resolved to no addresses", host)
	}
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil || !ip.IsLoopback() {
			return fmt.Errorf("LLM endpoint %q resolves to non-loopback address %s", endpoint, a)
		}
	}
	return nil
}
