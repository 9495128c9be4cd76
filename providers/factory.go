// Package providers constructs the configured llm.Client backend.
package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/steadylabs/briefbot/llm"
	"github.com/steadylabs/briefbot/providers/anthropic"
	"github.com/steadylabs/briefbot/providers/openai"
)

// New builds a chat client for the named provider. An empty provider
// defaults to openai; endpoint overrides the provider's default API base
// (useful for proxies and compatible gateways).
func New(provider, endpoint, apiKey string, timeout time.Duration) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return openai.New(endpoint, apiKey, timeout)
	case "anthropic":
		return anthropic.New(endpoint, apiKey, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: openai, anthropic)", provider)
	}
}
