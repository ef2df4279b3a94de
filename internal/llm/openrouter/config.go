package openrouter

import (
	"net/http"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

const (
	// ProviderName is the configuration key of this backend.
	ProviderName   = "openrouter"
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// Catalog entries found by discovery get these values.
	discoveredMaxTokens = 4096
	discoveredCostPer1K = 0.001

	defaultTimeout = 30 * time.Second
	referer        = "https://github.com/joseph-ayodele/tracklist-extractor"
	title          = "Vinyl Tracklist Extractor"
)

type backend struct {
	chat    *llm.ChatClient
	timeout time.Duration
}

// New builds the OpenRouter adapter.
func New(desc provider.Descriptor, opts ...provider.Option) (provider.Adapter, error) {
	if desc.Name == "" {
		desc.Name = ProviderName
	}
	if desc.BaseURL == "" {
		desc.BaseURL = DefaultBaseURL
	}
	if desc.Timeout <= 0 {
		desc.Timeout = defaultTimeout
	}
	b := &backend{
		chat: &llm.ChatClient{
			BaseURL: desc.BaseURL,
			APIKey:  desc.APIKey,
			Headers: map[string]string{
				"HTTP-Referer": referer,
				"X-Title":      title,
			},
			HTTP: &http.Client{},
		},
		timeout: desc.Timeout,
	}
	c := provider.NewClient(desc, b, opts...)
	b.chat.Logger = c.Logger()
	return c, nil
}
