package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"appraze/internal/domain/generation"
	"appraze/internal/platform/config"
)

var ErrMissingAPIKey = errors.New("API key is not configured for the generation provider")

// Client dispatches completion requests to the configured provider.
type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ generation.Completer = (*Client)(nil)

// New builds a client whose calls are bounded by the caller's context. A
// positive LLMTimeout adds a hard cap on top of it.
func New(cfg config.Config) *Client {
	httpClient := &http.Client{}
	if cfg.LLMTimeout > 0 {
		httpClient.Timeout = cfg.LLMTimeout
	}
	return &Client{
		provider:   cfg.LLMProvider,
		apiKey:     strings.TrimSpace(cfg.LLMAPIKey),
		baseURL:    strings.TrimSpace(cfg.LLMBaseURL),
		httpClient: httpClient,
	}
}

// Complete checks the credential at call time so the server can start
// without one and fail only the generation requests.
func (c *Client) Complete(ctx context.Context, req generation.ChatRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	switch c.provider {
	case config.LLMProviderAnthropic:
		return c.completeAnthropic(ctx, req)
	case config.LLMProviderOpenAI, "":
		return c.completeOpenAI(ctx, req)
	default:
		return "", fmt.Errorf("unsupported llm provider %q", c.provider)
	}
}
