// Package oaiclient builds go-openai clients for self-hosted OpenAI-compatible servers.
package oaiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// New returns a client rooted at baseURL's /v1 API. httpClient may be nil.
func New(baseURL string, apiKey string, httpClient *http.Client) (*openai.Client, error) {
	apiBase, err := APIBase(baseURL)
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	cfg.BaseURL = apiBase
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg), nil
}

// APIBase normalizes a server URL such as "http://localhost:8880" or
// "http://localhost:8880/v1/" to "http://localhost:8880/v1".
func APIBase(baseURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return "", fmt.Errorf("base url must not be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	if !strings.HasSuffix(trimmed, "/v1") {
		trimmed += "/v1"
	}
	return trimmed, nil
}
