// Package llm talks to a local Ollama server's non-streaming generate API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSystemPrompt keeps replies short enough to speak back comfortably.
const DefaultSystemPrompt = "You are a helpful AI assistant. Keep your responses short, clear, and friendly. " +
	"Limit responses to 1-3 sentences maximum. Avoid using emojis or special characters."

var (
	// ErrUnavailable wraps transport failures and non-2xx responses.
	ErrUnavailable = errors.New("language model unavailable")
	// ErrMalformed wraps responses that could not be decoded.
	ErrMalformed = errors.New("malformed language model response")
)

// Generator produces a reply for one user utterance.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// Config selects the endpoint, model, and prompt framing.
type Config struct {
	Endpoint     string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client calls POST {endpoint} with stream disabled.
type Client struct {
	cfg  Config
	http *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// New returns an Ollama client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Prompt frames text the way the model is addressed on every turn.
func (c *Client) Prompt(text string) string {
	return fmt.Sprintf("%s\nUser: %s\nAssistant:", c.cfg.SystemPrompt, text)
}

// Generate returns the trimmed model reply.
func (c *Client) Generate(ctx context.Context, text string) (string, error) {
	var out generateResponse
	if err := c.post(ctx, generateRequest{Model: c.cfg.Model, Prompt: c.Prompt(text)}, &out); err != nil {
		return "", err
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrMalformed)
	}
	return strings.TrimSpace(*out.Response), nil
}

// Warm asks the server to load the model without generating, so the first
// turn does not pay the load cost.
func (c *Client) Warm(ctx context.Context) error {
	var out generateResponse
	if err := c.post(ctx, generateRequest{Model: c.cfg.Model}, &out); err != nil {
		return fmt.Errorf("load model %q: %w", c.cfg.Model, err)
	}
	return nil
}

// Ping checks that the server answers GET /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	tagsURL, err := c.tagsURL()
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagsURL, nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s status=%d", ErrUnavailable, tagsURL, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload generateRequest, out *generateResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode generate request: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// tagsURL derives {scheme}://{host}/api/tags from the generate endpoint.
func (c *Client) tagsURL() (string, error) {
	parsed, err := url.Parse(c.cfg.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid llm endpoint %q", c.cfg.Endpoint)
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/api/tags"}).String(), nil
}
