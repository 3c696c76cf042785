// Package stt transcribes utterance WAV files through an OpenAI-compatible
// transcription endpoint such as whisper.cpp's server or faster-whisper-server.
package stt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/parley/internal/lazy"
	"github.com/rbright/parley/internal/oaiclient"
)

// Recognizer turns one audio file into text. Empty text is a valid result.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, path string) (string, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Config selects the transcription server and model.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the production Recognizer. The underlying API client is built on
// first use and reused for every later utterance.
type Client struct {
	cfg    Config
	handle *lazy.Handle[*openai.Client]
}

// New returns a lazily connected transcription client.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	c.handle = lazy.New(func(context.Context) (*openai.Client, error) {
		return oaiclient.New(cfg.BaseURL, cfg.APIKey, cfg.HTTPClient)
	}, nil)
	return c
}

// Warm builds the API client ahead of the first utterance.
func (c *Client) Warm(ctx context.Context) error {
	if err := c.handle.Warm(ctx); err != nil {
		return fmt.Errorf("prepare transcription client: %w", err)
	}
	return nil
}

// Recognize uploads path and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, path string) (string, error) {
	client, err := c.handle.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("prepare transcription client: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.Model,
		FilePath: path,
		Language: c.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Close releases the cached API client.
func (c *Client) Close() error {
	return c.handle.Close()
}
