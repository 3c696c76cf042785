// Package tts synthesizes reply text into PCM segments through an
// OpenAI-compatible speech endpoint such as Kokoro-FastAPI.
package tts

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/lazy"
	"github.com/rbright/parley/internal/oaiclient"
	"github.com/rbright/parley/internal/transcript"
)

// DefaultSampleRate is Kokoro's native output rate.
const DefaultSampleRate = 24000

// Segment is one synthesized chunk. Text is the grapheme input the chunk was
// produced from; only Samples are needed for playback.
type Segment struct {
	Index      int
	Text       string
	Voice      string
	Samples    []int16
	SampleRate int
}

// Synthesizer yields waveform segments for text in playback order. Iteration
// stops at the first error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice string) iter.Seq2[Segment, error]
}

// Config selects the speech server, model, and output format.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	SampleRate int
	Speed      float64
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the production Synthesizer. It requests raw PCM one sentence at
// a time so the first segment is ready before the whole reply is rendered.
type Client struct {
	cfg    Config
	handle *lazy.Handle[*openai.Client]
}

// New returns a lazily connected speech client.
func New(cfg Config) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	c := &Client{cfg: cfg}
	c.handle = lazy.New(func(context.Context) (*openai.Client, error) {
		return oaiclient.New(cfg.BaseURL, cfg.APIKey, cfg.HTTPClient)
	}, nil)
	return c
}

// SampleRate is the rate of every yielded segment.
func (c *Client) SampleRate() int {
	return c.cfg.SampleRate
}

// Warm builds the API client ahead of the first reply.
func (c *Client) Warm(ctx context.Context) error {
	if err := c.handle.Warm(ctx); err != nil {
		return fmt.Errorf("prepare speech client: %w", err)
	}
	return nil
}

// Close releases the cached API client.
func (c *Client) Close() error {
	return c.handle.Close()
}

// Synthesize splits text into sentences and yields one segment per sentence.
func (c *Client) Synthesize(ctx context.Context, text string, voice string) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		client, err := c.handle.Get(ctx)
		if err != nil {
			yield(Segment{Voice: voice}, fmt.Errorf("prepare speech client: %w", err))
			return
		}

		for i, sentence := range transcript.Sentences(text) {
			segment := Segment{Index: i, Text: sentence, Voice: voice, SampleRate: c.cfg.SampleRate}
			samples, err := c.speak(ctx, client, sentence, voice)
			if err != nil {
				yield(segment, fmt.Errorf("synthesize segment %d: %w", i, err))
				return
			}
			segment.Samples = samples
			if !yield(segment, nil) {
				return
			}
		}
	}
}

func (c *Client) speak(ctx context.Context, client *openai.Client, input string, voice string) ([]int16, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.Model),
		Input:          input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          c.cfg.Speed,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio.PCM16LEToSamples(pcm), nil
}

// Collect drains a segment sequence, concatenating waveforms in yield order.
func Collect(segments iter.Seq2[Segment, error]) ([]int16, int, error) {
	var (
		samples    []int16
		sampleRate int
	)
	for segment, err := range segments {
		if err != nil {
			return samples, sampleRate, err
		}
		if sampleRate == 0 {
			sampleRate = segment.SampleRate
		}
		samples = append(samples, segment.Samples...)
	}
	return samples, sampleRate, nil
}
