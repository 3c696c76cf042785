// Package conversation turns transcripts into spoken replies: language model,
// glyph scrubbing, synthesis, the reply artifact, and playback.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/parley/internal/llm"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/playback"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/tts"
)

// Replies spoken when the language model cannot answer.
const (
	ApologyUnavailable = "I apologize, but I'm having trouble connecting to my language model right now."
	ApologyUnexpected  = "I encountered an unexpected error. Please try again."
)

// Indicator is the loop-facing subset of indicator behavior.
type Indicator interface {
	ShowSpeaking(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowSpeaking(context.Context)      {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) Hide(context.Context)              {}

// Options carries loop settings and optional collaborators.
type Options struct {
	Voice      string
	SampleRate int
	Prompt     string
	Transcript transcript.Options
	Out        io.Writer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Indicator  Indicator
}

// Loop handles one transcript at a time; it is called from the session's
// polling goroutine and blocks until the reply has played.
type Loop struct {
	generator   llm.Generator
	synthesizer tts.Synthesizer
	artifact    *playback.Artifact
	player      playback.Player

	voice      string
	sampleRate int
	prompt     string
	normalize  transcript.Options
	out        io.Writer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	indicator  Indicator
}

// New wires a conversation loop.
func New(
	generator llm.Generator,
	synthesizer tts.Synthesizer,
	artifact *playback.Artifact,
	player playback.Player,
	opts Options,
) (*Loop, error) {
	switch {
	case generator == nil:
		return nil, errors.New("language model is nil")
	case synthesizer == nil:
		return nil, errors.New("synthesizer is nil")
	case artifact == nil:
		return nil, errors.New("response artifact is nil")
	case player == nil:
		return nil, errors.New("player is nil")
	}

	l := &Loop{
		generator:   generator,
		synthesizer: synthesizer,
		artifact:    artifact,
		player:      player,
		voice:       opts.Voice,
		sampleRate:  opts.SampleRate,
		prompt:      opts.Prompt,
		normalize:   opts.Transcript,
		out:         opts.Out,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		indicator:   opts.Indicator,
	}
	if l.out == nil {
		l.out = io.Discard
	}
	if l.indicator == nil {
		l.indicator = noopIndicator{}
	}
	if l.sampleRate <= 0 {
		l.sampleRate = tts.DefaultSampleRate
	}
	return l, nil
}

// HandleTranscript runs one full turn for a non-empty transcript. The model
// receives the recognized text as is; normalization only affects the echo.
func (l *Loop) HandleTranscript(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	started := time.Now()
	defer func() { l.metrics.Turn(time.Since(started)) }()

	l.printf("\nYou said: %s\n", transcript.Normalize(text, l.normalize))

	reply := l.Reply(ctx, text)
	l.printf("AI Response: %s\n", reply)
	l.printf("Generating audio response...\n")

	if err := l.Speak(ctx, reply); err != nil {
		l.logWarn("reply audio failed", "error", err.Error())
		l.indicator.ShowError(ctx, "Reply audio failed")
		l.printf("Error in audio generation/playback: %v\n", err)
	} else {
		l.indicator.Hide(ctx)
	}

	if l.prompt != "" {
		l.printf("\n%s\n", l.prompt)
	}
}

// Reply asks the language model for an answer and scrubs it. Failures turn
// into a spoken apology; they are never returned.
func (l *Loop) Reply(ctx context.Context, text string) string {
	started := time.Now()
	reply, err := l.generator.Generate(ctx, text)
	if err == nil {
		l.metrics.LLM(time.Since(started), "")
		return StripGlyphs(strings.TrimSpace(reply))
	}

	if errors.Is(err, llm.ErrUnavailable) {
		l.metrics.LLM(time.Since(started), "unavailable")
		l.logWarn("language model unavailable", "error", err.Error())
		l.printf("Error communicating with the language model: %v\n", err)
		return ApologyUnavailable
	}

	l.metrics.LLM(time.Since(started), "unexpected")
	l.logWarn("language model failed", "error", err.Error())
	l.printf("Unexpected error: %v\n", err)
	return ApologyUnexpected
}

// Speak synthesizes text, replaces the reply artifact, and plays it.
func (l *Loop) Speak(ctx context.Context, text string) error {
	samples, rate, err := tts.Collect(l.synthesizer.Synthesize(ctx, text, l.voice))
	if err != nil {
		l.metrics.SynthesisFailed()
		return fmt.Errorf("synthesize reply: %w", err)
	}
	if len(samples) == 0 {
		l.metrics.SynthesisFailed()
		return errors.New("synthesize reply: no audio produced")
	}
	if rate <= 0 {
		rate = l.sampleRate
	}

	if err := l.artifact.Replace(samples, rate); err != nil {
		l.metrics.PlaybackFailed()
		return fmt.Errorf("write reply audio: %w", err)
	}

	l.indicator.ShowSpeaking(ctx)
	if err := l.player.Play(ctx, l.artifact.Path()); err != nil {
		l.metrics.PlaybackFailed()
		return fmt.Errorf("play reply audio: %w", err)
	}
	return nil
}

func (l *Loop) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.out, format, args...)
}

func (l *Loop) logWarn(message string, attrs ...any) {
	if l.logger != nil {
		l.logger.Warn(message, attrs...)
	}
}
