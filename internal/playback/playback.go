// Package playback owns the reply audio artifact and plays PCM through PulseAudio.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/parley/internal/audio"
)

// Player plays one WAV file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// PulsePlayer decodes WAV files and plays them on the default sink.
type PulsePlayer struct{}

// Play blocks until the file has been played or ctx is cancelled.
func (PulsePlayer) Play(ctx context.Context, path string) error {
	samples, rate, err := audio.ReadWAV(path)
	if err != nil {
		return err
	}
	return PlaySamples(ctx, samples, rate, "parley reply")
}

// PlaySamples plays mono s16 samples at sampleRate. Cancelling ctx stops
// feeding the stream; already buffered audio still drains.
func PlaySamples(ctx context.Context, samples []int16, sampleRate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parley"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		sampleReader(ctx, samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s: %w", mediaName, err)
	}
	return ctx.Err()
}

// sampleReader feeds samples to Pulse, ending early once ctx is done.
func sampleReader(ctx context.Context, samples []int16) pulse.Int16Reader {
	cursor := 0
	return func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}

// Artifact is the single on-disk WAV holding the latest reply. Each Replace
// removes the previous file before writing the new one.
type Artifact struct {
	path string
	mu   sync.Mutex
}

// NewArtifact returns an artifact stored at path.
func NewArtifact(path string) (*Artifact, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("response artifact path must not be empty")
	}
	return &Artifact{path: path}, nil
}

// Path returns the artifact location.
func (a *Artifact) Path() string {
	return a.path
}

// Replace swaps the artifact for a WAV encoding of samples.
func (a *Artifact) Replace(samples []int16, sampleRate int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := removeIfExists(a.path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return fmt.Errorf("create response dir: %w", err)
	}
	return audio.WriteWAV(a.path, samples, sampleRate)
}

// Remove deletes the artifact if present.
func (a *Artifact) Remove() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return removeIfExists(a.path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove response audio %q: %w", path, err)
	}
	return nil
}
