// Package pipeline hands sealed utterances to the transcription collaborator
// through short-lived WAV artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/stt"
)

const artifactPrefix = "utterance-"

// Options configures a Handoff.
type Options struct {
	ScratchDir string
	AudioDump  bool
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Handoff persists one utterance at a time to the scratch directory, runs the
// recognizer on it, and removes the file before returning.
type Handoff struct {
	recognizer stt.Recognizer
	scratchDir string
	audioDump  bool
	logger     *slog.Logger
	metrics    *metrics.Metrics

	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// NewHandoff builds a handoff around recognizer.
func NewHandoff(recognizer stt.Recognizer, opts Options) (*Handoff, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is nil")
	}
	scratch := strings.TrimSpace(opts.ScratchDir)
	if scratch == "" {
		return nil, errors.New("scratch directory must not be empty")
	}
	return &Handoff{
		recognizer: recognizer,
		scratchDir: scratch,
		audioDump:  opts.AudioDump,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        time.Now,
		newID:      func() string { return uuid.NewString()[:8] },
	}, nil
}

// ScratchDir returns the directory holding in-flight artifacts.
func (h *Handoff) ScratchDir() string {
	return h.scratchDir
}

// ResetScratch removes utterance artifacts left by earlier runs and ensures the
// scratch directory exists. Other files in the directory are left alone.
func (h *Handoff) ResetScratch() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.scratchDir, 0o700); err != nil {
		return fmt.Errorf("create scratch dir %q: %w", h.scratchDir, err)
	}
	return h.removeLeftovers()
}

// Close removes utterance artifacts and then the scratch directory itself,
// unless it still holds files parley did not create.
func (h *Handoff) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.removeLeftovers(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	err := os.Remove(h.scratchDir)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, syscall.ENOTEMPTY), errors.Is(err, syscall.EEXIST):
		h.logDebug("scratch dir kept; holds other files", "dir", h.scratchDir)
		return nil
	default:
		return fmt.Errorf("remove scratch dir %q: %w", h.scratchDir, err)
	}
}

// removeLeftovers deletes files named like utterance artifacts.
func (h *Handoff) removeLeftovers() error {
	matches, err := filepath.Glob(filepath.Join(h.scratchDir, artifactPrefix+"*.wav"))
	if err != nil {
		return fmt.Errorf("list scratch artifacts: %w", err)
	}
	if _, err := os.Stat(h.scratchDir); err != nil {
		return err
	}
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("clear scratch dir %q: %w", h.scratchDir, errors.Join(errs...))
	}
	return nil
}

// Transcribe returns the recognized text for utterance, or "" when encoding
// or recognition fails. Failures are logged, never returned.
func (h *Handoff) Transcribe(ctx context.Context, utterance audio.Utterance) string {
	if utterance.Empty() {
		return ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	started := time.Now()
	defer func() { h.metrics.Transcription(time.Since(started)) }()

	path := h.artifactPath()
	written := false
	defer func() { h.removeArtifact(path, written) }()

	if err := audio.WriteWAV(path, utterance.Samples(), utterance.SampleRate); err != nil {
		h.logWarn("write utterance audio failed", "path", path, "error", err.Error())
		h.metrics.Utterance(metrics.OutcomeFailed)
		return ""
	}
	written = true
	if h.audioDump {
		h.dumpArtifact(path)
	}

	text, err := h.recognizer.Recognize(ctx, path)
	if err != nil {
		h.logWarn("transcription failed", "path", path, "error", err.Error())
		h.metrics.Utterance(metrics.OutcomeFailed)
		return ""
	}

	text = strings.TrimSpace(text)
	if text == "" {
		h.metrics.Utterance(metrics.OutcomeEmptyTranscript)
	} else {
		h.metrics.Utterance(metrics.OutcomeTranscribed)
	}
	h.logDebug("transcription complete",
		"samples", utterance.SampleCount(),
		"audio_ms", utterance.Duration().Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
		"chars", len(text),
	)
	return text
}

// Warm runs the recognizer once on a short silent clip so the server loads
// its model before the first real utterance.
func (h *Handoff) Warm(ctx context.Context, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = audio.CaptureSampleRate
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	path := h.artifactPath()
	written := false
	defer func() { h.removeArtifact(path, written) }()

	if err := audio.WriteWAV(path, make([]int16, sampleRate/2), sampleRate); err != nil {
		return fmt.Errorf("write warmup audio: %w", err)
	}
	written = true
	if _, err := h.recognizer.Recognize(ctx, path); err != nil {
		return fmt.Errorf("warm recognizer: %w", err)
	}
	return nil
}

func (h *Handoff) artifactPath() string {
	name := fmt.Sprintf("%s%d-%s.wav", artifactPrefix, h.now().UnixNano(), h.newID())
	return filepath.Join(h.scratchDir, name)
}

// removeArtifact deletes path. A missing file is only reported when the
// artifact had been fully written, since a failed write may never create it.
func (h *Handoff) removeArtifact(path string, written bool) {
	err := os.Remove(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		if written {
			h.logWarn("temp audio already removed", "path", path)
		}
	default:
		h.logWarn("remove temp audio failed", "path", path, "error", err.Error())
	}
}

// dumpArtifact copies the artifact into the state debug directory.
func (h *Handoff) dumpArtifact(path string) {
	src, err := os.Open(path)
	if err != nil {
		h.logWarn("unable to open utterance for debug dump", "error", err.Error())
		return
	}
	defer src.Close()

	dst, err := createDebugFile("utterance", "wav")
	if err != nil {
		h.logWarn("unable to create debug audio dump", "error", err.Error())
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		h.logWarn("unable to write debug audio dump", "error", err.Error())
	}
}

// createDebugFile creates timestamped debug artifacts under state/parley/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "parley", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

func (h *Handoff) logWarn(message string, attrs ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Warn(message, attrs...)
}

func (h *Handoff) logDebug(message string, attrs ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Debug(message, attrs...)
}
