package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/conversation"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/keys"
	"github.com/rbright/parley/internal/llm"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/pipeline"
	"github.com/rbright/parley/internal/playback"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/stt"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/tts"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	warmTimeout         = 90 * time.Second
)

func (r Runner) commandChat(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.SocketPath(config.RuntimeDir())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	if _, handled, _ := tryForward(ctx, socketPath, ipc.CommandStatus); handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", ipc.ErrAlreadyRunning)
		return exitFailure
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("acquire socket failed", "socket", socketPath, "error", err.Error())
		return exitFailure
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		addr, err := m.Serve(runCtx, listen, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitFailure
		}
		logger.Info("metrics listening", "addr", addr.String())
	}

	parts, err := r.assemble(runCtx, cfg, logger, m)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("chat startup failed", "error", err.Error())
		return exitFailure
	}
	defer parts.close(logger)

	r.warm(runCtx, cfg, parts, logger)

	prompt := promptText(cfg.Keys)
	controller, err := session.NewController(parts.sampler, parts.buffer, parts.handoff, parts.loop, session.Options{
		Logger:       logger,
		Metrics:      m,
		Indicator:    parts.notifier,
		Out:          r.Stdout,
		Prompt:       prompt,
		PollInterval: time.Duration(cfg.Keys.PollIntervalMS) * time.Millisecond,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- ipc.Serve(runCtx, listener, ipc.HandlerFunc(controller.Handle))
	}()

	fmt.Fprintf(r.Stdout, "\n%s\n", prompt)
	result := controller.Run(runCtx)
	cancel()
	if err := <-serveErr; err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("ipc server stopped", "error", err.Error())
	}

	return r.logSessionResult(logger, result)
}

// chatParts holds every collaborator that needs releasing when chat ends.
type chatParts struct {
	buffer   *audio.Buffer
	capture  *audio.Capture
	keyboard *keys.EvdevReader
	sampler  *keys.Sampler
	recog    *stt.Client
	handoff  *pipeline.Handoff
	model    *llm.Client
	speech   *tts.Client
	artifact *playback.Artifact
	notifier *indicator.Notifier
	loop     *conversation.Loop
}

func (r Runner) assemble(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (parts *chatParts, err error) {
	parts = &chatParts{}
	defer func() {
		if err != nil {
			parts.close(logger)
			parts = nil
		}
	}()

	parts.recog = stt.New(stt.Config{
		BaseURL:  cfg.STT.BaseURL,
		APIKey:   cfg.STT.APIKey,
		Model:    cfg.STT.Model,
		Language: cfg.STT.Language,
		Timeout:  time.Duration(cfg.STT.TimeoutMS) * time.Millisecond,
	})
	parts.handoff, err = pipeline.NewHandoff(parts.recog, pipeline.Options{
		ScratchDir: cfg.STT.ScratchDir,
		AudioDump:  cfg.Debug.AudioDump,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return parts, err
	}
	if err = parts.handoff.ResetScratch(); err != nil {
		return parts, err
	}

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return parts, err
	}
	if selection.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
		logger.Warn("audio fallback", "warning", selection.Warning)
	}
	parts.buffer = audio.NewBuffer(cfg.Audio.SampleRate, cfg.Audio.QueueFrames)
	parts.capture, err = audio.StartCapture(ctx, selection.Device, parts.buffer, cfg.Audio.BlockSize)
	if err != nil {
		return parts, err
	}
	logger.Info("capture started", "device", selection.Device.ID)

	paths, err := keys.DiscoverKeyboards(cfg.Keys.Devices)
	if err != nil {
		return parts, err
	}
	parts.keyboard, err = keys.OpenEvdev(paths)
	if err != nil {
		return parts, err
	}
	record, err := keys.ParseKey(cfg.Keys.Record)
	if err != nil {
		return parts, err
	}
	quit, err := keys.ParseKey(cfg.Keys.Quit)
	if err != nil {
		return parts, err
	}
	parts.sampler, err = keys.NewSampler(parts.keyboard, record, quit)
	if err != nil {
		return parts, err
	}
	logger.Info("keyboards opened", "paths", strings.Join(parts.keyboard.Paths(), ","))

	parts.notifier = indicator.New(cfg.Indicator, logger)
	parts.model = llm.New(llm.Config{
		Endpoint:     cfg.LLM.Endpoint,
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Timeout:      time.Duration(cfg.LLM.TimeoutMS) * time.Millisecond,
	})
	parts.speech = tts.New(tts.Config{
		BaseURL:    cfg.TTS.BaseURL,
		APIKey:     cfg.TTS.APIKey,
		Model:      cfg.TTS.Model,
		SampleRate: cfg.TTS.SampleRate,
		Speed:      cfg.TTS.Speed,
		Timeout:    time.Duration(cfg.TTS.TimeoutMS) * time.Millisecond,
	})
	parts.artifact, err = playback.NewArtifact(cfg.TTS.ResponseFile)
	if err != nil {
		return parts, err
	}

	parts.loop, err = conversation.New(parts.model, parts.speech, parts.artifact, playback.PulsePlayer{}, conversation.Options{
		Voice:      cfg.TTS.Voice,
		SampleRate: parts.speech.SampleRate(),
		Prompt:     promptText(cfg.Keys),
		Transcript: transcript.Options{CapitalizeSentences: cfg.Transcript.CapitalizeSentences},
		Out:        r.Stdout,
		Logger:     logger,
		Metrics:    m,
		Indicator:  parts.notifier,
	})
	if err != nil {
		return parts, err
	}
	return parts, nil
}

// warm prepares every remote collaborator concurrently. Failures are reported
// and the session still starts; the affected turn degrades on its own.
func (r Runner) warm(ctx context.Context, cfg config.Config, parts *chatParts, logger *slog.Logger) {
	warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"transcription", func(ctx context.Context) error {
			if err := parts.recog.Warm(ctx); err != nil {
				return err
			}
			if !cfg.STT.Warmup {
				return nil
			}
			return parts.handoff.Warm(ctx, cfg.Audio.SampleRate)
		}},
		{"language model", parts.model.Warm},
		{"speech", parts.speech.Warm},
	}

	fmt.Fprintln(r.Stdout, "Loading models...")
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, step := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			err := step.fn(warmCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(r.Stderr, "warning: %s not ready: %v\n", step.name, err)
				logger.Warn("warmup failed", "component", step.name, "error", err.Error())
				return
			}
			logger.Info("warmup complete", "component", step.name, "elapsed_ms", time.Since(started).Milliseconds())
		}()
	}
	wg.Wait()
}

func (p *chatParts) close(logger *slog.Logger) {
	if p == nil {
		return
	}
	if p.capture != nil {
		if err := p.capture.Stop(); err != nil {
			logger.Warn("stop capture failed", "error", err.Error())
		}
	}
	if p.keyboard != nil {
		_ = p.keyboard.Close()
	}
	if p.handoff != nil {
		if err := p.handoff.Close(); err != nil {
			logger.Warn("remove scratch dir failed", "error", err.Error())
		}
	}
	if p.recog != nil {
		_ = p.recog.Close()
	}
	if p.speech != nil {
		_ = p.speech.Close()
	}
	if p.artifact != nil {
		if err := p.artifact.Remove(); err != nil {
			logger.Warn("remove response file failed", "error", err.Error())
		}
	}
	if p.notifier != nil {
		p.notifier.Wait()
	}
}

func promptText(cfg config.KeysConfig) string {
	return fmt.Sprintf(
		"Press and hold %s to speak, release to process, or %s to quit.",
		strings.ToUpper(strings.TrimSpace(cfg.Record)),
		strings.ToUpper(strings.TrimSpace(cfg.Quit)),
	)
}

func (r Runner) logSessionResult(logger *slog.Logger, result session.Result) int {
	logger.Info("session result",
		"state", string(result.State),
		"reason", result.Reason,
		"utterances", result.Utterances,
		"transcripts", result.Transcripts,
		"discarded", result.Discarded,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)

	if result.Reason == session.ReasonKeyReader && result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return exitFailure
	}
	fmt.Fprintln(r.Stdout, "Goodbye.")
	return exitOK
}
