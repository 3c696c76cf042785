// Package indicator plays audio cues and shows conversation state through
// Hyprland or freedesktop notifications.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/hypr"
)

const (
	colorRecording  = "rgb(89b4fa)"
	colorProcessing = "rgb(cba6f7)"
	colorSpeaking   = "rgb(a6e3a1)"
	colorError      = "rgb(f38ba8)"

	stickyTimeoutMS = 300000
	dispatchTimeout = 400 * time.Millisecond
)

// Notifier is the runtime indicator shared by the session and the
// conversation loop.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	play     playFunc

	mu        sync.Mutex
	desktopID uint32

	cues sync.WaitGroup
	// soundMu keeps cues from overlapping.
	soundMu sync.Mutex
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFromEnv(),
	}
}

// CueStart plays the recording-start cue.
func (n *Notifier) CueStart(context.Context) {
	n.playCue(cueStart)
}

// CueStop plays the recording-stop cue.
func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

// ShowRecording shows the listening state until replaced or hidden.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorRecording, n.messages.recording)
}

// ShowProcessing shows the transcription and model state.
func (n *Notifier) ShowProcessing(ctx context.Context) {
	n.show(ctx, hypr.IconInfo, stickyTimeoutMS, colorProcessing, n.messages.processing)
}

// ShowSpeaking shows the playback state.
func (n *Notifier) ShowSpeaking(ctx context.Context) {
	n.show(ctx, hypr.IconOK, stickyTimeoutMS, colorSpeaking, n.messages.speaking)
}

// ShowError shows text briefly; an empty text uses the locale default.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.show(ctx, hypr.IconError, timeout, colorError, text)
}

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) show(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, icon, timeoutMS, color, text)
	})
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

func (n *Notifier) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if !n.desktop() {
		return hypr.Notify(ctx, icon, timeoutMS, color, text)
	}

	n.mu.Lock()
	replaceID := n.desktopID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "parley-indicator"
	}
	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if !n.desktop() {
		return hypr.DismissNotify(ctx)
	}

	n.mu.Lock()
	id := n.desktopID
	n.desktopID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue plays asynchronously so the poll loop never waits on audio.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := emitCue(ctx, kind, n.play); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
