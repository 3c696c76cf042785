// Package session runs the push-to-talk polling loop that turns key edges into
// sealed utterances and transcripts.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/keys"
	"github.com/rbright/parley/internal/metrics"
)

// DefaultPollInterval is the key sampling period.
const DefaultPollInterval = 10 * time.Millisecond

// Reasons a Run finished.
const (
	ReasonQuitKey   = "quit_key"
	ReasonIPCQuit   = "ipc_quit"
	ReasonSignal    = "signal"
	ReasonKeyReader = "key_reader"
)

type action int

const (
	actionQuit action = iota + 1
)

// Sampler yields the key edges observed since the previous call.
type Sampler interface {
	Sample() ([]keys.Edge, error)
}

// Recorder is the poll-loop side of the capture buffer.
type Recorder interface {
	Begin()
	Drain() int
	Seal() audio.Utterance
	Dropped() int64
}

// Transcriber turns one sealed utterance into text. It returns "" for
// silence and for any failure.
type Transcriber interface {
	Transcribe(ctx context.Context, utterance audio.Utterance) string
}

// TranscriptHandler receives every non-empty transcript. Key polling resumes
// only after HandleTranscript returns.
type TranscriptHandler interface {
	HandleTranscript(ctx context.Context, text string)
}

// HandlerFunc adapts a function to TranscriptHandler.
type HandlerFunc func(ctx context.Context, text string)

// HandleTranscript calls f.
func (f HandlerFunc) HandleTranscript(ctx context.Context, text string) {
	f(ctx, text)
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	CueStart(context.Context)
	CueStop(context.Context)
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) CueStart(context.Context)          {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowProcessing(context.Context)    {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) Hide(context.Context)              {}

// Options carries optional collaborators.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Indicator    Indicator
	Out          io.Writer
	Prompt       string
	PollInterval time.Duration
}

// Result summarizes one Run.
type Result struct {
	State       fsm.State
	Reason      string
	Err         error
	Utterances  int
	Transcripts int
	Discarded   int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Controller owns the recording state machine. Only the Run goroutine mutates
// state; other goroutines read it through State and talk to it through Handle.
type Controller struct {
	sampler     Sampler
	recorder    Recorder
	transcriber Transcriber
	handler     TranscriptHandler

	logger       *slog.Logger
	metrics      *metrics.Metrics
	indicator    Indicator
	out          io.Writer
	prompt       string
	pollInterval time.Duration

	mu    sync.RWMutex
	state fsm.State

	actions chan action
}

// NewController wires the polling loop. handler may be nil, in which case
// transcripts are only logged.
func NewController(
	sampler Sampler,
	recorder Recorder,
	transcriber Transcriber,
	handler TranscriptHandler,
	opts Options,
) (*Controller, error) {
	if sampler == nil {
		return nil, errors.New("key sampler is nil")
	}
	if recorder == nil {
		return nil, errors.New("audio recorder is nil")
	}
	if transcriber == nil {
		return nil, errors.New("transcriber is nil")
	}

	c := &Controller{
		sampler:      sampler,
		recorder:     recorder,
		transcriber:  transcriber,
		handler:      handler,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		indicator:    opts.Indicator,
		out:          opts.Out,
		prompt:       opts.Prompt,
		pollInterval: opts.PollInterval,
		state:        fsm.StateIdle,
		actions:      make(chan action, 1),
	}
	if c.handler == nil {
		c.handler = HandlerFunc(func(_ context.Context, text string) {
			c.logInfo("transcript ignored; no handler", "chars", len(text))
		})
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	return c, nil
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run polls keys until quit, an IPC quit, ctx cancellation, or a key reader
// failure. It blocks while an utterance is transcribed and handled.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	finish := func(reason string, err error) Result {
		c.terminate(ctx, &result, reason)
		result.Err = err
		result.State = c.State()
		result.FinishedAt = time.Now()
		return result
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return finish(ReasonSignal, ctx.Err())
		case a := <-c.actions:
			if a == actionQuit {
				return finish(ReasonIPCQuit, nil)
			}
		case <-ticker.C:
			if c.State() == fsm.StateRecording {
				c.recorder.Drain()
			}

			edges, err := c.sampler.Sample()
			if err != nil {
				c.logError("key sampling failed", "error", err.Error())
				return finish(ReasonKeyReader, err)
			}

			for _, edge := range edges {
				switch edge {
				case keys.EdgeRecordStart:
					c.startRecording(ctx)
				case keys.EdgeRecordStop:
					c.stopRecording(ctx, &result)
				case keys.EdgeQuit:
					return finish(ReasonQuitKey, nil)
				}
			}
		}
	}
}

// startRecording opens a new utterance. A start edge outside idle is ignored.
func (c *Controller) startRecording(ctx context.Context) {
	if err := c.transition(fsm.EventRecordStart); err != nil {
		c.logDebug("record start ignored", "state", string(c.State()), "error", err.Error())
		return
	}
	c.recorder.Begin()
	c.indicator.CueStart(ctx)
	c.indicator.ShowRecording(ctx)
	c.print("Recording...")
}

// stopRecording seals the utterance and, when it holds audio, hands it off and
// delivers the transcript before returning to idle.
func (c *Controller) stopRecording(ctx context.Context, result *Result) {
	if err := c.transition(fsm.EventRecordStop); err != nil {
		c.logDebug("record stop ignored", "state", string(c.State()), "error", err.Error())
		return
	}

	utterance := c.recorder.Seal()
	c.metrics.DroppedFrames(c.recorder.Dropped())
	c.indicator.CueStop(ctx)

	if utterance.Empty() {
		result.Discarded++
		c.metrics.Utterance(metrics.OutcomeEmptyAudio)
		c.logDebug("empty utterance discarded")
		c.mustTransition(fsm.EventDiscard)
		c.indicator.Hide(ctx)
		return
	}

	result.Utterances++
	c.metrics.UtteranceLength(utterance.Duration())
	c.indicator.ShowProcessing(ctx)
	c.print("Processing...")

	text := c.transcriber.Transcribe(ctx, utterance)
	c.logInfo("utterance processed",
		"frames", len(utterance.Frames),
		"audio_ms", utterance.Duration().Milliseconds(),
		"chars", len(text),
	)

	if text == "" {
		c.mustTransition(fsm.EventHandoffDone)
		c.indicator.ShowError(ctx, "No speech detected")
		c.print("No speech detected.")
		c.printPrompt()
		return
	}

	// The reply turn belongs to this utterance; status reports processing
	// until the handler returns.
	result.Transcripts++
	c.handler.HandleTranscript(ctx, text)
	c.mustTransition(fsm.EventHandoffDone)
	c.indicator.Hide(ctx)
}

// terminate finishes any open utterance and moves to the terminal state. A
// live utterance is transcribed and delivered first unless ctx is done.
func (c *Controller) terminate(ctx context.Context, result *Result, reason string) {
	if c.State() == fsm.StateRecording {
		if ctx.Err() == nil {
			c.stopRecording(ctx, result)
		} else {
			c.recorder.Seal()
			result.Discarded++
		}
	}

	if err := c.transition(fsm.EventQuit); err != nil {
		c.logDebug("quit transition rejected", "error", err.Error())
	}
	result.Reason = reason

	hideCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	c.indicator.Hide(hideCtx)

	c.print("Stopping...")
	c.logInfo("session finished", "reason", reason)
}

// mustTransition applies an event that the loop's own sequencing guarantees
// is valid; a rejection is logged.
func (c *Controller) mustTransition(event fsm.Event) {
	if err := c.transition(event); err != nil {
		c.logError("unexpected transition failure", "event", string(event), "error", err.Error())
	}
}

// Handle serves IPC commands for the running chat session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case ipc.CommandQuit:
		return c.requestQuit()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestQuit enqueues a quit honored once any in-flight utterance finishes.
func (c *Controller) requestQuit() ipc.Response {
	state := c.State()
	if state == fsm.StateTerminated {
		return ipc.Response{OK: false, State: string(state), Error: "session already terminated"}
	}

	select {
	case c.actions <- actionQuit:
		return ipc.Response{OK: true, State: string(state), Message: "quit requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "quit already requested"}
	}
}

func (c *Controller) print(line string) {
	_, _ = fmt.Fprintf(c.out, "\n%s\n", line)
}

func (c *Controller) printPrompt() {
	if c.prompt == "" {
		return
	}
	c.print(c.prompt)
}

func (c *Controller) logDebug(message string, attrs ...any) {
	if c.logger != nil {
		c.logger.Debug(message, attrs...)
	}
}

func (c *Controller) logInfo(message string, attrs ...any) {
	if c.logger != nil {
		c.logger.Info(message, attrs...)
	}
}

func (c *Controller) logError(message string, attrs ...any) {
	if c.logger != nil {
		c.logger.Error(message, attrs...)
	}
}
