// Package metrics exposes conversation loop counters and latencies to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Utterance outcomes.
const (
	OutcomeTranscribed     = "transcribed"
	OutcomeEmptyTranscript = "empty_transcript"
	OutcomeEmptyAudio      = "empty_audio"
	OutcomeFailed          = "failed"
)

// Metrics holds every collector registered by one process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	utterances           *prometheus.CounterVec
	droppedFrames        prometheus.Gauge
	utteranceSeconds     prometheus.Histogram
	transcriptionSeconds prometheus.Histogram
	llmFailures          *prometheus.CounterVec
	llmSeconds           prometheus.Histogram
	synthesisFailures    prometheus.Counter
	playbackFailures     prometheus.Counter
	turnSeconds          prometheus.Histogram
}

// New builds a metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_utterances_total",
			Help: "Utterances sealed by the recording session, by outcome",
		}, []string{"outcome"}),
		droppedFrames: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_capture_dropped_frames",
			Help: "Capture frames dropped because the hand-off queue was full",
		}),
		utteranceSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parley_utterance_duration_seconds",
			Help:    "Length of captured utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to 32s
		}),
		transcriptionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parley_transcription_duration_seconds",
			Help:    "Time spent in the transcription hand-off",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		llmFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_llm_failures_total",
			Help: "Language model calls that fell back to an apology, by kind",
		}, []string{"kind"}),
		llmSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parley_llm_duration_seconds",
			Help:    "Language model request latency",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		synthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_synthesis_failures_total",
			Help: "Replies that could not be synthesized",
		}),
		playbackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_playback_failures_total",
			Help: "Replies that could not be written or played",
		}),
		turnSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parley_turn_duration_seconds",
			Help:    "Time from transcript to end of reply playback",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Utterance counts one sealed utterance outcome.
func (m *Metrics) Utterance(outcome string) {
	if m == nil {
		return
	}
	m.utterances.WithLabelValues(outcome).Inc()
}

// UtteranceLength records the captured audio length.
func (m *Metrics) UtteranceLength(d time.Duration) {
	if m == nil {
		return
	}
	m.utteranceSeconds.Observe(d.Seconds())
}

// DroppedFrames publishes the running dropped-frame total.
func (m *Metrics) DroppedFrames(total int64) {
	if m == nil {
		return
	}
	m.droppedFrames.Set(float64(total))
}

// Transcription records hand-off latency.
func (m *Metrics) Transcription(d time.Duration) {
	if m == nil {
		return
	}
	m.transcriptionSeconds.Observe(d.Seconds())
}

// LLM records one language model call; kind is empty on success.
func (m *Metrics) LLM(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.llmSeconds.Observe(d.Seconds())
	if kind != "" {
		m.llmFailures.WithLabelValues(kind).Inc()
	}
}

// SynthesisFailed counts a reply that produced no audio.
func (m *Metrics) SynthesisFailed() {
	if m == nil {
		return
	}
	m.synthesisFailures.Inc()
}

// PlaybackFailed counts a reply that could not be written or played.
func (m *Metrics) PlaybackFailed() {
	if m == nil {
		return
	}
	m.playbackFailures.Inc()
}

// Turn records one full conversation turn.
func (m *Metrics) Turn(d time.Duration) {
	if m == nil {
		return
	}
	m.turnSeconds.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. The listener is bound
// before Serve returns so bind errors surface to the caller.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) (net.Addr, error) {
	if m == nil {
		return nil, errors.New("metrics are disabled")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %q: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && logger != nil {
			logger.Error("metrics server stopped", "error", err.Error())
		}
	}()

	return listener.Addr(), nil
}
