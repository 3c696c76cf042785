package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *Metrics, name string) []*dto.Metric {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.Utterance(OutcomeTranscribed)
	m.UtteranceLength(time.Second)
	m.DroppedFrames(3)
	m.Transcription(time.Second)
	m.LLM(time.Second, "unavailable")
	m.SynthesisFailed()
	m.PlaybackFailed()
	m.Turn(time.Second)
	require.Nil(t, m.Registry())

	_, err := m.Serve(context.Background(), "127.0.0.1:0", nil)
	require.Error(t, err)
}

func TestUtteranceOutcomesAreLabelled(t *testing.T) {
	m := New()
	m.Utterance(OutcomeTranscribed)
	m.Utterance(OutcomeTranscribed)
	m.Utterance(OutcomeEmptyAudio)

	counts := map[string]float64{}
	for _, metric := range gather(t, m, "parley_utterances_total") {
		counts[labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{OutcomeTranscribed: 2, OutcomeEmptyAudio: 1}, counts)
}

func TestLLMFailuresOnlyCountedWithKind(t *testing.T) {
	m := New()
	m.LLM(200*time.Millisecond, "")
	m.LLM(time.Second, "unavailable")

	failures := gather(t, m, "parley_llm_failures_total")
	require.Len(t, failures, 1)
	require.Equal(t, "unavailable", labelValue(failures[0], "kind"))

	latency := gather(t, m, "parley_llm_duration_seconds")
	require.Len(t, latency, 1)
	require.Equal(t, uint64(2), latency[0].GetHistogram().GetSampleCount())
}

func TestDroppedFramesGaugeTracksTotal(t *testing.T) {
	m := New()
	m.DroppedFrames(4)
	m.DroppedFrames(6)

	gauge := gather(t, m, "parley_capture_dropped_frames")
	require.Len(t, gauge, 1)
	require.Equal(t, float64(6), gauge[0].GetGauge().GetValue())
}

func TestServeExposesMetrics(t *testing.T) {
	m := New()
	m.SynthesisFailed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := m.Serve(ctx, "127.0.0.1:0", nil)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "parley_synthesis_failures_total 1"))
}

func TestServeReportsBindFailure(t *testing.T) {
	m := New()
	_, err := m.Serve(context.Background(), "256.0.0.1:1", nil)
	require.Error(t, err)
}
