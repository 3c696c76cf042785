package tts

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

type speechServer struct {
	mu       sync.Mutex
	requests []speechRequest
	failOn   string
}

func (s *speechServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		index := len(s.requests)
		s.mu.Unlock()

		if req.Input == s.failOn {
			http.Error(w, `{"error":{"message":"voice not found"}}`, http.StatusInternalServerError)
			return
		}
		// Two samples per segment: (index, -index) as s16le.
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write([]byte{byte(index), 0, byte(-index), 0xFF})
	})
}

func (s *speechServer) inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Input)
	}
	return out
}

func TestSynthesizeYieldsOneSegmentPerSentence(t *testing.T) {
	fake := &speechServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "kokoro", Speed: 1.0, Timeout: time.Second})
	require.NoError(t, client.Warm(context.Background()))

	var segments []Segment
	for segment, err := range client.Synthesize(context.Background(), "Hi there! How are you?", "af_heart") {
		require.NoError(t, err)
		segments = append(segments, segment)
	}

	require.Len(t, segments, 2)
	require.Equal(t, 0, segments[0].Index)
	require.Equal(t, "Hi there!", segments[0].Text)
	require.Equal(t, "af_heart", segments[0].Voice)
	require.Equal(t, DefaultSampleRate, segments[0].SampleRate)
	require.Equal(t, []int16{1, -1}, segments[0].Samples)
	require.Equal(t, []int16{2, -2}, segments[1].Samples)

	fake.mu.Lock()
	first := fake.requests[0]
	fake.mu.Unlock()
	require.Equal(t, "kokoro", first.Model)
	require.Equal(t, "af_heart", first.Voice)
	require.Equal(t, "pcm", first.ResponseFormat)
	require.Equal(t, 1.0, first.Speed)
}

func TestSynthesizeStopsAtFirstError(t *testing.T) {
	fake := &speechServer{failOn: "Second."}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Model: "kokoro"})

	samples, rate, err := Collect(client.Synthesize(context.Background(), "First. Second. Third.", "af_heart"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "synthesize segment 1")
	require.Equal(t, []int16{1, -1}, samples)
	require.Equal(t, DefaultSampleRate, rate)
	require.Equal(t, []string{"First.", "Second."}, fake.inputs())
}

func TestSynthesizeEmptyTextYieldsNothing(t *testing.T) {
	fake := &speechServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	samples, _, err := Collect(New(Config{BaseURL: server.URL}).Synthesize(context.Background(), "   ", "af_heart"))
	require.NoError(t, err)
	require.Empty(t, samples)
	require.Empty(t, fake.inputs())
}

func TestSynthesizeStopsWhenConsumerBreaks(t *testing.T) {
	fake := &speechServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	for range client.Synthesize(context.Background(), "One. Two. Three.", "af_heart") {
		break
	}
	require.Equal(t, []string{"One."}, fake.inputs())
}

func TestSynthesizeReportsInvalidBaseURL(t *testing.T) {
	client := New(Config{BaseURL: "::"})
	_, _, err := Collect(client.Synthesize(context.Background(), "Hello.", "af_heart"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "prepare speech client")
	require.Error(t, client.Warm(context.Background()))
}

func TestSynthesizeHonoursSegmentTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, _, err := Collect(client.Synthesize(context.Background(), "Slow.", "af_heart"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollectConcatenatesInYieldOrder(t *testing.T) {
	var seq iter.Seq2[Segment, error] = func(yield func(Segment, error) bool) {
		if !yield(Segment{Samples: []int16{1, 2}, SampleRate: 24000}, nil) {
			return
		}
		yield(Segment{Samples: []int16{3}, SampleRate: 24000}, nil)
	}

	samples, rate, err := Collect(seq)
	require.NoError(t, err)
	require.Equal(t, []int16{1, 2, 3}, samples)
	require.Equal(t, 24000, rate)

	failing := func(yield func(Segment, error) bool) {
		yield(Segment{}, errors.New("boom"))
	}
	_, _, err = Collect(failing)
	require.EqualError(t, err, "boom")
}
