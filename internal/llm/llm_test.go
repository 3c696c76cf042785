package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateSendsFramedPromptWithoutStreaming(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"mistral","response":"  Hi there!  ","done":true}`))
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL + "/api/generate", Model: "mistral", SystemPrompt: "Be brief."})
	reply, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "Hi there!", reply)

	require.Equal(t, "mistral", got["model"])
	require.Equal(t, "Be brief.\nUser: hello\nAssistant:", got["prompt"])
	require.Equal(t, false, got["stream"])
}

func TestGenerateFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"status_non_2xx", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("model crashed"))
		}, ErrUnavailable},
		{"bad_json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not-json"))
		}, ErrMalformed},
		{"missing_response", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"done":true}`))
		}, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := New(Config{Endpoint: srv.URL + "/api/generate", Model: "m"}).Generate(context.Background(), "hi")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGenerateConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/generate"
	srv.Close()

	_, err := New(Config{Endpoint: endpoint, Model: "m"}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGenerateTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{Endpoint: srv.URL, Model: "m", Timeout: 50 * time.Millisecond}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateUsesInjectedHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"routed"}`))
	}))
	defer srv.Close()

	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}

	reply, err := New(Config{Endpoint: "http://ollama.invalid/api/generate", HTTPClient: client}).Generate(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "routed", reply)
}

func TestWarmLoadsModelWithoutPrompt(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"mistral","response":"","done":true}`))
	}))
	defer srv.Close()

	require.NoError(t, New(Config{Endpoint: srv.URL + "/api/generate", Model: "mistral"}).Warm(context.Background()))
	require.Equal(t, "mistral", got["model"])
	_, hasPrompt := got["prompt"]
	require.False(t, hasPrompt)
}

func TestPingHitsTagsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	require.NoError(t, New(Config{Endpoint: srv.URL + "/api/generate"}).Ping(context.Background()))

	err := New(Config{Endpoint: "not a url"}).Ping(context.Background())
	require.Error(t, err)
}

func TestPingReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := New(Config{Endpoint: srv.URL + "/api/generate"}).Ping(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
