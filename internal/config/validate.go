package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rbright/parley/internal/keys"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.BlockSize <= 0 {
		return nil, fmt.Errorf("audio.block_size must be > 0")
	}
	if cfg.Audio.QueueFrames <= 0 {
		return nil, fmt.Errorf("audio.queue_frames must be > 0")
	}
	if cfg.Audio.SampleRate != 16000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.sample_rate=%d; speech models expect 16000", cfg.Audio.SampleRate)})
	}

	record, err := keys.ParseKey(cfg.Keys.Record)
	if err != nil {
		return nil, fmt.Errorf("keys.record: %w", err)
	}
	quit, err := keys.ParseKey(cfg.Keys.Quit)
	if err != nil {
		return nil, fmt.Errorf("keys.quit: %w", err)
	}
	if record == quit {
		return nil, fmt.Errorf("keys.record and keys.quit must differ")
	}
	if cfg.Keys.PollIntervalMS <= 0 {
		return nil, fmt.Errorf("keys.poll_interval_ms must be > 0")
	}
	if cfg.Keys.PollIntervalMS > 50 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("keys.poll_interval_ms=%d adds noticeable edge latency", cfg.Keys.PollIntervalMS)})
	}

	if err := validateHTTPURL("stt.base_url", cfg.STT.BaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.STT.Model) == "" {
		return nil, fmt.Errorf("stt.model must not be empty")
	}
	if cfg.STT.TimeoutMS <= 0 {
		return nil, fmt.Errorf("stt.timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.STT.ScratchDir) == "" {
		return nil, fmt.Errorf("stt.scratch_dir must not be empty")
	}

	if err := validateHTTPURL("llm.endpoint", cfg.LLM.Endpoint); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}
	if cfg.LLM.TimeoutMS <= 0 {
		return nil, fmt.Errorf("llm.timeout_ms must be > 0")
	}
	if !strings.HasSuffix(strings.TrimRight(cfg.LLM.Endpoint, "/"), "/api/generate") {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("llm.endpoint %q does not end in /api/generate", cfg.LLM.Endpoint)})
	}

	if err := validateHTTPURL("tts.base_url", cfg.TTS.BaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.TTS.Voice) == "" {
		return nil, fmt.Errorf("tts.voice must not be empty")
	}
	if cfg.TTS.SampleRate <= 0 {
		return nil, fmt.Errorf("tts.sample_rate must be > 0")
	}
	if cfg.TTS.Speed <= 0 {
		return nil, fmt.Errorf("tts.speed must be > 0")
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return nil, fmt.Errorf("tts.timeout_ms must be > 0")
	}
	if strings.TrimSpace(cfg.TTS.ResponseFile) == "" {
		return nil, fmt.Errorf("tts.response_file must not be empty")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("metrics.listen %q: %w", listen, err)
		}
	}

	return warnings, nil
}

func validateHTTPURL(field string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}
