package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	cfg, warnings, err := Parse(`
audio:
  input: alsa_input.usb-mic
  queue_frames: 256
keys:
  record: f13
  quit: escape
  devices:
    - /dev/input/event3
  poll_interval_ms: 15
stt:
  base_url: http://stt.local:8000
  model: whisper-small
  timeout_ms: 30000
llm:
  model: mistral
  system_prompt: "  Be brief.  "
tts:
  voice: am_adam
  speed: 1.2
indicator:
  backend: desktop
  sound_enable: false
transcript:
  capitalize_sentences: true
metrics:
  listen: 127.0.0.1:9464
debug:
  audio_dump: true
`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "alsa_input.usb-mic", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback)
	require.Equal(t, 256, cfg.Audio.QueueFrames)
	require.Equal(t, "f13", cfg.Keys.Record)
	require.Equal(t, "escape", cfg.Keys.Quit)
	require.Equal(t, []string{"/dev/input/event3"}, cfg.Keys.Devices)
	require.Equal(t, 15, cfg.Keys.PollIntervalMS)
	require.Equal(t, "http://stt.local:8000", cfg.STT.BaseURL)
	require.Equal(t, "whisper-small", cfg.STT.Model)
	require.Equal(t, 30000, cfg.STT.TimeoutMS)
	require.Equal(t, "mistral", cfg.LLM.Model)
	require.Equal(t, "Be brief.", cfg.LLM.SystemPrompt)
	require.Equal(t, "am_adam", cfg.TTS.Voice)
	require.InDelta(t, 1.2, cfg.TTS.Speed, 1e-9)
	require.Equal(t, "desktop", cfg.Indicator.Backend)
	require.False(t, cfg.Indicator.SoundEnable)
	require.True(t, cfg.Indicator.Enable)
	require.True(t, cfg.Transcript.CapitalizeSentences)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	require.True(t, cfg.Debug.AudioDump)
}

func TestParseEmptyContentReturnsDefaults(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
	require.False(t, cfg.Transcript.CapitalizeSentences)

	cfg, _, err = Parse("# only a comment\n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse("audio:\n  input: default\n  gain: 3\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
	require.Contains(t, err.Error(), "gain")
}

func TestParseTypeErrorIncludesLine(t *testing.T) {
	_, _, err := Parse("keys:\n  poll_interval_ms: fast\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestParseRejectsSecondDocument(t *testing.T) {
	_, _, err := Parse("audio:\n  input: a\n---\naudio:\n  input: b\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "second YAML document")
}

func TestParseDevicesAcceptsCommaString(t *testing.T) {
	cfg, _, err := Parse("keys:\n  devices: /dev/input/event3, /dev/input/event7 ,\n", Default())
	require.NoError(t, err)
	require.Equal(t, []string{"/dev/input/event3", "/dev/input/event7"}, cfg.Keys.Devices)
}

func TestParseDevicesRejectsMapping(t *testing.T) {
	_, _, err := Parse("keys:\n  devices:\n    a: b\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "string list")
}

func TestParseRunsValidation(t *testing.T) {
	_, _, err := Parse("keys:\n  record: esc\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "must differ")
}
