package config

import (
	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/llm"
	"github.com/rbright/parley/internal/tts"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:       "default",
			Fallback:    "default",
			SampleRate:  audio.CaptureSampleRate,
			BlockSize:   audio.DefaultBlockSamples,
			QueueFrames: 512,
		},
		Keys: KeysConfig{
			Record:         "space",
			Quit:           "esc",
			PollIntervalMS: 10,
		},
		STT: STTConfig{
			BaseURL:    "http://127.0.0.1:8000",
			Model:      "Systran/faster-whisper-base.en",
			Language:   "en",
			TimeoutMS:  60000,
			ScratchDir: defaultScratchDir(),
			Warmup:     true,
		},
		LLM: LLMConfig{
			Endpoint:     "http://localhost:11434/api/generate",
			Model:        "llama3.2",
			SystemPrompt: llm.DefaultSystemPrompt,
			TimeoutMS:    120000,
		},
		TTS: TTSConfig{
			BaseURL:      "http://127.0.0.1:8880",
			Model:        "kokoro",
			Voice:        "af_heart",
			SampleRate:   tts.DefaultSampleRate,
			Speed:        1.0,
			TimeoutMS:    60000,
			ResponseFile: defaultResponseFile(),
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "parley-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Transcript: TranscriptConfig{
			CapitalizeSentences: false,
		},
		Debug: DebugConfig{},
	}
}
