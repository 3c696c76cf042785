// Package config resolves, parses, validates, and defaults parley configuration.
package config

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Audio      AudioConfig
	Keys       KeysConfig
	STT        STTConfig
	LLM        LLMConfig
	TTS        TTSConfig
	Indicator  IndicatorConfig
	Transcript TranscriptConfig
	Metrics    MetricsConfig
	Debug      DebugConfig
}

// AudioConfig controls input-source selection and capture sizing.
type AudioConfig struct {
	Input       string
	Fallback    string
	SampleRate  int
	BlockSize   int
	QueueFrames int
}

// KeysConfig names the push-to-talk and quit keys and where to read them.
type KeysConfig struct {
	Record         string
	Quit           string
	Devices        []string
	PollIntervalMS int
}

// STTConfig points at an OpenAI-compatible transcription endpoint.
type STTConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	TimeoutMS  int
	ScratchDir string
	Warmup     bool
}

// LLMConfig points at an Ollama generate endpoint.
type LLMConfig struct {
	Endpoint     string
	Model        string
	SystemPrompt string
	TimeoutMS    int
}

// TTSConfig points at an OpenAI-compatible speech endpoint.
type TTSConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Voice        string
	SampleRate   int
	Speed        float64
	TimeoutMS    int
	ResponseFile string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// TranscriptConfig controls transcript cleanup before it reaches the model.
type TranscriptConfig struct {
	CapitalizeSentences bool
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	AudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
