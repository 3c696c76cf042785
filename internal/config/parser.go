package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	Audio      *yamlAudio      `yaml:"audio"`
	Keys       *yamlKeys       `yaml:"keys"`
	STT        *yamlSTT        `yaml:"stt"`
	LLM        *yamlLLM        `yaml:"llm"`
	TTS        *yamlTTS        `yaml:"tts"`
	Indicator  *yamlIndicator  `yaml:"indicator"`
	Transcript *yamlTranscript `yaml:"transcript"`
	Metrics    *yamlMetrics    `yaml:"metrics"`
	Debug      *yamlDebug      `yaml:"debug"`
}

type yamlAudio struct {
	Input       *string `yaml:"input"`
	Fallback    *string `yaml:"fallback"`
	SampleRate  *int    `yaml:"sample_rate"`
	BlockSize   *int    `yaml:"block_size"`
	QueueFrames *int    `yaml:"queue_frames"`
}

type yamlKeys struct {
	Record         *string        `yaml:"record"`
	Quit           *string        `yaml:"quit"`
	Devices        yamlStringList `yaml:"devices"`
	PollIntervalMS *int           `yaml:"poll_interval_ms"`
}

type yamlSTT struct {
	BaseURL    *string `yaml:"base_url"`
	APIKey     *string `yaml:"api_key"`
	Model      *string `yaml:"model"`
	Language   *string `yaml:"language"`
	TimeoutMS  *int    `yaml:"timeout_ms"`
	ScratchDir *string `yaml:"scratch_dir"`
	Warmup     *bool   `yaml:"warmup"`
}

type yamlLLM struct {
	Endpoint     *string `yaml:"endpoint"`
	Model        *string `yaml:"model"`
	SystemPrompt *string `yaml:"system_prompt"`
	TimeoutMS    *int    `yaml:"timeout_ms"`
}

type yamlTTS struct {
	BaseURL      *string  `yaml:"base_url"`
	APIKey       *string  `yaml:"api_key"`
	Model        *string  `yaml:"model"`
	Voice        *string  `yaml:"voice"`
	SampleRate   *int     `yaml:"sample_rate"`
	Speed        *float64 `yaml:"speed"`
	TimeoutMS    *int     `yaml:"timeout_ms"`
	ResponseFile *string  `yaml:"response_file"`
}

type yamlIndicator struct {
	Enable         *bool   `yaml:"enable"`
	Backend        *string `yaml:"backend"`
	DesktopAppName *string `yaml:"desktop_app_name"`
	SoundEnable    *bool   `yaml:"sound_enable"`
	ErrorTimeoutMS *int    `yaml:"error_timeout_ms"`
}

type yamlTranscript struct {
	CapitalizeSentences *bool `yaml:"capitalize_sentences"`
}

type yamlMetrics struct {
	Listen *string `yaml:"listen"`
}

type yamlDebug struct {
	AudioDump *bool `yaml:"audio_dump"`
}

// yamlStringList accepts either a sequence or a comma-delimited scalar.
type yamlStringList []string

func (l *yamlStringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected string list or comma-delimited string", node.Line)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Parse overlays YAML content onto base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg, err := decode(content, base)
	if err != nil {
		return Config{}, nil, err
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

// decode applies the YAML payload without validating.
func decode(content string, base Config) (Config, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}

	decoder := yaml.NewDecoder(strings.NewReader(content))
	decoder.KnownFields(true)

	var payload yamlConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return Config{}, err
	}

	var extra yaml.Node
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("line %d: unexpected second YAML document", extra.Line)
	}

	cfg := base
	payload.applyTo(&cfg)
	return cfg, nil
}

func (payload yamlConfig) applyTo(cfg *Config) {
	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		setValue(&cfg.Audio.SampleRate, a.SampleRate)
		setValue(&cfg.Audio.BlockSize, a.BlockSize)
		setValue(&cfg.Audio.QueueFrames, a.QueueFrames)
	}

	if k := payload.Keys; k != nil {
		setString(&cfg.Keys.Record, k.Record)
		setString(&cfg.Keys.Quit, k.Quit)
		if k.Devices != nil {
			cfg.Keys.Devices = []string(k.Devices)
		}
		setValue(&cfg.Keys.PollIntervalMS, k.PollIntervalMS)
	}

	if s := payload.STT; s != nil {
		setString(&cfg.STT.BaseURL, s.BaseURL)
		setString(&cfg.STT.APIKey, s.APIKey)
		setString(&cfg.STT.Model, s.Model)
		setString(&cfg.STT.Language, s.Language)
		setValue(&cfg.STT.TimeoutMS, s.TimeoutMS)
		setString(&cfg.STT.ScratchDir, s.ScratchDir)
		setValue(&cfg.STT.Warmup, s.Warmup)
	}

	if l := payload.LLM; l != nil {
		setString(&cfg.LLM.Endpoint, l.Endpoint)
		setString(&cfg.LLM.Model, l.Model)
		if l.SystemPrompt != nil {
			cfg.LLM.SystemPrompt = strings.TrimSpace(*l.SystemPrompt)
		}
		setValue(&cfg.LLM.TimeoutMS, l.TimeoutMS)
	}

	if t := payload.TTS; t != nil {
		setString(&cfg.TTS.BaseURL, t.BaseURL)
		setString(&cfg.TTS.APIKey, t.APIKey)
		setString(&cfg.TTS.Model, t.Model)
		setString(&cfg.TTS.Voice, t.Voice)
		setValue(&cfg.TTS.SampleRate, t.SampleRate)
		setValue(&cfg.TTS.Speed, t.Speed)
		setValue(&cfg.TTS.TimeoutMS, t.TimeoutMS)
		setString(&cfg.TTS.ResponseFile, t.ResponseFile)
	}

	if i := payload.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if t := payload.Transcript; t != nil {
		setValue(&cfg.Transcript.CapitalizeSentences, t.CapitalizeSentences)
	}

	if m := payload.Metrics; m != nil {
		setString(&cfg.Metrics.Listen, m.Listen)
	}

	if d := payload.Debug; d != nil {
		setValue(&cfg.Debug.AudioDump, d.AudioDump)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
