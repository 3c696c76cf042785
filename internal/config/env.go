package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "PARLEY_"

// LookupFunc reports an environment value and whether it was set.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"AUDIO_INPUT", stringField(func(c *Config) *string { return &c.Audio.Input })},
	{"RECORD_KEY", stringField(func(c *Config) *string { return &c.Keys.Record })},
	{"QUIT_KEY", stringField(func(c *Config) *string { return &c.Keys.Quit })},
	{"KEYBOARDS", func(c *Config, v string) error { c.Keys.Devices = splitList(v); return nil }},
	{"STT_BASE_URL", stringField(func(c *Config) *string { return &c.STT.BaseURL })},
	{"STT_API_KEY", stringField(func(c *Config) *string { return &c.STT.APIKey })},
	{"STT_MODEL", stringField(func(c *Config) *string { return &c.STT.Model })},
	{"STT_TIMEOUT_MS", intField(func(c *Config) *int { return &c.STT.TimeoutMS })},
	{"LLM_ENDPOINT", stringField(func(c *Config) *string { return &c.LLM.Endpoint })},
	{"LLM_MODEL", stringField(func(c *Config) *string { return &c.LLM.Model })},
	{"LLM_TIMEOUT_MS", intField(func(c *Config) *int { return &c.LLM.TimeoutMS })},
	{"TTS_BASE_URL", stringField(func(c *Config) *string { return &c.TTS.BaseURL })},
	{"TTS_API_KEY", stringField(func(c *Config) *string { return &c.TTS.APIKey })},
	{"TTS_MODEL", stringField(func(c *Config) *string { return &c.TTS.Model })},
	{"TTS_VOICE", stringField(func(c *Config) *string { return &c.TTS.Voice })},
	{"TTS_TIMEOUT_MS", intField(func(c *Config) *int { return &c.TTS.TimeoutMS })},
	{"METRICS_LISTEN", stringField(func(c *Config) *string { return &c.Metrics.Listen })},
	{"AUDIO_DUMP", boolField(func(c *Config) *bool { return &c.Debug.AudioDump })},
}

func stringField(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = strings.TrimSpace(v)
		return nil
	}
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("expected integer, got %q", v)
		}
		*field(c) = n
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", v)
		}
		*field(c) = b
		return nil
	}
}

// EnvLookup layers the process environment over the values read from
// dotenvPath. A missing dotenv file is not an error.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	fileValues := map[string]string{}
	if strings.TrimSpace(dotenvPath) != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}, nil
}

// ApplyEnv overlays PARLEY_* values onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	for _, binding := range envBindings {
		key := EnvPrefix + binding.key
		value, ok := lookup(key)
		if !ok {
			continue
		}
		if err := binding.apply(cfg, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}
