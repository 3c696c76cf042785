// Package doctor runs readiness diagnostics for config, keyboards, audio, and
// the speech and language model endpoints.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/hypr"
	"github.com/rbright/parley/internal/keys"
	"github.com/rbright/parley/internal/llm"
	"github.com/rbright/parley/internal/oaiclient"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Probes are the live lookups doctor performs; zero fields use the real ones.
type Probes struct {
	ListKeyboards func(explicit []string) ([]keys.Keyboard, error)
	SelectDevice  func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	HTTPClient    *http.Client
}

func (p Probes) withDefaults() Probes {
	if p.ListKeyboards == nil {
		p.ListKeyboards = keys.ListKeyboards
	}
	if p.SelectDevice == nil {
		p.SelectDevice = audio.SelectDevice
	}
	if p.HTTPClient == nil {
		p.HTTPClient = &http.Client{Timeout: probeTimeout}
	}
	return p
}

// Run executes every check against a loaded config.
func Run(ctx context.Context, loaded config.Loaded, probes Probes) Report {
	probes = probes.withDefaults()
	cfg := loaded.Config

	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkKeys(cfg.Keys, probes.ListKeyboards))
	checks = append(checks, checkAudioSelection(ctx, cfg.Audio, probes.SelectDevice))
	checks = append(checks, checkModels(ctx, "stt.endpoint", cfg.STT.BaseURL, cfg.STT.APIKey, cfg.STT.Model, probes.HTTPClient))
	checks = append(checks, checkLLM(ctx, cfg.LLM, probes.HTTPClient))
	checks = append(checks, checkModels(ctx, "tts.endpoint", cfg.TTS.BaseURL, cfg.TTS.APIKey, cfg.TTS.Model, probes.HTTPClient))
	if cfg.Indicator.Enable {
		checks = append(checks, checkIndicator(ctx, cfg.Indicator))
	}
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 && loaded.Exists {
		message += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkKeys validates key names and that at least one keyboard is readable.
func checkKeys(cfg config.KeysConfig, list func([]string) ([]keys.Keyboard, error)) Check {
	record, err := keys.ParseKey(cfg.Record)
	if err != nil {
		return Check{Name: "keys", Pass: false, Message: fmt.Sprintf("record key: %v", err)}
	}
	quit, err := keys.ParseKey(cfg.Quit)
	if err != nil {
		return Check{Name: "keys", Pass: false, Message: fmt.Sprintf("quit key: %v", err)}
	}

	keyboards, err := list(cfg.Devices)
	if err != nil {
		return Check{Name: "keys", Pass: false, Message: err.Error()}
	}

	readable := make([]string, 0, len(keyboards))
	var firstErr error
	for _, kb := range keyboards {
		if kb.Readable {
			readable = append(readable, kb.Path)
			continue
		}
		if firstErr == nil {
			firstErr = kb.Err
		}
	}
	if len(readable) == 0 {
		msg := "no readable keyboard devices; add your user to the input group"
		if firstErr != nil {
			msg += fmt.Sprintf(" (%v)", firstErr)
		}
		return Check{Name: "keys", Pass: false, Message: msg}
	}
	return Check{
		Name:    "keys",
		Pass:    true,
		Message: fmt.Sprintf("record=%s quit=%s on %d keyboard(s): %s", record, quit, len(readable), strings.Join(readable, ", ")),
	}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.AudioConfig,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkModels lists models on an OpenAI-compatible server and looks for model.
func checkModels(ctx context.Context, name string, baseURL string, apiKey string, model string, httpClient *http.Client) Check {
	client, err := oaiclient.New(baseURL, apiKey, httpClient)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	list, err := client.ListModels(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("list models at %s: %v", baseURL, err)}
	}

	for _, m := range list.Models {
		if m.ID == model {
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s serves %q", baseURL, model)}
		}
	}
	if len(list.Models) == 0 {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s reachable", baseURL)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s reachable; %q not listed (server may load it on demand)", baseURL, model)}
}

func checkLLM(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client) Check {
	client := llm.New(llm.Config{
		Endpoint:   cfg.Endpoint,
		Model:      cfg.Model,
		Timeout:    probeTimeout,
		HTTPClient: httpClient,
	})
	if err := client.Ping(ctx); err != nil {
		return Check{Name: "llm.endpoint", Pass: false, Message: err.Error()}
	}
	return Check{Name: "llm.endpoint", Pass: true, Message: fmt.Sprintf("%s reachable (model %q)", cfg.Endpoint, cfg.Model)}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig) Check {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return checkBinary("busctl", "desktop notifications")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	version, err := hypr.Version(ctx)
	if err != nil {
		return Check{Name: "indicator.hypr", Pass: false, Message: err.Error()}
	}
	return Check{Name: "indicator.hypr", Pass: true, Message: "Hyprland " + version}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
