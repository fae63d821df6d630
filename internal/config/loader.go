package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":       {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"translate": {"deepl", "llm"},
	"stt":       {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. An empty path yields [Default].
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateEntry("llm", "providers.llm", cfg.Providers.LLM, &errs)
	validateEntry("translate", "providers.translate", cfg.Providers.Translate, &errs)
	validateEntry("stt", "providers.stt", cfg.Providers.STT, &errs)

	if cfg.Providers.Translate.Name == "llm" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.translate: name \"llm\" requires providers.llm to be configured"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; answers will show the unavailable placeholder")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; audio will not be transcribed")
	}

	a := cfg.Aggregator
	if a.PartialSilence < 0 || a.FinalSilence < 0 {
		errs = append(errs, errors.New("aggregator: silence durations must not be negative"))
	}
	if a.PartialSilence > 0 && a.FinalSilence > 0 && a.FinalSilence > a.PartialSilence {
		slog.Warn("aggregator.final_silence exceeds partial_silence; utterances may split mid-sentence",
			"final_silence", a.FinalSilence, "partial_silence", a.PartialSilence)
	}
	if a.MinFinalLength < 0 {
		errs = append(errs, fmt.Errorf("aggregator.min_final_length %d must not be negative", a.MinFinalLength))
	}

	p := cfg.Pipeline
	if p.TranslateTimeout < 0 || p.AnswerTimeout < 0 {
		errs = append(errs, errors.New("pipeline: timeouts must not be negative"))
	}
	if p.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_size %d must not be negative", p.HistorySize))
	}

	as := cfg.Assistant
	if as.Temperature < 0 || as.Temperature > 2 {
		errs = append(errs, fmt.Errorf("assistant.temperature %.2f is out of range [0, 2]", as.Temperature))
	}
	if as.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("assistant.max_tokens %d must not be negative", as.MaxTokens))
	}

	au := cfg.Audio
	if au.SampleRate < 0 || au.Channels < 0 || au.FrameMS < 0 {
		errs = append(errs, errors.New("audio: sample_rate, channels and frame_ms must not be negative"))
	}
	if au.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is unsupported; valid values: 1, 2", au.Channels))
	}

	return errors.Join(errs...)
}

// validateEntry checks a provider entry and its fallbacks.
func validateEntry(kind, path string, e ProviderEntry, errs *[]error) {
	validateProviderName(kind, e.Name)
	if e.Name == "" && len(e.Fallbacks) > 0 {
		*errs = append(*errs, fmt.Errorf("%s: fallbacks require a primary name", path))
	}
	for i, fb := range e.Fallbacks {
		if fb.Name == "" {
			*errs = append(*errs, fmt.Errorf("%s.fallbacks[%d].name is required", path, i))
			continue
		}
		if len(fb.Fallbacks) > 0 {
			*errs = append(*errs, fmt.Errorf("%s.fallbacks[%d]: nested fallbacks are not supported", path, i))
		}
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, strings.ToLower(name)) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
