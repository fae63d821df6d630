// Package config provides the configuration schema, loader, and provider
// registry for interviewpilot.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Audio      AudioConfig      `yaml:"audio"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the control and result feed server
	// (e.g., "127.0.0.1:8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the backend for each remote service. Each entry
// names a factory registered in the [Registry].
type ProvidersConfig struct {
	LLM       ProviderEntry `yaml:"llm"`
	Translate ProviderEntry `yaml:"translate"`
	STT       ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "deepl").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. Usually filled from the
	// environment by [ApplyEnv].
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// Option returns the string value of Options[key], or "" when it is absent
// or not a string.
func (e ProviderEntry) Option(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptionStrings returns Options[key] as a string list. A single string is
// returned as a one-element list; non-string items are skipped.
func (e ProviderEntry) OptionStrings(key string) []string {
	switch v := e.Options[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AggregatorConfig tunes utterance boundary detection.
type AggregatorConfig struct {
	// PartialSilence is the quiet period after a partial fragment before the
	// buffer is flushed. Default: 2s.
	PartialSilence time.Duration `yaml:"partial_silence"`

	// FinalSilence is the quiet period after a final fragment. Default: 1s.
	FinalSilence time.Duration `yaml:"final_silence"`

	// MinFinalLength is the shortest final fragment, in characters, that is
	// buffered. Default: 2.
	MinFinalLength int `yaml:"min_final_length"`
}

// PipelineConfig tunes the task pipeline.
type PipelineConfig struct {
	// TranslateTimeout bounds each translation call. Default: 4s.
	TranslateTimeout time.Duration `yaml:"translate_timeout"`

	// AnswerTimeout bounds each answer call. Default: 7s.
	AnswerTimeout time.Duration `yaml:"answer_timeout"`

	// HistorySize is the number of recent utterances given to the answerer.
	// Default: 5.
	HistorySize int `yaml:"history_size"`

	// SpeakerLabel prefixes utterances in the history. Default: "Interviewer".
	SpeakerLabel string `yaml:"speaker_label"`
}

// AssistantConfig shapes the suggested answers and translations.
type AssistantConfig struct {
	// SystemPrompt is the persona the answerer speaks as. Empty uses the
	// built-in persona. Hot-reloadable.
	SystemPrompt string `yaml:"system_prompt"`

	// TargetLanguage is the translation target code. Default: "TR".
	TargetLanguage string `yaml:"target_language"`

	// MaxTokens caps answer length. Zero leaves the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature sets answer sampling temperature in [0, 2]. Zero leaves the
	// provider default.
	Temperature float64 `yaml:"temperature"`

	// Placeholders override the text shown when a call does not succeed.
	// Hot-reloadable.
	Placeholders PlaceholderConfig `yaml:"placeholders"`
}

// PlaceholderConfig overrides the built-in placeholder texts. Empty fields
// keep the defaults.
type PlaceholderConfig struct {
	Timeout                string `yaml:"timeout"`
	Failed                 string `yaml:"failed"`
	TranslationUnavailable string `yaml:"translation_unavailable"`
	AnswerUnavailable      string `yaml:"answer_unavailable"`
}

// AudioConfig describes the capture source.
type AudioConfig struct {
	// Input is the raw PCM source: "-" or "stdin" for standard input, or a
	// file or FIFO path. Default: "-".
	Input string `yaml:"input"`

	// SampleRate is the capture sample rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count. Default: 1.
	Channels int `yaml:"channels"`

	// FrameMS is the chunk size sent to the recognizer. Default: 100.
	FrameMS int `yaml:"frame_ms"`
}
