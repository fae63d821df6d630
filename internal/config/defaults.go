package config

import "time"

// Default returns the configuration used when no file is given. It mirrors
// the built-in behaviour: Gemini answers, DeepL translation into Turkish,
// Deepgram recognition on 16 kHz mono PCM from stdin.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8080",
			LogLevel:   LogInfo,
		},
		Providers: ProvidersConfig{
			LLM:       ProviderEntry{Name: "gemini", Model: "gemini-3-flash-preview"},
			Translate: ProviderEntry{Name: "deepl"},
			STT:       ProviderEntry{Name: "deepgram", Model: "nova-3"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued tuning fields. Negative values are left
// for [Validate] to reject. Provider selection is left as configured.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	a := &cfg.Aggregator
	if a.PartialSilence == 0 {
		a.PartialSilence = 2000 * time.Millisecond
	}
	if a.FinalSilence == 0 {
		a.FinalSilence = 1000 * time.Millisecond
	}
	if a.MinFinalLength == 0 {
		a.MinFinalLength = 2
	}

	p := &cfg.Pipeline
	if p.TranslateTimeout == 0 {
		p.TranslateTimeout = 4 * time.Second
	}
	if p.AnswerTimeout == 0 {
		p.AnswerTimeout = 7 * time.Second
	}
	if p.HistorySize == 0 {
		p.HistorySize = 5
	}
	if p.SpeakerLabel == "" {
		p.SpeakerLabel = "Interviewer"
	}

	if cfg.Assistant.TargetLanguage == "" {
		cfg.Assistant.TargetLanguage = "TR"
	}

	au := &cfg.Audio
	if au.Input == "" {
		au.Input = "-"
	}
	if au.SampleRate == 0 {
		au.SampleRate = 16000
	}
	if au.Channels == 0 {
		au.Channels = 1
	}
	if au.FrameMS == 0 {
		au.FrameMS = 100
	}
}
