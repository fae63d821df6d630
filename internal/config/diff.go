package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SystemPromptChanged bool
	NewSystemPrompt     string

	PlaceholdersChanged bool
	NewPlaceholders     PlaceholderConfig

	// RestartRequired names changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// HotChanged reports whether any hot-reloadable field changed.
func (d ConfigDiff) HotChanged() bool {
	return d.LogLevelChanged || d.SystemPromptChanged || d.PlaceholdersChanged
}

// Diff compares old and new configs. Log level, persona and placeholders are
// applied live; everything else is listed in RestartRequired.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Assistant.SystemPrompt != new.Assistant.SystemPrompt {
		d.SystemPromptChanged = true
		d.NewSystemPrompt = new.Assistant.SystemPrompt
	}
	if old.Assistant.Placeholders != new.Assistant.Placeholders {
		d.PlaceholdersChanged = true
		d.NewPlaceholders = new.Assistant.Placeholders
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Aggregator != new.Aggregator {
		d.RestartRequired = append(d.RestartRequired, "aggregator")
	}
	if old.Pipeline != new.Pipeline {
		d.RestartRequired = append(d.RestartRequired, "pipeline")
	}
	oa, na := old.Assistant, new.Assistant
	if oa.TargetLanguage != na.TargetLanguage || oa.MaxTokens != na.MaxTokens || oa.Temperature != na.Temperature {
		d.RestartRequired = append(d.RestartRequired, "assistant")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	return d
}
