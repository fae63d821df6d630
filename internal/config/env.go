package config

import "os"

// Environment variables consulted by [ApplyEnv].
const (
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvDeepLKey    = "DEEPL_API_KEY"
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
)

// envKeys maps provider names to the variable holding their credential.
var envKeys = map[string]string{
	"gemini":   EnvGeminiKey,
	"openai":   EnvOpenAIKey,
	"deepl":    EnvDeepLKey,
	"deepgram": EnvDeepgramKey,
}

// KeyEnv returns the environment variable holding the credential for the
// named provider, or "" for providers that need none.
func KeyEnv(name string) string { return envKeys[name] }

// ApplyEnv fills empty api_key fields from the environment, keyed by
// provider name. Keys set in the file win.
func ApplyEnv(cfg *Config) {
	applyEnvEntry(&cfg.Providers.LLM, os.Getenv)
	applyEnvEntry(&cfg.Providers.Translate, os.Getenv)
	applyEnvEntry(&cfg.Providers.STT, os.Getenv)
}

func applyEnvEntry(e *ProviderEntry, getenv func(string) string) {
	if e.APIKey == "" {
		if v, ok := envKeys[e.Name]; ok {
			e.APIKey = getenv(v)
		}
	}
	for i := range e.Fallbacks {
		applyEnvEntry(&e.Fallbacks[i], getenv)
	}
}
