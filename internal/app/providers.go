package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/interviewpilot/internal/config"
	"github.com/MrWong99/interviewpilot/internal/resilience"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate/llmtranslate"
)

// translateViaLLM is the translate provider name that reuses the answer LLM.
const translateViaLLM = "llm"

// Providers holds one interface value per remote service. Nil means the
// service is disabled and the pipeline shows its unavailable placeholder.
type Providers struct {
	LLM       llm.Provider
	Translate translate.Provider
	STT       stt.Provider

	// Names label metrics and logs; they hold the primary provider name.
	LLMName       string
	TranslateName string
	STTName       string
}

// healthReporter is implemented by the resilience fallback wrappers.
type healthReporter interface {
	Healthy() bool
}

// BuildProviders instantiates every configured provider through reg. An entry
// whose credential is missing or whose construction fails is skipped with a
// warning; when the primary is skipped the first usable fallback takes its
// place. A service without any usable entry stays nil. Every service with at
// least one usable entry is wrapped in a circuit-breaking fallback group.
func BuildProviders(cfg *config.Config, reg *config.Registry) *Providers {
	ps := &Providers{}

	llms := buildEntries("llm", cfg.Providers.LLM, reg.CreateLLM)
	if len(llms) > 0 {
		fb := resilience.NewLLMFallback(llms[0].value, llms[0].name, breakerConfig)
		for _, e := range llms[1:] {
			fb.AddFallback(e.name, e.value)
		}
		ps.LLM, ps.LLMName = fb, llms[0].name
	}

	createTranslate := func(e config.ProviderEntry) (translate.Provider, error) {
		if e.Name == translateViaLLM {
			if ps.LLM == nil {
				return nil, errors.New("translation via llm needs an llm provider")
			}
			return llmtranslate.New(ps.LLM)
		}
		return reg.CreateTranslate(e)
	}
	trs := buildEntries("translate", cfg.Providers.Translate, createTranslate)
	if len(trs) > 0 {
		fb := resilience.NewTranslateFallback(trs[0].value, trs[0].name, breakerConfig)
		for _, e := range trs[1:] {
			fb.AddFallback(e.name, e.value)
		}
		ps.Translate, ps.TranslateName = fb, trs[0].name
	}

	stts := buildEntries("stt", cfg.Providers.STT, reg.CreateSTT)
	if len(stts) > 0 {
		fb := resilience.NewSTTFallback(stts[0].value, stts[0].name, breakerConfig)
		for _, e := range stts[1:] {
			fb.AddFallback(e.name, e.value)
		}
		ps.STT, ps.STTName = fb, stts[0].name
	}

	return ps
}

type namedProvider[T any] struct {
	name  string
	value T
}

// buildEntries creates the primary and fallbacks of one provider kind in
// order. Entries that lack credentials, have no registered factory or fail
// to construct are logged and skipped.
func buildEntries[T any](kind string, primary config.ProviderEntry, create func(config.ProviderEntry) (T, error)) []namedProvider[T] {
	if primary.Name == "" {
		return nil
	}
	entries := append([]config.ProviderEntry{primary}, primary.Fallbacks...)

	var out []namedProvider[T]
	for _, e := range entries {
		if env := config.KeyEnv(e.Name); env != "" && e.APIKey == "" {
			slog.Warn("provider disabled: missing credential", "kind", kind, "name", e.Name, "env", env)
			continue
		}
		p, err := create(e)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered, skipping", "kind", kind, "name", e.Name)
			continue
		}
		if err != nil {
			slog.Warn("provider disabled: construction failed", "kind", kind, "name", e.Name, "err", err)
			continue
		}
		slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
		out = append(out, namedProvider[T]{name: e.Name, value: p})
	}
	if len(out) == 0 {
		slog.Warn("no usable provider, service disabled", "kind", kind)
	}
	return out
}

// breakerConfig trips a provider after three consecutive failures and probes
// it again after 15s.
var breakerConfig = resilience.FallbackConfig{
	CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 15 * time.Second,
		HalfOpenMax:  1,
	},
}
