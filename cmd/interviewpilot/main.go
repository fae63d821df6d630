// Command interviewpilot listens to an interviewer's speech and prints a
// translation and a suggested answer for every question.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/interviewpilot/internal/app"
	"github.com/MrWong99/interviewpilot/internal/config"
	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm/anyllm"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm/openai"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt"
	"github.com/MrWong99/interviewpilot/pkg/provider/stt/deepgram"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate/deepl"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "dotenv file with provider credentials")
	flag.Parse()

	// ── Environment ───────────────────────────────────────────────────────────
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "interviewpilot: load %s: %v\n", *envPath, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	configExists := true
	if _, err := os.Stat(*configPath); errors.Is(err, fs.ErrNotExist) {
		configExists = false
	}
	var cfg *config.Config
	if configExists {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "interviewpilot: %v\n", err)
			return 1
		}
	} else {
		cfg = config.Default()
	}
	config.ApplyEnv(cfg)

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !configExists {
		slog.Info("config file not found, using defaults", "config", *configPath)
	}
	slog.Info("interviewpilot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers := app.BuildProviders(cfg, reg)

	printStartupSummary(cfg, providers)

	application, err := app.New(cfg, providers,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	if configExists {
		w, err := config.NewWatcher(*configPath, application.ApplyConfig, config.WithPrepare(config.ApplyEnv))
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("stopping")
	code := 0
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		code = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the LLM names served through any-llm-go. "openai" uses
// the official SDK instead.
var anyllmBackends = []string{
	"gemini", "anthropic", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	for _, providerName := range anyllmBackends {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.Option("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Translation ───────────────────────────────────────────────────────────
	// "llm" is resolved by app.BuildProviders against the answer model.

	reg.RegisterTranslate("deepl", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []deepl.Option
		if entry.BaseURL != "" {
			opts = append(opts, deepl.WithBaseURL(entry.BaseURL))
		}
		if f := entry.Option("formality"); f != "" {
			opts = append(opts, deepl.WithFormality(f))
		}
		return deepl.New(entry.APIKey, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	for kind, names := range map[string][]string{
		"llm":       append([]string{"openai"}, anyllmBackends...),
		"translate": {"deepl", "llm"},
		"stt":       {"deepgram"},
	} {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║    interviewpilot — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Answer LLM", ps.LLMName, modelOf(cfg.Providers.LLM, ps.LLMName))
	printProvider("Translate", ps.TranslateName, "")
	printProvider("Recognizer", ps.STTName, modelOf(cfg.Providers.STT, ps.STTName))
	printValue("Target lang", cfg.Assistant.TargetLanguage)
	printValue("Audio input", cfg.Audio.Input)
	if cfg.Server.ListenAddr != "" {
		printValue("Listen addr", cfg.Server.ListenAddr)
	} else {
		printValue("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// modelOf returns the model configured for the entry that ended up as the
// primary provider.
func modelOf(e config.ProviderEntry, name string) string {
	if e.Name == name {
		return e.Model
	}
	for _, fb := range e.Fallbacks {
		if fb.Name == name {
			return fb.Model
		}
	}
	return ""
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(unavailable)"
	} else if model != "" {
		value = name + " / " + model
	}
	printValue(kind, value)
}

func printValue(key, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}
