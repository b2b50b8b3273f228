// Command sooshi is the entry point for the Sooshi voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/sooshi/internal/app"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "YAML config file; optional unless set explicitly")
	flag.Parse()

	// The default path may be absent; an explicitly named file must exist.
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Resolve(*configPath, !explicit, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sooshi: %v\n", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	})))

	slog.Info("sooshi starting",
		"version", version,
		"config", *configPath,
		"provider", cfg.Provider,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	telemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(cfg, app.WithMetricsHandler(telemetry.MetricsHandler))
	if err != nil {
		slog.Error("startup failed", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// printStartupSummary writes a fixed-width box with the active stack.
func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Sooshi startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Provider", string(cfg.Provider))
	switch cfg.Provider {
	case config.ProviderCloud:
		printRow("LLM", "openai / "+cfg.OpenAI.Model)
		printRow("TTS", "openai / "+cfg.OpenAI.TTSModel)
	default:
		printRow("LLM", "ollama / "+cfg.Ollama.Model)
		printRow("TTS", "coqui")
	}
	printRow("STT", "whisper")
	printRow("Retries", fmt.Sprintf("%d attempts", max(cfg.Retry.MaxAttempts, 1)))
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics addr", cfg.Server.MetricsAddr)
	} else {
		printRow("Metrics addr", "(shared)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Printf("║ %-12s    : %-19s ║\n", label, value)
}

func logLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}
