// Command triarb is the entry point for the triangular arbitrage bot. It loads
// configuration, validates it, sets up signal handling, and starts the
// application in the configured mode.
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

	"github.com/alanyoungcy/triarb/internal/app"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptTo := flag.String("encrypt-secret", "", "encrypt the configured exchange secret to this path and exit")
	flag.Parse()

	logger := newLogger(slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = newLogger(parseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *encryptTo != "" {
		if err := encryptSecret(cfg, *encryptTo); err != nil {
			logger.Error("failed to encrypt secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("encrypted secret written", slog.String("path", *encryptTo))
		return
	}

	redacted := config.RedactedConfig(cfg)
	logger.Info("triarb starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Bool("sandbox", cfg.Exchange.Sandbox),
		slog.Bool("simulate", cfg.Scanner.Simulate),
		slog.Any("settings", redacted),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("triarb stopped")
}

// encryptSecret writes the plaintext exchange secret from cfg to path,
// sealed with exchange.secret_password.
func encryptSecret(cfg *config.Config, path string) error {
	if cfg.Exchange.Secret == "" || cfg.Exchange.SecretPassword == "" {
		return errors.New("exchange secret and secret_password must both be set")
	}
	blob, err := crypto.EncryptSecret(cfg.Exchange.Secret, cfg.Exchange.SecretPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
