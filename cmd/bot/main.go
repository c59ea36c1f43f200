// Package main is the entry point for the PingBot gateway process.
//
// It loads configuration, reads the bot token from the environment, connects
// to the Discord gateway and answers "!ping" with "Pong!" until interrupted.
// A health endpoint reports whether the gateway session is ready.
//
// A missing DISCORD_TOKEN is fatal and is detected before any network
// connection is attempted.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pingbot/internal/bot"
	"pingbot/internal/config"
	"pingbot/internal/env"
	"pingbot/internal/health"
	"pingbot/internal/secrets"
	"pingbot/internal/types"
)

// gateway is the part of *bot.Client that run drives.
type gateway interface {
	health.Probe
	Run(ctx context.Context) error
}

// deps holds everything run needs from the outside world so tests can
// substitute it.
type deps struct {
	stdout     io.Writer
	loadConfig func() (*config.Config, error)
	source     env.Source
	newMetrics func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (bot.Metrics, error)
	newClient  func(token types.SecretString, handler *bot.Handler, logger *slog.Logger) (gateway, error)
}

func defaultDeps() deps {
	return deps{
		stdout: os.Stdout,
		loadConfig: func() (*config.Config, error) {
			// Region and endpoint come from the SDK's default chain, which
			// sees AWS_REGION and AWS_ENDPOINT_URL after .env is loaded, and
			// fall back to config.DefaultAWSRegion like cfg.AWS.Region.
			return config.LoadConfig(config.NewSSMProvider("", ""))
		},
		source:     env.NewOSSource(),
		newMetrics: newMetrics,
		newClient: func(token types.SecretString, handler *bot.Handler, logger *slog.Logger) (gateway, error) {
			return bot.NewClient(token, handler, logger)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, defaultDeps()); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	stop()
}

// run encapsulates the process lifecycle so that main() can cleanly exit on error.
func run(ctx context.Context, d deps) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(d.stdout, cfg.LogLevel).With(
		"service", cfg.Service,
		"instance_id", uuid.NewString(),
	)
	logger.Info("pingbot starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	token, err := secrets.NewManager(d.source).DiscordToken()
	if err != nil {
		logger.Error("expected a token in the environment",
			"key", secrets.DiscordTokenKey,
			"error", err,
		)
		return fmt.Errorf("reading bot token: %w", err)
	}

	metrics, err := d.newMetrics(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating metrics publisher: %w", err)
	}

	handler := bot.NewHandler(logger, metrics)

	client, err := d.newClient(types.SecretString(token), handler, logger)
	if err != nil {
		logger.Error("error creating client", "error", err)
		return fmt.Errorf("creating gateway client: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Run(gctx)
	})

	if cfg.Server.Port != "" {
		srv := health.NewServer(":"+cfg.Server.Port, health.NewRouter(logger, client), cfg.Server.ShutdownTimeout, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("client error", "error", err)
		return err
	}

	logger.Info("pingbot stopped")
	return nil
}

func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (bot.Metrics, error) {
	if !cfg.Observability.EnableMetrics {
		return bot.NoopMetrics{}, nil
	}

	client, err := bot.NewCloudWatchClient(ctx, cfg.AWS.Region, cfg.AWS.EndpointURL)
	if err != nil {
		return nil, err
	}

	logger.Info("publishing metrics to CloudWatch", "namespace", cfg.Observability.MetricNamespace)
	return bot.NewCloudWatchMetrics(client, cfg.Observability.MetricNamespace, logger), nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
