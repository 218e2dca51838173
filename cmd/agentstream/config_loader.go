package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentstream-io/agentstream/pkg/client"
	"github.com/agentstream-io/agentstream/pkg/config"
	"github.com/agentstream-io/agentstream/pkg/observability"
)

// loadConfig loads the configuration file when one is given, falling back
// to built-in defaults otherwise. The returned loader is nil in the
// fallback case.
func (cli *CLI) loadConfig(ctx context.Context) (*config.Config, *config.Loader, error) {
	config.LoadEnvFiles()

	if cli.Config == "" {
		return config.Default(), nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", cli.Config)
	return cfg, loader, nil
}

// buildClient assembles the client from the configuration and the global
// flags. The returned cleanup releases the config loader, the log file and
// the observability pipeline, in reverse order of setup.
func (cli *CLI) buildClient(ctx context.Context) (*client.Client, func(), error) {
	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if loader != nil {
		closers = append(closers, func() { _ = loader.Close() })
	}

	// The config file's logger section applies only when no flag or env
	// var already chose the settings.
	if !cli.logOverridden {
		logCleanup, err := initLoggerFromConfig(&cfg.Logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if logCleanup != nil {
			closers = append(closers, logCleanup)
		}
	}

	// Flags win over the config file.
	if cli.Server != "" {
		cfg.Server.BaseURL = cli.Server
	}
	if cli.Token != "" {
		cfg.Server.AuthToken = cli.Token
	}
	if cli.User != "" {
		cfg.Server.UserID = cli.User
	}

	var opts []client.Option
	if cfg.Observability.Tracing.Enabled || cfg.Observability.Metrics.Enabled {
		obs := observability.NewManager(cfg.Observability)
		if err := obs.Initialize(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
		closers = append(closers, func() {
			if err := obs.Shutdown(context.Background()); err != nil {
				slog.Warn("Observability shutdown failed", "error", err)
			}
		})
		opts = append(opts, client.WithMetrics(obs.GetMetrics()))
	}

	c, err := client.NewFromConfig(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, cleanup, nil
}
