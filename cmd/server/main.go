package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireplan-server/internal/app"
	"github.com/vovakirdan/wireplan-server/internal/config"
	"github.com/vovakirdan/wireplan-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wireplan-server",
		Short:         "Planning poker server over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New("info")
			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				bootLogger.Error().Err(err).Str("path", path).Msg("load config")
				return err
			}
			applyOverrides(cmd, &cfg, overrides)
			if err := cfg.Validate(); err != nil {
				bootLogger.Error().Err(err).Msg("invalid flags")
				return err
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("policy", cfg.DisconnectPolicy).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("init app")
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting wireplan server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", defaults.Addr, "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.DisconnectPolicy, "disconnect-policy", defaults.DisconnectPolicy, "what a dropped connection does to room membership (retain, evict)")
	flags.BoolVar(&overrides.AllowEstimateWhenOpen, "allow-estimate-when-open", defaults.AllowEstimateWhenOpen, "accept estimates before a round is started")
	flags.DurationVar(&overrides.SessionTTL, "session-ttl", defaults.SessionTTL, "how long a disconnected participant can recover (0 keeps it forever)")
	flags.StringVar(&overrides.DatabasePath, "db", defaults.DatabasePath, "sqlite path for the round archive (empty disables it)")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "graceful shutdown timeout")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// applyOverrides copies only the flags the user actually set, so file and env values survive.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, o config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = o.Addr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("disconnect-policy") {
		cfg.DisconnectPolicy = o.DisconnectPolicy
	}
	if flags.Changed("allow-estimate-when-open") {
		cfg.AllowEstimateWhenOpen = o.AllowEstimateWhenOpen
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL = o.SessionTTL
	}
	if flags.Changed("db") {
		cfg.DatabasePath = o.DatabasePath
	}
	if flags.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = o.ShutdownTimeout
	}
}

var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
