package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rentwire/rentwire-server/internal/app"
	"github.com/rentwire/rentwire-server/internal/config"
	"github.com/rentwire/rentwire-server/internal/log"
)

func main() {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	root := &cobra.Command{
		Use:           "rentwire-server",
		Short:         "Property management backend with real-time tenant messaging",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrapLogger := log.New(logLevel, true)

			cfg, path, err := config.Load(bootstrapLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel, cfg.LogPretty)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting rentwire server")

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "rentwire-server: %v\n", err)
		os.Exit(1)
	}
}
