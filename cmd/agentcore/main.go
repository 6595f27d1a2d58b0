// Command agentcore serves the agent router over HTTP and exposes its
// planner and classifier on the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chebacca/agentcore/internal/config"
	"github.com/chebacca/agentcore/internal/server"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:           "agentcore",
		Short:         "Agent orchestration core: routing, provider fallback and action planning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd(), planCmd(), classifyCmd(), toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			log.Info().
				Str("env", cfg.Environment).
				Int("port", cfg.Port).
				Strs("tiers", cfg.ProviderTiers).
				Msg("starting agentcore")
			return srv.Run(ctx)
		},
	}
}
