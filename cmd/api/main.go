package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vaughan-dsouza/postagg/internal/config"
	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/logging"
)

const (
	exitError  = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var cfgErr apperrors.ConfigError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitError
}

// cli carries state resolved once in PersistentPreRunE.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *logging.ZerologAdapter
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "postagg",
		Short:         "Aggregate posts, authors and comment counts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envErr := godotenv.Load()

			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logging.NewLogger(cmd.ErrOrStderr(), "postagg").
				SetLevel(logging.ParseLevel(cfg.LogLevel))
			if envErr != nil {
				c.logger.Debug("no .env file found", logging.Err(envErr))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a config file (yaml, json or toml)")

	root.AddCommand(
		newServeCmd(c),
		newAggregateCmd(c),
		newMigrateCmd(c),
		newTokenCmd(c),
	)
	return root
}
