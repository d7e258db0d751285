package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/pkg/logger"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "relaybot",
		Short:        "Telegram bot that opens gates and calls elevators through a relay controller",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (defaults to ./.env when present).")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Logging level: debug|info|warn|error.")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))

	return cmd
}

// bootstrap loads configuration and builds the base logger shared by every subcommand.
func (o *rootOptions) bootstrap() (*config.Config, *zap.Logger, error) {
	baseLogger, err := logger.New(o.logLevel)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(o.envFile)
	if err != nil {
		_ = baseLogger.Sync()
		return nil, nil, err
	}

	return cfg, baseLogger, nil
}
