package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/access"
	"github.com/mamadbah2/relaybot/internal/service/conversation"
	"github.com/mamadbah2/relaybot/internal/targets"
	"github.com/mamadbah2/relaybot/pkg/logger"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, the target mapping and the allow-list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, baseLogger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = baseLogger.Sync() }()

			registry := targets.Load(cfg.Bot.TargetsFile, logger.Named(baseLogger, "targets"))
			// check always fails on an unreadable allow-list, whatever the fail-closed setting.
			allowList, err := access.Load(cfg.Bot.AllowListFile, false, logger.Named(baseLogger, "access"))
			if err != nil {
				baseLogger.Error("allow-list check failed", zap.Error(err))
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bot: %s (%s mode)\n", cfg.Telegram.BotName, cfg.Telegram.Mode)
			fmt.Fprintf(out, "relay: %s\n", cfg.Relay.BaseURL)
			phrases := conversation.NewPhrasebook(cfg.Bot.Language, cfg.Bot.TargetKind)
			fmt.Fprintf(out, "%s menu: %v\n", phrases.Kind(), registry.Labels())
			fmt.Fprintf(out, "allow-list: %d identities\n", allowList.Len())
			return nil
		},
	}
}
