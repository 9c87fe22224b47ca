package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/ledger"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show window usage, AI key usage and persona performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			l, err := ledger.Snapshot(cfg.Bot.LedgerPath)
			if err != nil {
				return err
			}

			var store *analytics.Store
			if _, statErr := os.Stat(cfg.Bot.AnalyticsPath); statErr == nil {
				store, err = openStore(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
			} else if !os.IsNotExist(statErr) {
				return fmt.Errorf("check analytics store: %w", statErr)
			}

			return printDashboard(cmd.Context(), cmd.OutOrStdout(), cfg, l, store)
		},
	}
}
