package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/persona"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Update engagement counters of posted replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Social.ReadAPIKey == "" {
				return errors.New("social.read_api_key is required to look up engagement")
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := analytics.Refresh(cmd.Context(), store, newReader(cfg, ctx.log()), time.Now().UTC(), ctx.log())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Refreshed %d of %d replies (%d failed)\n", res.Updated, res.Due, res.Failed)
			if res.Updated == 0 {
				return nil
			}

			fmt.Fprintln(out)
			if err := analytics.RenderPersonaStats(out, "Engagement gained", res.Gains, persona.DisplayName); err != nil {
				return err
			}
			stored, err := store.PersonaStats(cmd.Context())
			if err != nil {
				return err
			}
			totals := analytics.NewAccumulator()
			totals.Merge(stored)
			fmt.Fprintln(out)
			return analytics.RenderPersonaStats(out, "Persona performance", totals.Snapshot(), persona.DisplayName)
		},
	}
}
