package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/bot"
	"github.com/cpunion/replybot/pkg/handles"
	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/llm"
	"github.com/cpunion/replybot/pkg/persona"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, filter and draft replies, then review them one by one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForRun(); err != nil {
				return err
			}
			if !dryRun && !cfg.CanPost() {
				return errors.New("posting credentials are incomplete; set social.api_key, api_secret, access_token and access_token_secret, or use --dry-run")
			}
			logger := ctx.log()

			tracked, err := handles.Load(cfg.Bot.HandlesPath)
			if err != nil {
				return fmt.Errorf("load handles: %w", err)
			}
			if len(tracked) == 0 {
				return fmt.Errorf("%s: %w", cfg.Bot.HandlesPath, handles.ErrEmpty)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l, err := ledger.Open(cfg.Bot.LedgerPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := l.Close(); err != nil {
					logger.WithError(err).Warn("Ledger close failed")
				}
			}()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			decisions, err := bot.NewJSONLLogger(cfg.Bot.DecisionLogPath)
			if err != nil {
				return fmt.Errorf("open decision log: %w", err)
			}
			defer decisions.Close()

			generator, err := llm.NewGenerator(runCtx, llm.Options{
				Backend:     cfg.AI.Backend,
				Model:       cfg.AI.Model,
				APIKeys:     cfg.AI.APIKeys,
				Temperature: cfg.AI.Temperature,
				Timeout:     cfg.AITimeout(),
				MaxRetries:  cfg.AI.MaxRetries,
				Logger:      logger,
				OnCall: func(keyIndex int, callErr error) {
					if err := store.RecordAPICall(context.Background(), keyIndex, time.Now().UTC(), callErr != nil); err != nil {
						logger.WithError(err).Warn("Could not record API call")
					}
				},
			})
			if err != nil {
				return fmt.Errorf("create generator: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := printDashboard(runCtx, out, cfg, l, store); err != nil {
				logger.WithError(err).Warn("Dashboard unavailable")
			}

			b := bot.New(bot.Components{
				Config:    cfg,
				Social:    newSocialClient(cfg, logger),
				LLM:       generator,
				Ledger:    l,
				Store:     store,
				Decisions: decisions,
				Logger:    logger,
				In:        cmd.InOrStdin(),
				Out:       out,
			})
			report, err := b.Run(runCtx, tracked, bot.RunOptions{DryRun: dryRun})
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"run_id":     report.RunID,
				"handles":    report.Handles,
				"fetched":    report.Fetch.Kept,
				"accepted":   report.Accepted,
				"reviewable": report.Reviewable,
				"posted":     report.Review.Posted,
				"skipped":    report.Review.Skipped,
			}).Info("Run complete")

			fmt.Fprintln(out)
			if err := analytics.RenderPersonaStats(out, "This run", report.Stats, persona.DisplayName); err != nil {
				return err
			}
			fmt.Fprintln(out)
			if err := printDashboard(context.WithoutCancel(runCtx), out, cfg, l, store); err != nil {
				logger.WithError(err).Warn("Dashboard unavailable")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print drafted replies without posting")
	return cmd
}
