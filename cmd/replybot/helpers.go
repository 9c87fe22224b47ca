package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/bot"
	"github.com/cpunion/replybot/pkg/config"
	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/social"
)

func socialOptions(cfg *config.Config, logger logrus.FieldLogger) social.HTTPOptions {
	return social.HTTPOptions{
		Timeout:    cfg.SocialTimeout(),
		MaxRetries: cfg.Social.MaxRetries,
		Logger:     logger,
	}
}

func newReader(cfg *config.Config, logger logrus.FieldLogger) *social.ReadClient {
	return social.NewReadClient(cfg.Social.ReadBaseURL, cfg.Social.ReadAPIKey, nil, socialOptions(cfg, logger))
}

func newSocialClient(cfg *config.Config, logger logrus.FieldLogger) social.Client {
	creds := social.Credentials{
		APIKey:            cfg.Social.APIKey,
		APISecret:         cfg.Social.APISecret,
		AccessToken:       cfg.Social.AccessToken,
		AccessTokenSecret: cfg.Social.AccessTokenSecret,
	}
	return social.Split{
		Reader: newReader(cfg, logger),
		Poster: social.NewPostClient(cfg.Social.PostBaseURL, creds, nil, socialOptions(cfg, logger)),
	}
}

func openStore(cfg *config.Config) (*analytics.Store, error) {
	store, err := analytics.Open(cfg.Bot.AnalyticsPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics store: %w", err)
	}
	return store, nil
}

func printDashboard(ctx context.Context, out io.Writer, cfg *config.Config, l ledger.Ledger, store *analytics.Store) error {
	d, err := bot.BuildDashboard(ctx, cfg, l, store, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build dashboard: %w", err)
	}
	return analytics.RenderDashboard(out, d)
}
