package bot

import (
	"context"
	"time"

	"github.com/cpunion/replybot/pkg/analytics"
	"github.com/cpunion/replybot/pkg/config"
	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/persona"
)

// BuildDashboard gathers the stats view. store may be nil, in which case only
// the window usage is filled in.
func BuildDashboard(ctx context.Context, cfg *config.Config, l ledger.Ledger, store *analytics.Store, now time.Time) (analytics.Dashboard, error) {
	d := analytics.Dashboard{
		InWindow:    l.CountInWindow(now, cfg.Window()),
		Cap:         cfg.Bot.DailyCap,
		DisplayName: persona.DisplayName,
	}
	if store == nil {
		return d, nil
	}
	personas, err := store.PersonaStats(ctx)
	if err != nil {
		return d, err
	}
	calls, err := store.APICalls(ctx, now)
	if err != nil {
		return d, err
	}
	d.Personas = personas
	d.APICalls = calls
	return d, nil
}
