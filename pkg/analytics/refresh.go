package analytics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/types"
)

// DefaultRefreshAge is how old a reply must be, and how stale its last check,
// before engagement is looked up again.
const DefaultRefreshAge = time.Hour

// Looker fetches current engagement for a post. social.Reader satisfies it.
type Looker interface {
	Lookup(ctx context.Context, postID string) (types.Engagement, error)
}

// RefreshResult summarises one refresh pass.
type RefreshResult struct {
	Due     int
	Updated int
	Failed  int
	// Gains is the engagement added since the previous check, per persona.
	// RepliesPosted stays zero.
	Gains []types.PersonaStats
}

// Refresh looks up engagement for replies due a check and stores the result.
// Lookup failures are logged and counted; store failures abort the pass.
func Refresh(ctx context.Context, store *Store, looker Looker, now time.Time, logger logrus.FieldLogger) (RefreshResult, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	due, err := store.DueForRefresh(ctx, now, DefaultRefreshAge)
	if err != nil {
		return RefreshResult{}, err
	}
	res := RefreshResult{Due: len(due)}
	gains := NewAccumulator()
	done := func(err error) (RefreshResult, error) {
		res.Gains = gains.Snapshot()
		return res, err
	}
	for _, r := range due {
		if ctx.Err() != nil {
			return done(ctx.Err())
		}
		e, err := looker.Lookup(ctx, r.ReplyID)
		if err != nil {
			res.Failed++
			logger.WithFields(logrus.Fields{
				"reply_id": r.ReplyID,
				"persona":  r.Persona,
			}).WithError(err).Warn("Engagement lookup failed")
			continue
		}
		if err := store.UpdateEngagement(ctx, r.ReplyID, e, now); err != nil {
			return done(err)
		}
		res.Updated++
		gains.RecordEngagement(r.Persona, types.Engagement{
			Likes:   e.Likes - r.Engagement.Likes,
			Reposts: e.Reposts - r.Engagement.Reposts,
			Replies: e.Replies - r.Engagement.Replies,
		})
		logger.WithFields(logrus.Fields{
			"reply_id": r.ReplyID,
			"persona":  r.Persona,
			"likes":    e.Likes,
			"reposts":  e.Reposts,
			"replies":  e.Replies,
		}).Debug("Engagement updated")
	}
	return done(nil)
}
