// Package fetcher collects recent candidate posts from the tracked handles.
package fetcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

// Seen reports whether a post was already replied to. ledger.Ledger satisfies it.
type Seen interface {
	HasReplied(postID string) bool
}

// Fetcher pulls posts per handle and drops everything the bot must not reply to.
type Fetcher struct {
	client   social.Reader
	seen     Seen
	logger   logrus.FieldLogger
	MyHandle types.Handle
	Lookback time.Duration
}

// New creates a fetcher. seen may be nil.
func New(client social.Reader, seen Seen, logger logrus.FieldLogger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{
		client:   client,
		seen:     seen,
		logger:   logger,
		Lookback: 12 * time.Hour,
	}
}

// Stats summarises one fetch pass.
type Stats struct {
	Handles     int
	Failed      int
	Fetched     int
	TooOld      int
	Replies     int
	Own         int
	Duplicate   int
	AlreadySeen int
	Kept        int
}

// Fetch returns posts created within the lookback window ending at now.
// A handle that fails is logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, handles []types.Handle, now time.Time) ([]*types.Post, Stats) {
	boundary := now.Add(-f.Lookback)
	stats := Stats{Handles: len(handles)}
	ids := make(map[string]struct{})
	var out []*types.Post

	for _, h := range handles {
		if ctx.Err() != nil {
			break
		}
		posts, err := f.client.FetchRecent(ctx, h, boundary)
		if err != nil {
			stats.Failed++
			f.logger.WithField("handle", h).WithError(err).Warn("Fetch failed, skipping handle")
			continue
		}
		stats.Fetched += len(posts)
		for _, p := range posts {
			switch {
			case p.CreatedAt.Before(boundary):
				stats.TooOld++
			case p.IsReply:
				stats.Replies++
			case f.MyHandle != "" && p.Author.Equal(f.MyHandle):
				stats.Own++
			case has(ids, p.ID):
				stats.Duplicate++
			case f.seen != nil && f.seen.HasReplied(p.ID):
				stats.AlreadySeen++
			default:
				ids[p.ID] = struct{}{}
				out = append(out, p)
			}
		}
	}
	stats.Kept = len(out)

	f.logger.WithFields(logrus.Fields{
		"handles":      stats.Handles,
		"failed":       stats.Failed,
		"fetched":      stats.Fetched,
		"too_old":      stats.TooOld,
		"replies":      stats.Replies,
		"already_seen": stats.AlreadySeen,
		"kept":         stats.Kept,
	}).Info("Fetched candidate posts")
	return out, stats
}

func has(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
