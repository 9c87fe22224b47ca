package bot

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

// SeedFromHistory records the operator's own recent replies in the ledger so a
// reply posted before a crash, but never recorded, is not repeated. Read
// failures are logged and ignored; ledger failures are returned.
func SeedFromHistory(ctx context.Context, reader social.Reader, l ledger.Ledger, me types.Handle, log logrus.FieldLogger) (int, error) {
	if me == "" {
		return 0, nil
	}
	replies, err := reader.RecentReplies(ctx, me)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		log.WithField("handle", me).WithError(err).Warn("Could not read own replies, ledger not seeded")
		return 0, nil
	}

	entries := make([]types.LedgerEntry, 0, len(replies))
	for _, r := range replies {
		if r.InReplyToID == "" {
			continue
		}
		entries = append(entries, types.LedgerEntry{
			PostID:    r.InReplyToID,
			RepliedAt: r.CreatedAt,
			ReplyID:   r.ID,
		})
	}
	added, err := l.Seed(entries)
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"seen":  len(entries),
		"added": added,
	}).Info("Ledger seeded from own replies")
	return added, nil
}
