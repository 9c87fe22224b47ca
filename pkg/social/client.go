// Package social talks to the social network: reading posts through the
// twitterapi.io search API and posting replies through the v2 API with
// OAuth 1.0a user credentials.
package social

import (
	"context"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// Client is everything the bot needs from the social network.
type Client interface {
	// FetchRecent returns posts authored by handle since the given time.
	FetchRecent(ctx context.Context, handle types.Handle, since time.Time) ([]*types.Post, error)
	// PostReply publishes text as a reply to parentID and returns the new post id.
	PostReply(ctx context.Context, parentID, text string) (string, error)
	// Lookup returns the current engagement counters of a post.
	Lookup(ctx context.Context, postID string) (types.Engagement, error)
	// RecentReplies returns recent replies authored by handle.
	RecentReplies(ctx context.Context, handle types.Handle) ([]*types.Post, error)
}

// Reader is the read half of Client.
type Reader interface {
	FetchRecent(ctx context.Context, handle types.Handle, since time.Time) ([]*types.Post, error)
	Lookup(ctx context.Context, postID string) (types.Engagement, error)
	RecentReplies(ctx context.Context, handle types.Handle) ([]*types.Post, error)
}

// Poster is the write half of Client.
type Poster interface {
	PostReply(ctx context.Context, parentID, text string) (string, error)
}

// Split combines a Reader and a Poster into a Client.
type Split struct {
	Reader
	Poster
}

var _ Client = Split{}
