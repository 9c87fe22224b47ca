package social

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// Fake is an in-memory Client for tests and dry runs.
type Fake struct {
	mu sync.Mutex

	Posts      map[types.Handle][]*types.Post
	FetchErr   map[types.Handle]error
	PostErr    error
	Engagement map[string]types.Engagement
	MyReplies  []*types.Post

	// Posted records every successful PostReply in order.
	Posted  []FakeReply
	Fetched []types.Handle
	nextID  int
}

// FakeReply is one reply published through Fake.
type FakeReply struct {
	ID       string
	ParentID string
	Text     string
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Posts:      make(map[types.Handle][]*types.Post),
		FetchErr:   make(map[types.Handle]error),
		Engagement: make(map[string]types.Engagement),
	}
}

// FetchRecent returns the handle's posts created at or after since.
func (f *Fake) FetchRecent(ctx context.Context, handle types.Handle, since time.Time) ([]*types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fetched = append(f.Fetched, handle)
	if err := f.FetchErr[handle]; err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrFetch, handle, err)
	}
	out := make([]*types.Post, 0, len(f.Posts[handle]))
	for _, p := range f.Posts[handle] {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// PostReply records the reply and returns a sequential id.
func (f *Fake) PostReply(ctx context.Context, parentID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil {
		return "", fmt.Errorf("%w: reply to %s: %w", types.ErrPosting, parentID, f.PostErr)
	}
	f.nextID++
	id := fmt.Sprintf("reply-%d", f.nextID)
	f.Posted = append(f.Posted, FakeReply{ID: id, ParentID: parentID, Text: text})
	return id, nil
}

// Lookup returns the configured engagement for postID.
func (f *Fake) Lookup(ctx context.Context, postID string) (types.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.Engagement[postID]
	if !ok {
		return types.Engagement{}, fmt.Errorf("%w: lookup %s: not found", types.ErrFetch, postID)
	}
	return e, nil
}

// RecentReplies returns MyReplies.
func (f *Fake) RecentReplies(ctx context.Context, handle types.Handle) ([]*types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Post(nil), f.MyReplies...), nil
}

// PostCount returns how many replies were published.
func (f *Fake) PostCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Posted)
}

var _ Client = (*Fake)(nil)
