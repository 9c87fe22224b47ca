package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/cpunion/replybot/pkg/ledger"
	"github.com/cpunion/replybot/pkg/social"
	"github.com/cpunion/replybot/pkg/types"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func post(id string, author types.Handle, age time.Duration) *types.Post {
	return &types.Post{ID: id, Author: author, Text: "text " + id, CreatedAt: now.Add(-age)}
}

func TestFetch_LookbackWindow(t *testing.T) {
	fake := social.NewFake()
	fake.Posts["alice"] = []*types.Post{post("a1", "alice", 2*time.Hour)}
	fake.Posts["bob"] = []*types.Post{post("b1", "bob", 20*time.Hour)}

	f := New(fake, nil, nil)
	posts, stats := f.Fetch(context.Background(), []types.Handle{"alice", "bob"}, now)
	if len(posts) != 1 || posts[0].ID != "a1" {
		t.Fatalf("expected only a1, got %+v", posts)
	}
	if stats.Kept != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFetch_DropsRepliesOwnDuplicatesAndLedgered(t *testing.T) {
	fake := social.NewFake()
	reply := post("a2", "alice", time.Hour)
	reply.IsReply = true
	fake.Posts["alice"] = []*types.Post{post("a1", "alice", time.Hour), reply, post("shared", "alice", time.Hour)}
	fake.Posts["bob"] = []*types.Post{post("shared", "bob", time.Hour), post("done", "bob", time.Hour)}
	fake.Posts["Me"] = []*types.Post{post("m1", "Me", time.Hour)}

	l := ledger.NewMemory()
	if err := l.RecordReply("done", now.Add(-time.Hour), ledger.Meta{}); err != nil {
		t.Fatal(err)
	}

	f := New(fake, l, nil)
	f.MyHandle = "me"
	posts, stats := f.Fetch(context.Background(), []types.Handle{"alice", "bob", "Me"}, now)

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	if len(ids) != 2 || ids[0] != "a1" || ids[1] != "shared" {
		t.Fatalf("unexpected kept ids %v", ids)
	}
	if stats.Replies != 1 || stats.Duplicate != 1 || stats.AlreadySeen != 1 || stats.Own != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFetch_FailedHandleIsSkipped(t *testing.T) {
	fake := social.NewFake()
	fake.FetchErr["alice"] = errors.New("boom")
	fake.Posts["bob"] = []*types.Post{post("b1", "bob", time.Hour)}

	logger, hook := logrustest.NewNullLogger()
	f := New(fake, nil, logger)
	posts, stats := f.Fetch(context.Background(), []types.Handle{"alice", "bob"}, now)
	if len(posts) != 1 || stats.Failed != 1 {
		t.Fatalf("expected bob's post and one failure, got %d posts, stats %+v", len(posts), stats)
	}

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["handle"] == types.Handle("alice") {
			if err, ok := e.Data[logrus.ErrorKey].(error); ok && errors.Is(err, types.ErrFetch) {
				warned = true
			}
		}
	}
	if !warned {
		t.Fatal("expected a warning carrying the handle and a fetch error")
	}
}
