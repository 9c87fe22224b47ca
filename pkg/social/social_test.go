package social

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpunion/replybot/pkg/logging"
	"github.com/cpunion/replybot/pkg/types"
)

func fastOptions(retries int) HTTPOptions {
	return HTTPOptions{
		Timeout:    2 * time.Second,
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		Logger:     logging.Discard(),
	}
}

func TestFetchRecent_ParsesSearchResponse(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twitter/tweet/advanced_search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.Header.Get("X-API-Key")
		io.WriteString(w, `{"tweets": [
			{"id": "1", "text": "iso post", "createdAt": "2026-10-19T10:00:00Z", "likeCount": 3, "retweetCount": 1, "replyCount": 2,
			 "author": {"userName": "alice", "followersCount": 500}},
			{"id": "2", "text": "legacy post", "createdAt": "Mon Oct 19 09:00:00 +0000 2026", "isReply": true, "inReplyToId": "99",
			 "author": {"userName": "alice"}},
			{"id": "3", "text": "bad time", "createdAt": "yesterday", "author": {"userName": "alice"}}
		]}`)
	}))
	defer srv.Close()

	c := NewReadClient(srv.URL, "secret", srv.Client(), fastOptions(0))
	since := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	posts, err := c.FetchRecent(context.Background(), "alice", since)
	if err != nil {
		t.Fatalf("FetchRecent: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if !strings.HasPrefix(gotQuery, "from:alice since_time:") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	p := posts[0]
	if p.Author != "alice" || p.AuthorFollowers != 500 || p.Engagement.Replies != 2 {
		t.Fatalf("unexpected post %+v", p)
	}
	if !posts[1].IsReply || posts[1].InReplyToID != "99" {
		t.Fatalf("reply fields not parsed: %+v", posts[1])
	}
	if want := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC); !posts[1].CreatedAt.Equal(want) {
		t.Fatalf("legacy timestamp = %s", posts[1].CreatedAt)
	}
}

func TestFetchRecent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"tweets": []}`)
	}))
	defer srv.Close()

	c := NewReadClient(srv.URL, "k", srv.Client(), fastOptions(3))
	if _, err := c.FetchRecent(context.Background(), "bob", time.Time{}); err != nil {
		t.Fatalf("FetchRecent: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchRecent_ClientErrorIsFetchError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewReadClient(srv.URL, "k", srv.Client(), fastOptions(3))
	_, err := c.FetchRecent(context.Background(), "bob", time.Time{})
	if !errors.Is(err, types.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", calls.Load())
	}
}

func TestLookupAndRecentReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/twitter/tweets":
			io.WriteString(w, `{"tweets": [{"id": "r1", "createdAt": "2026-10-19T10:00:00Z", "likeCount": 4, "retweetCount": 2, "replyCount": 1}]}`)
		case "/twitter/tweet/advanced_search":
			io.WriteString(w, `{"tweets": [
				{"id": "m1", "createdAt": "2026-10-19T10:00:00Z", "isReply": true, "inReplyToId": "p1", "author": {"userName": "me"}},
				{"id": "m2", "createdAt": "2026-10-19T10:00:00Z", "author": {"userName": "me"}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewReadClient(srv.URL, "k", srv.Client(), fastOptions(0))
	e, err := c.Lookup(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Weighted() != 4+4+3 {
		t.Fatalf("unexpected engagement %+v", e)
	}
	if _, err := c.Lookup(context.Background(), "missing"); !errors.Is(err, types.ErrFetch) {
		t.Fatalf("expected ErrFetch for missing post, got %v", err)
	}

	replies, err := c.RecentReplies(context.Background(), "me")
	if err != nil {
		t.Fatalf("RecentReplies: %v", err)
	}
	if len(replies) != 1 || replies[0].InReplyToID != "p1" {
		t.Fatalf("unexpected replies %+v", replies)
	}
}

func TestPostReply_SignsAndParses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/tweets" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "OAuth ") {
			t.Errorf("request not signed: %q", auth)
		}
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Reply == nil || req.Reply.InReplyToTweetID != "p1" || req.Text != "hello" {
			t.Errorf("unexpected body %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data": {"id": "r42", "text": "hello"}}`)
	}))
	defer srv.Close()

	creds := Credentials{APIKey: "ck", APISecret: "cs", AccessToken: "at", AccessTokenSecret: "as"}
	c := NewPostClient(srv.URL, creds, srv.Client(), fastOptions(3))
	id, err := c.PostReply(context.Background(), "p1", "hello")
	if err != nil {
		t.Fatalf("PostReply: %v", err)
	}
	if id != "r42" {
		t.Fatalf("reply id = %q", id)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one request, got %d", calls.Load())
	}
}

func TestPostReply_FailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewPostClient(srv.URL, Credentials{}, srv.Client(), fastOptions(3))
	_, err := c.PostReply(context.Background(), "p1", "hello")
	if !errors.Is(err, types.ErrPosting) {
		t.Fatalf("expected ErrPosting, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("posting must not be retried, got %d attempts", calls.Load())
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []string{
		"2026-10-19T10:00:00Z",
		"2026-10-19T12:00:00.000+02:00",
		"Mon Oct 19 10:00:00 +0000 2026",
	}
	want := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	for _, in := range cases {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseTimestamp("not a date"); err == nil {
		t.Fatal("expected error for garbage")
	}
}
