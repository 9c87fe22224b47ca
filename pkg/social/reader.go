package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cpunion/replybot/pkg/types"
)

// DefaultReadBaseURL is the twitterapi.io endpoint.
const DefaultReadBaseURL = "https://api.twitterapi.io"

// ReadClient reads posts through the twitterapi.io search API.
type ReadClient struct {
	baseURL string
	apiKey  string
	http    *doer
}

// NewReadClient creates a reader. client may be nil.
func NewReadClient(baseURL, apiKey string, client *http.Client, opts HTTPOptions) *ReadClient {
	if baseURL == "" {
		baseURL = DefaultReadBaseURL
	}
	return &ReadClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newDoer(client, opts),
	}
}

type apiAuthor struct {
	UserName       string `json:"userName"`
	FollowersCount int    `json:"followersCount"`
	Followers      int    `json:"followers"`
}

type apiPost struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	CreatedAt    string    `json:"createdAt"`
	LikeCount    int       `json:"likeCount"`
	RetweetCount int       `json:"retweetCount"`
	ReplyCount   int       `json:"replyCount"`
	IsReply      bool      `json:"isReply"`
	InReplyToID  string    `json:"inReplyToId"`
	UserName     string    `json:"userName"`
	Author       apiAuthor `json:"author"`
}

type searchResponse struct {
	Tweets      []apiPost `json:"tweets"`
	HasNextPage bool      `json:"has_next_page"`
	NextCursor  string    `json:"next_cursor"`
}

type lookupResponse struct {
	Tweet  *apiPost  `json:"tweet"`
	Tweets []apiPost `json:"tweets"`
}

// FetchRecent searches the latest posts from handle. Posts whose timestamp
// cannot be parsed are dropped.
func (c *ReadClient) FetchRecent(ctx context.Context, handle types.Handle, since time.Time) ([]*types.Post, error) {
	query := fmt.Sprintf("from:%s", handle)
	if !since.IsZero() {
		query += fmt.Sprintf(" since_time:%d", since.Unix())
	}
	posts, err := c.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrFetch, handle, err)
	}
	return posts, nil
}

// RecentReplies returns handle's latest posts that are replies.
func (c *ReadClient) RecentReplies(ctx context.Context, handle types.Handle) ([]*types.Post, error) {
	posts, err := c.search(ctx, fmt.Sprintf("from:%s filter:replies", handle))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrFetch, handle, err)
	}
	out := posts[:0]
	for _, p := range posts {
		if p.IsReply && p.InReplyToID != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Lookup fetches one post's engagement counters.
func (c *ReadClient) Lookup(ctx context.Context, postID string) (types.Engagement, error) {
	params := url.Values{"tweet_ids": {postID}}
	resp, err := c.get(ctx, "lookup", "/twitter/tweets", params)
	if err != nil {
		return types.Engagement{}, fmt.Errorf("%w: lookup %s: %w", types.ErrFetch, postID, err)
	}
	var payload lookupResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return types.Engagement{}, fmt.Errorf("%w: lookup %s: decode: %w", types.ErrFetch, postID, err)
	}
	var found *apiPost
	if payload.Tweet != nil && payload.Tweet.ID == postID {
		found = payload.Tweet
	}
	for i := range payload.Tweets {
		if found == nil && payload.Tweets[i].ID == postID {
			found = &payload.Tweets[i]
		}
	}
	if found == nil {
		return types.Engagement{}, fmt.Errorf("%w: lookup %s: not found", types.ErrFetch, postID)
	}
	return found.engagement(), nil
}

func (c *ReadClient) search(ctx context.Context, query string) ([]*types.Post, error) {
	params := url.Values{
		"query":     {query},
		"queryType": {"Latest"},
	}
	resp, err := c.get(ctx, "search", "/twitter/tweet/advanced_search", params)
	if err != nil {
		return nil, err
	}
	var payload searchResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	posts := make([]*types.Post, 0, len(payload.Tweets))
	for _, raw := range payload.Tweets {
		p, ok := raw.toPost()
		if !ok {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (c *ReadClient) get(ctx context.Context, op, path string, params url.Values) (*response, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()
	resp, err := c.http.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, statusError(resp)
	}
	return resp, nil
}

func (p apiPost) engagement() types.Engagement {
	return types.Engagement{
		Likes:   p.LikeCount,
		Reposts: p.RetweetCount,
		Replies: p.ReplyCount,
	}
}

func (p apiPost) toPost() (*types.Post, bool) {
	if p.ID == "" {
		return nil, false
	}
	created, err := ParseTimestamp(p.CreatedAt)
	if err != nil {
		return nil, false
	}
	author := p.Author.UserName
	if author == "" {
		author = p.UserName
	}
	followers := p.Author.FollowersCount
	if followers == 0 {
		followers = p.Author.Followers
	}
	return &types.Post{
		ID:              p.ID,
		Author:          types.NormalizeHandle(author),
		Text:            p.Text,
		CreatedAt:       created,
		Engagement:      p.engagement(),
		AuthorFollowers: followers,
		IsReply:         p.IsReply,
		InReplyToID:     p.InReplyToID,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RubyDate, // "Mon Jan 02 15:04:05 -0700 2006"
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the ISO and legacy formats the API returns. Times are
// normalised to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
