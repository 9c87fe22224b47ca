package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/cpunion/replybot/pkg/types"
)

// DefaultPostBaseURL is the v2 API root.
const DefaultPostBaseURL = "https://api.twitter.com/2"

// Credentials are OAuth 1.0a user-context keys.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Complete reports whether every credential is set.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// PostClient publishes replies with OAuth 1.0a signed requests.
type PostClient struct {
	baseURL string
	http    *doer
}

// NewPostClient creates a poster. base is the transport the signed client
// wraps and may be nil.
func NewPostClient(baseURL string, creds Credentials, base *http.Client, opts HTTPOptions) *PostClient {
	if baseURL == "" {
		baseURL = DefaultPostBaseURL
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
	}
	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	signed := config.Client(ctx, oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret))

	// Posts are never retried: a retried POST could publish twice.
	opts.MaxRetries = 0
	return &PostClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newDoer(signed, opts),
	}
}

type createRequest struct {
	Text  string       `json:"text"`
	Reply *replyTarget `json:"reply,omitempty"`
}

type replyTarget struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	} `json:"errors"`
}

// PostReply publishes text in reply to parentID.
func (c *PostClient) PostReply(ctx context.Context, parentID, text string) (string, error) {
	body, err := json.Marshal(createRequest{
		Text:  text,
		Reply: &replyTarget{InReplyToTweetID: parentID},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode: %w", types.ErrPosting, err)
	}
	resp, err := c.http.do(ctx, "post", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: reply to %s: %w", types.ErrPosting, parentID, err)
	}
	if resp.Status != http.StatusCreated && resp.Status != http.StatusOK {
		return "", fmt.Errorf("%w: reply to %s: %w", types.ErrPosting, parentID, statusError(resp))
	}

	var payload createResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("%w: reply to %s: decode: %w", types.ErrPosting, parentID, err)
	}
	if payload.Data.ID == "" {
		msg := "no id in response"
		if len(payload.Errors) > 0 {
			msg = payload.Errors[0].Message
		}
		return "", fmt.Errorf("%w: reply to %s: %s", types.ErrPosting, parentID, msg)
	}
	return payload.Data.ID, nil
}
