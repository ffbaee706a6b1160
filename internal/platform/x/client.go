// Package x talks to the X (Twitter) API v2: reading mentions of the bot
// account and publishing posts and replies.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/version"
)

const (
	// MaxPostRunes is the longest post X accepts.
	MaxPostRunes = 280

	defaultBaseURL = "https://api.twitter.com"
	maxPages       = 5
	pageSize       = 100
	maxErrorBody   = 512
)

// Client is an X API v2 client for one account. It satisfies the mention
// fetcher and the reply publisher.
type Client struct {
	baseURL      string
	accountID    string
	prefixHandle bool
	http         *http.Client
	log          *logging.Logger
	now          func() time.Time
}

// NewClient creates a client. httpClient must attach the user's bearer
// token; see OAuth.HTTPClient.
func NewClient(cfg config.XConfig, httpClient *http.Client, log *logging.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      base,
		accountID:    cfg.AccountID,
		prefixHandle: cfg.PrefixHandle,
		http:         httpClient,
		log:          log.Sub("x"),
		now:          time.Now,
	}
}

// wire shapes

type post struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type listResponse struct {
	Data     []post `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

type singleResponse struct {
	Data     post `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (p post) mention(handles map[string]string) domain.Mention {
	return domain.Mention{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		AuthorID:       p.AuthorID,
		AuthorHandle:   handles[p.AuthorID],
		Text:           p.Text,
		CreatedAt:      p.CreatedAt,
	}
}

func handleIndex(users []user) map[string]string {
	m := make(map[string]string, len(users))
	for _, u := range users {
		m[u.ID] = u.Username
	}
	return m
}

// MentionsSince returns mentions of the account newer than sinceID,
// following pagination up to a fixed page cap. X pages newest first, so
// hitting the cap leaves the oldest mentions unread.
func (c *Client) MentionsSince(ctx context.Context, sinceID string) ([]domain.Mention, error) {
	var out []domain.Mention
	token := ""
	for page := 0; ; page++ {
		if page == maxPages {
			c.log.Warn().Str("since", sinceID).Int("count", len(out)).Int("pages", maxPages).
				Msg("mention page limit reached, older mentions were not fetched")
			break
		}
		q := url.Values{}
		q.Set("max_results", strconv.Itoa(pageSize))
		q.Set("tweet.fields", "conversation_id,created_at,author_id")
		q.Set("expansions", "author_id")
		q.Set("user.fields", "username")
		if sinceID != "" {
			q.Set("since_id", sinceID)
		}
		if token != "" {
			q.Set("pagination_token", token)
		}

		var resp listResponse
		path := "/2/users/" + url.PathEscape(c.accountID) + "/mentions?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		handles := handleIndex(resp.Includes.Users)
		for _, p := range resp.Data {
			out = append(out, p.mention(handles))
		}
		if resp.Meta.NextToken == "" {
			break
		}
		token = resp.Meta.NextToken
	}
	c.log.Debug().Str("since", sinceID).Int("count", len(out)).Msg("mentions fetched")
	return out, nil
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
}

// PostUpdate publishes a standalone post.
func (c *Client) PostUpdate(ctx context.Context, text string) (domain.Mention, error) {
	return c.create(ctx, createRequest{Text: Truncate(text, MaxPostRunes)}, "")
}

// PostReply publishes text as a reply to inReplyToID. X notifies the parent
// author on its own, so handle is only prefixed when configured.
func (c *Client) PostReply(ctx context.Context, inReplyToID, handle, text string) (domain.Mention, error) {
	if c.prefixHandle {
		text = domain.WithHandlePrefix(handle, text)
	}
	req := createRequest{
		Text:  Truncate(text, MaxPostRunes),
		Reply: &replyTarget{InReplyToTweetID: inReplyToID},
	}
	return c.create(ctx, req, inReplyToID)
}

func (c *Client) create(ctx context.Context, body createRequest, parent string) (domain.Mention, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/2/tweets", body, &resp); err != nil {
		return domain.Mention{}, err
	}
	text := resp.Data.Text
	if text == "" {
		text = body.Text
	}
	m := domain.Mention{
		ID:        resp.Data.ID,
		AuthorID:  c.accountID,
		Text:      text,
		CreatedAt: c.now().UTC(),
	}
	if parent != "" {
		m.ConversationID = parent
	}
	c.log.Info().Str("postId", m.ID).Str("inReplyTo", parent).Msg("published")
	return m, nil
}

// GetPost looks up a single post.
func (c *Client) GetPost(ctx context.Context, id string) (domain.Mention, error) {
	q := url.Values{}
	q.Set("tweet.fields", "conversation_id,created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	var resp singleResponse
	if err := c.do(ctx, http.MethodGet, "/2/tweets/"+url.PathEscape(id)+"?"+q.Encode(), nil, &resp); err != nil {
		return domain.Mention{}, err
	}
	return resp.Data.mention(handleIndex(resp.Includes.Users)), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())

	op := method + " " + strings.SplitN(path, "?", 2)[0]
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransientNetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransientNetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(op, resp, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response, body []byte) error {
	reason := errorReason(body)
	cause := fmt.Errorf("%s: %d %s", op, resp.StatusCode, reason)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.RateLimitedError{RetryAfter: c.retryAfter(resp.Header), Err: cause}
	case resp.StatusCode >= 500:
		return &domain.TransientNetworkError{Op: op, Err: cause}
	default:
		return &domain.ForbiddenError{Code: resp.StatusCode, Reason: reason}
	}
}

// retryAfter reads Retry-After (seconds) or X's x-rate-limit-reset (epoch).
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(c.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}

func errorReason(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Title != "" {
			return e.Title
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}

// Truncate bounds text to max runes, cutting at the last space when there
// is one in the back half and appending an ellipsis.
func Truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	if max < 1 {
		return ""
	}
	runes := []rune(text)
	cut := runes[:max-1]
	for i := len(cut) - 1; i > len(cut)/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRight(string(cut), " ") + "…"
}
