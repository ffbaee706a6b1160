package x

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testClient(t *testing.T, handler http.HandlerFunc, prefix bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.XConfig{AccountID: "42", BaseURL: srv.URL, PrefixHandle: prefix}, srv.Client(), silentLog())
}

func TestMentionsSincePaginates(t *testing.T) {
	var sinceSeen []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/users/42/mentions", r.URL.Path)
		sinceSeen = append(sinceSeen, r.URL.Query().Get("since_id"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))

		switch r.URL.Query().Get("pagination_token") {
		case "":
			w.Write([]byte(`{
				"data": [{"id": "105", "text": "@bot hi", "author_id": "7", "conversation_id": "105", "created_at": "2026-01-02T03:04:05Z"}],
				"includes": {"users": [{"id": "7", "username": "alice"}]},
				"meta": {"next_token": "p2", "result_count": 1}
			}`))
		case "p2":
			w.Write([]byte(`{
				"data": [{"id": "103", "text": "@bot again", "author_id": "8", "conversation_id": "90"}],
				"includes": {"users": [{"id": "8", "username": "bob"}]},
				"meta": {"result_count": 1}
			}`))
		}
	}, false)

	got, err := c.MentionsSince(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"100", "100"}, sinceSeen)

	assert.Equal(t, "105", got[0].ID)
	assert.Equal(t, "alice", got[0].AuthorHandle)
	assert.False(t, got[0].IsReply())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got[0].CreatedAt)

	assert.Equal(t, "bob", got[1].AuthorHandle)
	assert.True(t, got[1].IsReply())
}

func TestMentionsSinceWarnsAtPageLimit(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		id := strconv.Itoa(200 - pages)
		w.Write([]byte(`{
			"data": [{"id": "` + id + `", "text": "@bot hi", "author_id": "7", "conversation_id": "` + id + `"}],
			"meta": {"next_token": "more", "result_count": 1}
		}`))
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c := NewClient(config.XConfig{AccountID: "42", BaseURL: srv.URL}, srv.Client(), logging.New(&logs, "warn"))

	got, err := c.MentionsSince(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, maxPages, pages, "stops at the cap")
	assert.Len(t, got, maxPages)
	assert.Contains(t, logs.String(), "mention page limit reached")
	assert.Contains(t, logs.String(), `"since":"100"`)
}

func TestMentionsSinceEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("since_id"))
		w.Write([]byte(`{"meta": {"result_count": 0}}`))
	}, false)

	got, err := c.MentionsSince(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostReply(t *testing.T) {
	var body createRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "200", "text": "` + body.Text + `"}}`))
	}, false)

	m, err := c.PostReply(context.Background(), "105", "alice", "hello there")
	require.NoError(t, err)
	require.NotNil(t, body.Reply)
	assert.Equal(t, "105", body.Reply.InReplyToTweetID)
	assert.Equal(t, "hello there", body.Text, "X notifies the parent author itself")
	assert.Equal(t, "200", m.ID)
	assert.Equal(t, "42", m.AuthorID)
	assert.Equal(t, "105", m.ConversationID)
}

func TestPostReplyPrefixesHandle(t *testing.T) {
	var body createRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"data": {"id": "201"}}`))
	}, true)

	m, err := c.PostReply(context.Background(), "105", "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "@alice hello", body.Text)
	assert.Equal(t, "@alice hello", m.Text)
}

func TestPostUpdateTruncates(t *testing.T) {
	var body createRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"data": {"id": "300"}}`))
	}, false)

	long := strings.Repeat("word ", 100)
	m, err := c.PostUpdate(context.Background(), long)
	require.NoError(t, err)
	assert.Nil(t, body.Reply)
	assert.LessOrEqual(t, len([]rune(body.Text)), MaxPostRunes)
	assert.True(t, strings.HasSuffix(body.Text, "…"))
	assert.Empty(t, m.ConversationID)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{"rate limited with retry-after", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, func(t *testing.T, err error) {
			d, ok := domain.RetryAfter(err)
			require.True(t, ok)
			assert.Equal(t, 30*time.Second, d)
			assert.True(t, domain.IsRetryable(err))
		}},
		{"rate limited with reset", http.StatusTooManyRequests, map[string]string{"x-rate-limit-reset": strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)}, func(t *testing.T, err error) {
			d, ok := domain.RetryAfter(err)
			require.True(t, ok)
			assert.Greater(t, d, 50*time.Second)
		}},
		{"duplicate content", http.StatusForbidden, nil, func(t *testing.T, err error) {
			var fe *domain.ForbiddenError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, http.StatusForbidden, fe.Code)
			assert.Contains(t, fe.Reason, "duplicate")
			assert.False(t, domain.IsRetryable(err))
		}},
		{"unauthorized", http.StatusUnauthorized, nil, func(t *testing.T, err error) {
			var fe *domain.ForbiddenError
			assert.ErrorAs(t, err, &fe)
		}},
		{"server error", http.StatusServiceUnavailable, nil, func(t *testing.T, err error) {
			var te *domain.TransientNetworkError
			require.ErrorAs(t, err, &te)
			assert.True(t, domain.IsRetryable(err))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"title": "Forbidden", "detail": "You are not allowed to create a Tweet with duplicate content."}`))
			}, false)
			_, err := c.PostUpdate(context.Background(), "hi")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	c := NewClient(config.XConfig{AccountID: "42", BaseURL: "http://127.0.0.1:1"}, nil, silentLog())
	_, err := c.MentionsSince(context.Background(), "1")
	var te *domain.TransientNetworkError
	assert.ErrorAs(t, err, &te)
}

func TestGetPost(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets/555", r.URL.Path)
		w.Write([]byte(`{"data": {"id": "555", "text": "@bot what's up", "author_id": "9", "conversation_id": "500"},
			"includes": {"users": [{"id": "9", "username": "carol"}]}}`))
	}, false)

	m, err := c.GetPost(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, "carol", m.AuthorHandle)
	assert.Equal(t, "500", m.ConversationID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello…", Truncate("hello world again", 10))
	assert.Equal(t, "ééééé…", Truncate("éééééééééé", 6))
	assert.Equal(t, "", Truncate("abc", 0))
}
