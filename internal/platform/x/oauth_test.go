package x

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/replybot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testOAuth(t *testing.T, tokenURL string) (*OAuth, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "credentials", "x-token.json")
	cfg := config.XConfig{
		ClientID:    "client",
		RedirectURL: "http://127.0.0.1:8765/auth",
		Scopes:      []string{"tweet.read", "tweet.write"},
	}
	o := NewOAuth(cfg, file, silentLog()).WithEndpoint(oauth2.Endpoint{
		AuthURL:   "https://example.com/authorize",
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	})
	return o, file
}

func TestBeginBuildsPKCEURL(t *testing.T) {
	o, _ := testOAuth(t, "https://example.com/token")
	p := o.Begin()

	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, p.State, q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.NotEqual(t, p.State, o.Begin().State)
}

func TestExchangeSavesToken(t *testing.T) {
	var verifier string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		verifier = r.PostForm.Get("code_verifier")
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "at-1", "refresh_token": "rt-1", "token_type": "bearer", "expires_in": 7200}`))
	}))
	defer srv.Close()

	o, file := testOAuth(t, srv.URL)
	p := o.Begin()

	tok, err := o.Exchange(context.Background(), p, "the-code", p.State)
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, p.Verifier, verifier)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	saved, err := TokenFromFile(file)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", saved.RefreshToken)
}

func TestExchangeRejectsStateMismatch(t *testing.T) {
	o, _ := testOAuth(t, "http://127.0.0.1:1/token")
	p := o.Begin()
	_, err := o.Exchange(context.Background(), p, "code", "someone-elses-state")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestTokenFromFileMissing(t *testing.T) {
	_, err := TokenFromFile(filepath.Join(t.TempDir(), "none.json"))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestHTTPClientRefreshesAndPersists(t *testing.T) {
	var refreshes atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "fresh", "refresh_token": "rt-2", "token_type": "bearer", "expires_in": 7200}`))
	}))
	defer tokenSrv.Close()

	var authHeader string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer api.Close()

	o, file := testOAuth(t, tokenSrv.URL)
	require.NoError(t, SaveToken(file, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	client, err := o.HTTPClient(context.Background())
	require.NoError(t, err)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer fresh", authHeader)
	assert.Equal(t, int32(1), refreshes.Load())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var saved oauth2.Token
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "fresh", saved.AccessToken)
}
