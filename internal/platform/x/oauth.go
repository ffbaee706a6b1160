package x

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/logging"
	"golang.org/x/oauth2"
)

// Endpoint is X's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// ErrStateMismatch means the callback carried a state we did not send.
var ErrStateMismatch = errors.New("oauth state mismatch")

// ErrNoToken is returned when no saved token exists yet.
var ErrNoToken = errors.New("no saved token; run `replybot auth`")

// OAuth runs the PKCE authorization-code flow and keeps the resulting token
// on disk.
type OAuth struct {
	conf      *oauth2.Config
	tokenFile string
	log       *logging.Logger
}

// Pending is an authorization in progress.
type Pending struct {
	URL      string
	State    string
	Verifier string
}

// NewOAuth creates the flow for cfg. tokenFile is where tokens are kept.
func NewOAuth(cfg config.XConfig, tokenFile string, log *logging.Logger) *OAuth {
	return &OAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     Endpoint,
		},
		tokenFile: tokenFile,
		log:       log.Sub("x.oauth"),
	}
}

// WithEndpoint overrides the provider endpoint.
func (o *OAuth) WithEndpoint(e oauth2.Endpoint) *OAuth {
	o.conf.Endpoint = e
	return o
}

// Begin builds the URL the user opens to grant access.
func (o *OAuth) Begin() Pending {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	return Pending{
		URL:      o.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:    state,
		Verifier: verifier,
	}
}

// Exchange trades the callback's code for a token and saves it.
func (o *OAuth) Exchange(ctx context.Context, p Pending, code, state string) (*oauth2.Token, error) {
	if state != p.State {
		return nil, ErrStateMismatch
	}
	tok, err := o.conf.Exchange(ctx, code, oauth2.VerifierOption(p.Verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := SaveToken(o.tokenFile, tok); err != nil {
		return nil, err
	}
	o.log.Info().Str("file", o.tokenFile).Msg("token saved")
	return tok, nil
}

// HTTPClient returns a client that authorizes requests with the saved token,
// refreshing it as needed and writing refreshed tokens back to disk.
func (o *OAuth) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := TokenFromFile(o.tokenFile)
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		base: o.conf.TokenSource(ctx, tok),
		last: tok.AccessToken,
		file: o.tokenFile,
		log:  o.log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

type savingSource struct {
	base oauth2.TokenSource
	file string
	log  *logging.Logger

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.file, tok); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return tok, nil
}

// TokenFromFile reads a token saved by SaveToken.
func TokenFromFile(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
