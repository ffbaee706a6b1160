package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/mention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"0.5", 0.5},
		{"gpt-4o-mini", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := config.Defaults()
	cfg.Completion.APIKey = "sk-secret"
	cfg.Platform.X.ClientSecret = "shh"
	cfg.Platform.IRC = &config.IRCConfig{Server: "irc.example.net", Nick: "bot", Password: "pw"}

	out := redacted(cfg)
	assert.Equal(t, "********", out.Completion.APIKey)
	assert.Equal(t, "********", out.Platform.X.ClientSecret)
	assert.Equal(t, "********", out.Platform.IRC.Password)
	assert.Empty(t, out.Mentions.StreamToken, "empty values stay empty")

	assert.Equal(t, "sk-secret", cfg.Completion.APIKey)
	assert.Equal(t, "pw", cfg.Platform.IRC.Password, "the original is untouched")
}

func TestSourcesNeedTransport(t *testing.T) {
	log = logging.New(nil, "silent")
	b := &bot{cfg: config.Defaults()}

	_, _, err := b.sources(mention.ModePoll)
	assert.ErrorContains(t, err, "cannot be polled")

	_, _, err = b.sources(mention.ModeStream)
	assert.ErrorContains(t, err, "no stream transport")
}

func TestResponderConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Completion.BackoffMs = 250
	cfg.Mentions.MaxAttempts = 5
	cfg.Schedule.Enabled = true
	cfg.Schedule.Subjects = []string{"tea"}
	b := &bot{cfg: cfg, accountID: "42"}

	rc := b.responderConfig()
	assert.Equal(t, "42", rc.AccountID)
	assert.Equal(t, config.DefaultWindowSize, rc.WindowSize)
	assert.Equal(t, 3, rc.Retries)
	assert.Equal(t, int64(250), rc.Backoff.Milliseconds())
	assert.Equal(t, 5, rc.MentionAttempts)
	assert.Equal(t, int64(240), int64(rc.Schedule.Interval.Minutes()))
	assert.Equal(t, "Write a short post about {subject}", rc.Schedule.Template)
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("REPLYBOT_HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--log-level", "silent"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "replybot "))
}
