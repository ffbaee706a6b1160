// Package irc runs the bot on IRC using the girc library. Channel messages
// that address the bot's nick, and direct messages, are its mentions.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/version"
)

const (
	// maxLineBytes keeps PRIVMSG lines under the 512-byte protocol limit
	// once the prefix and target are added.
	maxLineBytes = 400
	// maxTargets bounds how many mention ids are remembered for replies.
	maxTargets = 1024
)

// target is where a reply to a mention goes.
type target struct {
	to   string // channel or nick
	nick string
}

// Platform is both the mention subscriber and the publisher for IRC.
type Platform struct {
	cfg config.IRCConfig
	log *logging.Logger
	now func() time.Time

	mu          sync.RWMutex
	client      *girc.Client
	push        func(domain.Mention)
	protocolErr error

	targetsMu sync.Mutex
	targets   map[string]target
	order     []string
}

// New creates an IRC platform from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Platform {
	return &Platform{
		cfg:     cfg,
		log:     log.Sub("irc"),
		now:     time.Now,
		targets: make(map[string]target),
	}
}

func (p *Platform) port() int {
	if p.cfg.Port != 0 {
		return p.cfg.Port
	}
	if p.cfg.UseTLS {
		return 6697
	}
	return 6667
}

func (p *Platform) gircConfig() girc.Config {
	gc := girc.Config{
		Server:  p.cfg.Server,
		Port:    p.port(),
		Nick:    p.cfg.Nick,
		User:    p.cfg.Nick,
		Name:    "replybot",
		SSL:     p.cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if p.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: p.cfg.Server}
	}
	if p.cfg.SASL && p.cfg.Password != "" {
		gc.SASL = &girc.SASLPlain{User: p.cfg.Nick, Pass: p.cfg.Password}
	} else if p.cfg.Password != "" {
		gc.ServerPass = p.cfg.Password
	}
	return gc
}

// Subscribe connects and delivers mentions to push until ctx ends or the
// connection drops. Server-side refusals (ERROR, bad password) end the
// subscription with a protocol error.
func (p *Platform) Subscribe(ctx context.Context, push func(domain.Mention)) error {
	client := girc.New(p.gircConfig())
	client.Handlers.Add(girc.CONNECTED, p.onConnected)
	client.Handlers.Add(girc.PRIVMSG, func(c *girc.Client, e girc.Event) { p.handlePrivmsg(e) })
	client.Handlers.Add(girc.ERROR, p.onError)
	client.Handlers.Add("464", p.onError) // ERR_PASSWDMISMATCH
	client.Handlers.Add("465", p.onError) // ERR_YOUREBANNEDCREEP

	p.mu.Lock()
	p.client = client
	p.push = push
	p.protocolErr = nil
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.client = nil
		p.push = nil
		p.mu.Unlock()
	}()

	p.log.Info().
		Str("server", p.cfg.Server).
		Int("port", p.port()).
		Str("nick", p.cfg.Nick).
		Strs("channels", p.cfg.Channels).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()

	select {
	case <-ctx.Done():
		client.Quit("replybot shutting down")
		client.Close()
		<-errCh
		return nil
	case err := <-errCh:
		p.mu.RLock()
		perr := p.protocolErr
		p.mu.RUnlock()
		if perr != nil {
			return perr
		}
		if err == nil {
			err = fmt.Errorf("connection closed")
		}
		return &domain.TransientNetworkError{Op: "irc connect", Err: err}
	}
}

func (p *Platform) onConnected(c *girc.Client, _ girc.Event) {
	p.log.Info().Str("nick", c.GetNick()).Msg("connected to IRC")
	for _, ch := range p.cfg.Channels {
		c.Cmd.Join(ch)
	}
}

func (p *Platform) onError(_ *girc.Client, e girc.Event) {
	p.mu.Lock()
	p.protocolErr = &domain.SubscriptionProtocolError{Code: e.Command, Message: e.Last()}
	p.mu.Unlock()
	p.log.Error().Str("code", e.Command).Str("detail", e.Last()).Msg("server refused connection")
}

func (p *Platform) nick() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client != nil && p.client.IsConnected() {
		return p.client.GetNick()
	}
	return p.cfg.Nick
}

// handlePrivmsg turns an addressed PRIVMSG into a mention.
func (p *Platform) handlePrivmsg(e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	nick := p.nick()
	if strings.EqualFold(e.Source.Name, nick) {
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	to := e.Source.Name
	if e.IsFromChannel() {
		var ok bool
		body, ok = addressedText(nick, body)
		if !ok {
			return
		}
		to = e.Params[0]
	}
	if strings.TrimSpace(body) == "" {
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		p.log.Error().Err(err).Msg("failed to allocate mention id")
		return
	}
	m := domain.Mention{
		ID:             id.String(),
		ConversationID: id.String(),
		AuthorID:       strings.ToLower(e.Source.Name),
		AuthorHandle:   e.Source.Name,
		Text:           body,
		CreatedAt:      p.now().UTC(),
	}
	p.remember(m.ID, target{to: to, nick: e.Source.Name})

	p.mu.RLock()
	push := p.push
	p.mu.RUnlock()
	if push != nil {
		push(m)
	}
}

// addressedText reports whether body speaks to nick and returns it with a
// leading "nick:" or "nick," stripped.
func addressedText(nick, body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)
	ln := strings.ToLower(nick)
	if strings.HasPrefix(lower, ln) {
		rest := trimmed[len(nick):]
		if rest == "" {
			return "", true
		}
		switch rest[0] {
		case ':', ',':
			return strings.TrimSpace(rest[1:]), true
		case ' ':
			return strings.TrimSpace(rest), true
		}
	}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r == '_' || r == '-' || r == '[' || r == ']' || r == '\\' || r == '^' || r == '{' || r == '}' || r == '|' ||
			(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if word == ln {
			return trimmed, true
		}
	}
	return "", false
}

func (p *Platform) remember(id string, t target) {
	p.targetsMu.Lock()
	defer p.targetsMu.Unlock()
	p.targets[id] = t
	p.order = append(p.order, id)
	for len(p.order) > maxTargets {
		delete(p.targets, p.order[0])
		p.order = p.order[1:]
	}
}

func (p *Platform) lookup(id string) (target, bool) {
	p.targetsMu.Lock()
	defer p.targetsMu.Unlock()
	t, ok := p.targets[id]
	return t, ok
}

func (p *Platform) connected() (*girc.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil || !p.client.IsConnected() {
		return nil, &domain.TransientNetworkError{Op: "irc send", Err: fmt.Errorf("not connected")}
	}
	return p.client, nil
}

// Connected reports whether the session is registered with the server.
func (p *Platform) Connected() bool {
	_, err := p.connected()
	return err == nil
}

// PostUpdate sends text to every configured channel.
func (p *Platform) PostUpdate(_ context.Context, text string) (domain.Mention, error) {
	client, err := p.connected()
	if err != nil {
		return domain.Mention{}, err
	}
	if len(p.cfg.Channels) == 0 {
		return domain.Mention{}, &domain.ForbiddenError{Reason: "no channels configured"}
	}
	for _, ch := range p.cfg.Channels {
		p.send(client, ch, text)
	}
	return p.published("", text), nil
}

// PostReply answers the mention inReplyToID in the place it was said. In a
// channel the author's nick is prefixed so their client highlights it.
func (p *Platform) PostReply(_ context.Context, inReplyToID, handle, text string) (domain.Mention, error) {
	t, ok := p.lookup(inReplyToID)
	if !ok {
		return domain.Mention{}, &domain.ForbiddenError{Reason: "unknown mention " + inReplyToID}
	}
	client, err := p.connected()
	if err != nil {
		return domain.Mention{}, err
	}
	if handle == "" {
		handle = t.nick
	}
	if girc.IsValidChannel(t.to) {
		text = handle + ": " + text
	}
	p.send(client, t.to, text)
	return p.published(inReplyToID, text), nil
}

func (p *Platform) send(client *girc.Client, to, text string) {
	lines := splitMessage(text, maxLineBytes)
	for _, line := range lines {
		client.Cmd.Message(to, line)
	}
	p.log.Debug().Str("to", to).Int("lines", len(lines)).Msg("sent")
}

func (p *Platform) published(parent, text string) domain.Mention {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return domain.Mention{
		ID:             id.String(),
		ConversationID: parent,
		AuthorID:       strings.ToLower(p.cfg.Nick),
		AuthorHandle:   p.cfg.Nick,
		Text:           text,
		CreatedAt:      p.now().UTC(),
	}
}
