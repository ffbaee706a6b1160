package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/history"
	"github.com/soyeahso/replybot/internal/hooks"
	"github.com/soyeahso/replybot/internal/llm"
	"github.com/soyeahso/replybot/internal/mention"
	"github.com/soyeahso/replybot/internal/platform/irc"
	"github.com/soyeahso/replybot/internal/platform/x"
	"github.com/soyeahso/replybot/internal/responder"
	"github.com/soyeahso/replybot/internal/store"
)

// bot is everything assembled from configuration.
type bot struct {
	cfg       config.Config
	completer *llm.Completer
	history   history.Store
	cursors   responder.CursorStore
	hooks     *hooks.Manager
	accountID string

	publisher  responder.Publisher
	fetcher    mention.Fetcher    // nil when the platform cannot be polled
	subscriber mention.Subscriber // nil when not streaming
	x          *x.Client
	irc        *irc.Platform

	closers []func() error
}

// Close releases stores in reverse order of opening.
func (b *bot) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func newCompleter(ctx context.Context, cfg config.Config) (*llm.Completer, error) {
	client, err := llm.NewFromConfig(ctx, cfg.Completion)
	if err != nil {
		return nil, err
	}
	return llm.NewCompleter(client, llm.CompleterConfig{
		Model:       cfg.Completion.Model,
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: cfg.Completion.Temperature,
		Timeout:     time.Duration(cfg.Completion.TimeoutSeconds) * time.Second,
	}, log), nil
}

// openHistory opens the configured history store and, for durable stores,
// a cursor kept alongside it.
func openHistory(ctx context.Context, cfg config.Config, b *bot) error {
	switch cfg.History.Store {
	case "sqlite":
		path := paths.HistoryDB(&cfg)
		db, err := store.Open(path, log)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.history = store.NewSQLiteHistory(db)
		b.cursors = store.NewSQLiteCursor(db, "mentions")
		log.Info().Str("path", path).Msg("using SQLite history")
	case "redis":
		client, err := store.OpenRedis(ctx, cfg.History.Redis)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, client.Close)
		b.history = store.NewRedisHistory(client, cfg.History.Redis.KeyPrefix)
		b.cursors = store.NewRedisCursor(client, cfg.History.Redis.KeyPrefix, "mentions")
		log.Info().Str("addr", cfg.History.Redis.Addr).Msg("using redis history")
	default:
		b.history = history.NewMemoryStore()
		log.Info().Msg("using in-memory history")
	}
	return nil
}

// openPlatform connects the publisher and mention feeds for cfg.Platform.
func openPlatform(ctx context.Context, cfg config.Config, b *bot) error {
	switch cfg.Platform.Kind {
	case "irc":
		p := irc.New(*cfg.Platform.IRC, log)
		b.irc = p
		b.publisher = p
		b.subscriber = p
		b.accountID = strings.ToLower(cfg.Platform.IRC.Nick)
		return nil
	default:
		oauth := x.NewOAuth(cfg.Platform.X, paths.TokenFile(&cfg), log)
		httpClient, err := oauth.HTTPClient(ctx)
		if err != nil {
			return err
		}
		c := x.NewClient(cfg.Platform.X, httpClient, log)
		b.x = c
		b.publisher = c
		b.fetcher = c
		b.accountID = cfg.Platform.X.AccountID
		if cfg.Mentions.Strategy == "stream" && cfg.Mentions.Transport == "websocket" {
			b.subscriber = mention.NewWebsocketSubscriber(cfg.Mentions.StreamURL, cfg.Mentions.StreamToken, log)
		}
		return nil
	}
}

// openBot builds the shared components. The caller closes the result.
func openBot(ctx context.Context, cfg config.Config) (*bot, error) {
	b := &bot{cfg: cfg, hooks: hooks.NewManager(log)}
	if n := hooks.RegisterFromConfig(b.hooks, cfg.Hooks); n > 0 {
		log.Info().Int("count", n).Msg("command hooks registered")
	}

	var err error
	if b.completer, err = newCompleter(ctx, cfg); err != nil {
		return nil, err
	}
	if err := openHistory(ctx, cfg, b); err != nil {
		b.Close()
		return nil, err
	}
	if err := openPlatform(ctx, cfg, b); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// sources picks the mention source for strategy, plus the polling fallback
// when one is configured and possible.
func (b *bot) sources(strategy mention.Mode) (primary, fallback mention.Source, err error) {
	m := b.cfg.Mentions
	poll := func() mention.Source {
		return mention.NewPollingSource(b.fetcher, mention.PollConfig{
			Interval: time.Duration(m.PollIntervalSeconds) * time.Second,
			Timeout:  time.Duration(m.PollTimeoutSeconds) * time.Second,
		}, log)
	}

	switch strategy {
	case mention.ModeStream:
		if b.subscriber == nil {
			return nil, nil, fmt.Errorf("no stream transport configured for platform %s", b.cfg.Platform.Kind)
		}
		primary = mention.NewStreamSource(b.subscriber, mention.StreamConfig{}, log)
		if m.FallbackToPolling && b.fetcher != nil {
			fallback = poll()
		}
	default:
		if b.fetcher == nil {
			return nil, nil, fmt.Errorf("platform %s cannot be polled; use the stream strategy", b.cfg.Platform.Kind)
		}
		primary = poll()
	}
	return primary, fallback, nil
}

// responderConfig maps the config file onto the orchestrator's settings.
func (b *bot) responderConfig() responder.Config {
	c := b.cfg
	return responder.Config{
		Instructions:    c.Completion.Instructions,
		AccountID:       b.accountID,
		WindowSize:      c.History.WindowSize,
		Retries:         c.Completion.Retries,
		Backoff:         time.Duration(c.Completion.BackoffMs) * time.Millisecond,
		MentionAttempts: c.Mentions.MaxAttempts,
		Schedule: responder.ScheduleConfig{
			Enabled:  c.Schedule.Enabled,
			Interval: time.Duration(c.Schedule.IntervalMinutes) * time.Minute,
			Subjects: c.Schedule.Subjects,
			Template: c.Schedule.Prompt,
		},
	}
}

// orchestrator builds a responder over src. Pass a nil src for one-shot
// commands that never fetch.
func (b *bot) orchestrator(src mention.Source, opts ...responder.Option) *responder.Orchestrator {
	opts = append([]responder.Option{responder.WithHooks(b.hooks)}, opts...)
	return responder.New(src, b.history, b.completer, b.publisher, b.responderConfig(), log, opts...)
}

// connect brings up the IRC session for commands that publish without
// running the bot. It is a no-op on X. The returned func disconnects.
func (b *bot) connect(ctx context.Context) (func(), error) {
	if b.irc == nil {
		return func() {}, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	var subErr error
	done := make(chan struct{})
	go func() {
		subErr = b.irc.Subscribe(ctx, func(domain.Mention) {})
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}

	probe := func() (struct{}, error) {
		select {
		case <-done:
			if subErr == nil {
				subErr = errors.New("session ended")
			}
			return struct{}{}, backoff.Permanent(subErr)
		default:
		}
		if b.irc.Connected() {
			return struct{}{}, nil
		}
		return struct{}{}, errors.New("not registered yet")
	}
	_, err := backoff.Retry(ctx, probe,
		backoff.WithBackOff(backoff.NewConstantBackOff(250*time.Millisecond)),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
	if err != nil {
		stop()
		return nil, fmt.Errorf("connecting to irc: %w", err)
	}
	return stop, nil
}
