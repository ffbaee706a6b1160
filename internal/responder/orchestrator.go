// Package responder drives the bot: it takes mentions from a source, builds
// each reply from the author's recent history, publishes it and records
// the exchange. A second cycle posts scheduled status updates.
package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/history"
	"github.com/soyeahso/replybot/internal/hooks"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/mention"
	"golang.org/x/sync/errgroup"
)

// Completer produces reply text. *llm.Completer satisfies it.
type Completer interface {
	Complete(ctx context.Context, instructions string, history []domain.Turn, prompt string) (string, error)
}

// Publisher posts to the platform.
type Publisher interface {
	PostUpdate(ctx context.Context, text string) (domain.Mention, error)
	PostReply(ctx context.Context, inReplyToID, handle, text string) (domain.Mention, error)
}

// CursorStore persists the polling cursor between runs.
type CursorStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

// State is what the mention cycle is doing right now.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StatePublishing:
		return "publishing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config tunes an Orchestrator.
type Config struct {
	Instructions string
	AccountID    string // mentions from this author are the bot's own
	WindowSize   int

	Retries    int // attempts per completion or publish, including the first
	Backoff    time.Duration
	MaxBackoff time.Duration

	RateLimitWait    time.Duration // used when the platform gives no hint
	MaxRateLimitWait time.Duration

	// MentionAttempts is how many poll cycles a failing mention is tried
	// in before it is skipped.
	MentionAttempts int

	Schedule ScheduleConfig
}

// ScheduleConfig controls the status update cycle.
type ScheduleConfig struct {
	Enabled  bool
	Interval time.Duration
	Subjects []string
	Template string // {subject} is replaced
}

func (c *Config) applyDefaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 6
	}
	if c.Retries <= 0 {
		c.Retries = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = 30 * time.Second
	}
	if c.RateLimitWait <= 0 {
		c.RateLimitWait = time.Minute
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = 15 * time.Minute
	}
	if c.MentionAttempts <= 0 {
		c.MentionAttempts = 3
	}
	if c.Schedule.Template == "" {
		c.Schedule.Template = DefaultSubjectTemplate
	}
}

// Outcome is how handling a mention ended.
type Outcome int

const (
	// OutcomeReplied: reply published, two turns appended, cursor advanced.
	OutcomeReplied Outcome = iota
	// OutcomeSkipped: no reply, but the mention is done with; cursor advanced.
	OutcomeSkipped
	// OutcomeFailed: retries exhausted or stopped; a polled mention is
	// tried again on a later cycle and the cursor stays below it.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Result describes one handled mention.
type Result struct {
	MentionID string
	Outcome   Outcome
	Reply     string
	Published domain.Mention
	Err       error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCursorStore persists the cursor in s and resumes from it.
func WithCursorStore(s CursorStore) Option {
	return func(o *Orchestrator) { o.cursors = s }
}

// WithHooks emits lifecycle events to m.
func WithHooks(m *hooks.Manager) Option {
	return func(o *Orchestrator) { o.hooks = m }
}

// WithFallback switches to src when the primary source fails with a
// protocol error.
func WithFallback(src mention.Source) Option {
	return func(o *Orchestrator) { o.fallback = src }
}

// Orchestrator runs the mention and schedule cycles.
type Orchestrator struct {
	source    mention.Source
	fallback  mention.Source
	history   history.Store
	completer Completer
	publisher Publisher
	cursors   CursorStore
	hooks     *hooks.Manager
	cfg       Config
	log       *logging.Logger

	state   atomic.Int32
	subject atomic.Uint64

	// mu serializes history commits and cursor movement.
	mu           sync.Mutex
	cursor       string
	lastStreamed string

	// held is the lowest polled id of the current batch that failed and
	// will be fetched again. Ids above it that were dealt with go to done
	// instead of moving the cursor.
	held     string
	done     map[string]bool
	failures map[string]int
}

// New creates an Orchestrator.
func New(source mention.Source, store history.Store, completer Completer, publisher Publisher, cfg Config, log *logging.Logger, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		source:    source,
		history:   store,
		completer: completer,
		publisher: publisher,
		cfg:       cfg,
		log:       log.Sub("responder"),
		done:      make(map[string]bool),
		failures:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports what the mention cycle is doing.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) setState(s State) { o.state.Store(int32(s)) }

// Cursor is the id of the newest fully processed polled mention.
func (o *Orchestrator) Cursor() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cursor
}

// SetCursor seeds the cursor, e.g. from a --since flag. It never moves the
// cursor backwards.
func (o *Orchestrator) SetCursor(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cursor = domain.MaxID(o.cursor, id)
}

func (o *Orchestrator) loadCursor(ctx context.Context) error {
	if o.cursors == nil {
		return nil
	}
	id, err := o.cursors.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if id != "" {
		o.SetCursor(id)
		o.log.Info().Str("cursor", id).Msg("resuming from saved cursor")
	}
	return nil
}

// Run starts both cycles and blocks until ctx ends or the mention source
// fails for good. Mentions already being handled are finished first.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.loadCursor(ctx); err != nil {
		return err
	}
	if err := o.source.Start(ctx); err != nil {
		return fmt.Errorf("start %s source: %w", o.source.Mode(), err)
	}

	o.hooks.Emit(ctx, hooks.EventBotStart, map[string]any{
		"strategy": o.source.Mode().String(),
		"cursor":   o.Cursor(),
	})
	o.log.Info().
		Str("strategy", o.source.Mode().String()).
		Str("cursor", o.Cursor()).
		Bool("schedule", o.cfg.Schedule.Enabled).
		Msg("bot started")

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, cancel := context.WithCancel(gctx)
	g.Go(func() error {
		defer cancel()
		return o.mentionLoop(loopCtx)
	})
	if o.cfg.Schedule.Enabled && len(o.cfg.Schedule.Subjects) > 0 && o.cfg.Schedule.Interval > 0 {
		g.Go(func() error {
			o.scheduleLoop(loopCtx)
			return nil
		})
	}
	err := g.Wait()

	stopCtx := context.WithoutCancel(ctx)
	o.hooks.Emit(stopCtx, hooks.EventBotStop, map[string]any{"cursor": o.Cursor()})
	o.hooks.Wait()
	o.log.Info().Str("cursor", o.Cursor()).Msg("bot stopped")
	return err
}

// RunOnce fetches one batch and handles it.
func (o *Orchestrator) RunOnce(ctx context.Context) ([]Result, error) {
	if err := o.loadCursor(ctx); err != nil {
		return nil, err
	}
	if err := o.source.Start(ctx); err != nil {
		return nil, err
	}
	defer o.source.Stop()

	since := o.Cursor()
	batch, err := o.source.Next(ctx, since)
	if err != nil {
		return nil, err
	}
	results := o.ProcessBatch(ctx, o.source.Mode(), since, batch)
	o.hooks.Wait()
	return results, nil
}

func (o *Orchestrator) mentionLoop(ctx context.Context) error {
	src := o.source
	defer func() { src.Stop() }()

	for ctx.Err() == nil {
		o.setState(StateFetching)
		since := o.Cursor()
		batch, err := src.Next(ctx, since)
		o.setState(StateIdle)

		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, mention.ErrStopped):
				return nil
			case mention.IsProtocolError(err):
				if o.fallback == nil || src == o.fallback {
					return fmt.Errorf("mention source: %w", err)
				}
				o.log.Warn().Err(err).Msg("stream failed, falling back to polling")
				src.Stop()
				src = o.fallback
				o.seedFromStream()
				if err := src.Start(ctx); err != nil {
					return fmt.Errorf("start fallback source: %w", err)
				}
			default:
				o.log.Warn().Err(err).Str("since", since).Msg("fetching mentions failed")
			}
			continue
		}

		o.ProcessBatch(ctx, src.Mode(), since, batch)
	}
	return nil
}

// seedFromStream carries the stream's progress into the polling cursor so
// the fallback does not answer mentions again.
func (o *Orchestrator) seedFromStream() {
	o.mu.Lock()
	next := domain.MaxID(o.cursor, o.lastStreamed)
	changed := next != o.cursor
	o.cursor = next
	o.mu.Unlock()
	if changed {
		o.saveCursor(next)
	}
}

// ProcessBatch handles mentions in the order given. since is the cursor the
// batch was fetched with; mentions at or below it, and repeats within the
// batch, are dropped. A polled mention that fails does not stop the batch:
// the cursor stays below it so the next poll fetches it again, until
// MentionAttempts cycles have failed and it is skipped.
func (o *Orchestrator) ProcessBatch(ctx context.Context, mode mention.Mode, since string, batch []domain.Mention) []Result {
	results := make([]Result, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	o.mu.Lock()
	o.held = ""
	o.mu.Unlock()
	for _, m := range batch {
		if ctx.Err() != nil {
			break
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if mode == mention.ModePoll && since != "" && domain.CompareIDs(m.ID, since) <= 0 {
			o.log.Debug().Str("mentionId", m.ID).Str("cursor", since).Msg("already processed")
			continue
		}
		if mode == mention.ModePoll && o.alreadyDone(m.ID) {
			continue
		}

		res := o.HandleMention(ctx, mode, m)
		if res.Outcome == OutcomeFailed && mode == mention.ModePoll {
			res = o.retryLater(ctx, mode, m, res)
		}
		results = append(results, res)
	}
	return results
}

// alreadyDone reports whether a refetched id was dealt with on an earlier
// cycle, moving the cursor over it when nothing below it is held.
func (o *Orchestrator) alreadyDone(id string) bool {
	o.mu.Lock()
	if !o.done[id] {
		o.mu.Unlock()
		return false
	}
	saved := o.advanceLocked(mention.ModePoll, id)
	o.mu.Unlock()
	if saved != "" {
		o.saveCursor(saved)
	}
	return true
}

// retryLater holds the cursor below a failed polled mention, or skips it
// once it has failed in MentionAttempts cycles.
func (o *Orchestrator) retryLater(ctx context.Context, mode mention.Mode, m domain.Mention, res Result) Result {
	log := o.log.With("mentionId", m.ID).With("author", m.AuthorID)

	o.mu.Lock()
	if ctx.Err() == nil {
		o.failures[m.ID]++
	}
	attempt := o.failures[m.ID]
	if attempt < o.cfg.MentionAttempts {
		if o.held == "" || domain.CompareIDs(m.ID, o.held) < 0 {
			o.held = m.ID
		}
		o.mu.Unlock()
		log.Warn().Int("attempt", attempt).Msg("mention will be retried on the next poll")
		return res
	}
	delete(o.failures, m.ID)
	o.mu.Unlock()

	log.Error().Err(res.Err).Int("attempt", attempt).Msg("giving up on mention")
	return o.skip(context.WithoutCancel(ctx), mode, m, res, "attempts exhausted", res.Err)
}

// HandleMention answers one mention. Network calls already under way are
// allowed to finish when ctx ends, but no further attempt is started.
func (o *Orchestrator) HandleMention(ctx context.Context, mode mention.Mode, m domain.Mention) Result {
	log := o.log.With("mentionId", m.ID).With("author", m.AuthorID)
	res := Result{MentionID: m.ID}
	work := context.WithoutCancel(ctx)
	defer o.setState(StateIdle)

	o.hooks.EmitAsync(work, hooks.EventMentionReceived, map[string]any{
		"mentionId": m.ID,
		"authorId":  m.AuthorID,
		"handle":    m.AuthorHandle,
		"text":      m.Text,
	})

	if o.cfg.AccountID != "" && m.AuthorID == o.cfg.AccountID {
		log.Debug().Msg("skipping own post")
		return o.skip(work, mode, m, res, "own post", nil)
	}

	o.setState(StateProcessing)
	o.mu.Lock()
	window, err := o.history.Recent(work, m.AuthorID, o.cfg.WindowSize)
	o.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("reading history failed")
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	reply, err := o.complete(ctx, work, window, m.Text)
	if err != nil {
		var invalid *domain.InvalidPromptError
		var rejected *domain.UpstreamRejectedError
		if errors.As(err, &invalid) || errors.As(err, &rejected) {
			log.Warn().Err(err).Msg("completion refused, skipping mention")
			return o.skip(work, mode, m, res, "completion refused", err)
		}
		o.logFailure(log, mode, err, "completion failed")
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Reply = reply

	o.setState(StatePublishing)
	published, err := o.publish(ctx, work, func(c context.Context) (domain.Mention, error) {
		return o.publisher.PostReply(c, m.ID, m.AuthorHandle, reply)
	})
	if err != nil {
		var forbidden *domain.ForbiddenError
		var limited *domain.RateLimitedError
		if errors.As(err, &forbidden) || errors.As(err, &limited) {
			log.Warn().Err(err).Msg("reply not published, skipping mention")
			return o.skip(work, mode, m, res, "publish refused", err)
		}
		o.logFailure(log, mode, err, "publishing reply failed")
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Published = published

	o.mu.Lock()
	err = o.history.Append(work, m.AuthorID, domain.UserTurn(m))
	if err == nil {
		err = o.history.Append(work, m.AuthorID, domain.BotTurn(published))
	}
	saved := o.advanceLocked(mode, m.ID)
	o.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("recording history failed")
	}
	if saved != "" {
		o.saveCursor(saved)
	}

	log.Info().Str("replyId", published.ID).Msg("replied")
	o.hooks.EmitAsync(work, hooks.EventReplySent, map[string]any{
		"mentionId": m.ID,
		"authorId":  m.AuthorID,
		"replyId":   published.ID,
		"text":      published.Text,
	})
	res.Outcome = OutcomeReplied
	return res
}

func (o *Orchestrator) logFailure(log *logging.Logger, mode mention.Mode, err error, msg string) {
	ev := log.Error().Err(err)
	if mode == mention.ModeStream {
		// Streamed mentions are not redelivered.
		ev = ev.Bool("lost", true)
	}
	ev.Msg(msg)
}

func (o *Orchestrator) skip(ctx context.Context, mode mention.Mode, m domain.Mention, res Result, reason string, err error) Result {
	o.mu.Lock()
	saved := o.advanceLocked(mode, m.ID)
	o.mu.Unlock()
	if saved != "" {
		o.saveCursor(saved)
	}
	o.hooks.EmitAsync(ctx, hooks.EventMentionSkipped, map[string]any{
		"mentionId": m.ID,
		"authorId":  m.AuthorID,
		"reason":    reason,
	})
	res.Outcome, res.Err = OutcomeSkipped, err
	return res
}

// advanceLocked moves the cursor forward to id and returns the value to
// persist, or "" when nothing changed. Streamed ids are tracked separately
// so a later fallback can start from them. A polled id above a held
// failure is only remembered as done.
func (o *Orchestrator) advanceLocked(mode mention.Mode, id string) string {
	if mode != mention.ModePoll {
		o.lastStreamed = domain.MaxID(o.lastStreamed, id)
		return ""
	}
	delete(o.failures, id)
	if o.held != "" && domain.CompareIDs(id, o.held) > 0 {
		o.done[id] = true
		return ""
	}
	next := domain.MaxID(o.cursor, id)
	if next == o.cursor {
		return ""
	}
	o.cursor = next
	for d := range o.done {
		if domain.CompareIDs(d, next) <= 0 {
			delete(o.done, d)
		}
	}
	for f := range o.failures {
		if domain.CompareIDs(f, next) <= 0 {
			delete(o.failures, f)
		}
	}
	return next
}

func (o *Orchestrator) saveCursor(id string) {
	if o.cursors == nil {
		return
	}
	if err := o.cursors.Save(context.Background(), id); err != nil {
		o.log.Warn().Err(err).Str("cursor", id).Msg("persisting cursor failed")
	}
}
