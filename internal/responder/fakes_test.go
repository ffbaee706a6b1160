package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/mention"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testConfig() Config {
	return Config{
		Instructions:     "be nice",
		AccountID:        "bot",
		WindowSize:       6,
		Retries:          3,
		Backoff:          time.Millisecond,
		MaxBackoff:       2 * time.Millisecond,
		RateLimitWait:    5 * time.Millisecond,
		MaxRateLimitWait: 20 * time.Millisecond,
	}
}

func mentionFrom(id, author, text string) domain.Mention {
	return domain.Mention{
		ID:             id,
		ConversationID: id,
		AuthorID:       author,
		AuthorHandle:   author,
		Text:           text,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// completeCall records what the completer saw.
type completeCall struct {
	Instructions string
	History      []domain.Turn
	Prompt       string
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []completeCall
	errs  []error // returned in order before succeeding
	fail  func(prompt string) error
	fn    func(prompt string, history []domain.Turn) string
}

func (f *fakeCompleter) Complete(_ context.Context, instructions string, history []domain.Turn, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, completeCall{instructions, append([]domain.Turn(nil), history...), prompt})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	if f.fail != nil {
		if err := f.fail(prompt); err != nil {
			return "", err
		}
	}
	if f.fn != nil {
		return f.fn(prompt, history), nil
	}
	return fmt.Sprintf("re: %s (%d)", prompt, len(history)), nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type published struct {
	InReplyTo string
	Handle    string
	Text      string
}

type fakePublisher struct {
	mu      sync.Mutex
	replies []published
	updates []string
	errs    []error
	nextID  int
}

func (f *fakePublisher) take() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakePublisher) PostReply(_ context.Context, inReplyToID, handle, text string) (domain.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.Mention{}, err
	}
	f.nextID++
	f.replies = append(f.replies, published{inReplyToID, handle, text})
	return domain.Mention{
		ID:             fmt.Sprintf("r%d", f.nextID),
		ConversationID: inReplyToID,
		AuthorID:       "bot",
		Text:           text,
	}, nil
}

func (f *fakePublisher) PostUpdate(_ context.Context, text string) (domain.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take(); err != nil {
		return domain.Mention{}, err
	}
	f.nextID++
	f.updates = append(f.updates, text)
	return domain.Mention{ID: fmt.Sprintf("u%d", f.nextID), AuthorID: "bot", Text: text}, nil
}

func (f *fakePublisher) replyTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.replies))
	for i, r := range f.replies {
		out[i] = r.Text
	}
	return out
}

func (f *fakePublisher) updateTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updates...)
}

type memCursor struct {
	mu    sync.Mutex
	value string
	saves []string
}

func (c *memCursor) Load(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *memCursor) Save(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = id
	c.saves = append(c.saves, id)
	return nil
}

// scriptSource hands out prepared batches, then reports ErrStopped, or
// errAfter once the batches run out.
type scriptSource struct {
	mode     mention.Mode
	mu       sync.Mutex
	batches  [][]domain.Mention
	since    []string
	errAfter error
	started  bool
	stopped  bool
}

func (s *scriptSource) Mode() mention.Mode { return s.mode }

func (s *scriptSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *scriptSource) Next(ctx context.Context, since string) ([]domain.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since = append(s.since, since)
	if len(s.batches) == 0 {
		if s.errAfter != nil {
			err := s.errAfter
			s.errAfter = nil
			return nil, err
		}
		return nil, mention.ErrStopped
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *scriptSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *scriptSource) sinces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.since...)
}

func turnTexts(turns []domain.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		who := "bot"
		if t.FromUser {
			who = "user"
		}
		out[i] = who + ":" + t.Text
	}
	return out
}

func upper(prompt string, _ []domain.Turn) string { return strings.ToUpper(prompt) }
