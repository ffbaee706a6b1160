package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSubjectPrompt(t *testing.T) {
	tests := []struct {
		template, subject, want string
	}{
		{"", "tea", "Write a short post about tea"},
		{"Tell me about {subject}, briefly", "cats", "Tell me about cats, briefly"},
		{"Say something nice:", "rain", "Say something nice: rain"},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectPrompt(tt.template, tt.subject))
		})
	}
}

func TestPostScheduledRoundRobin(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = ScheduleConfig{Subjects: []string{"tea", "cats"}}
	h := newHarness(cfg)
	h.completer.fn = upper

	for range 3 {
		_, err := h.orch.PostScheduled(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"WRITE A SHORT POST ABOUT TEA",
		"WRITE A SHORT POST ABOUT CATS",
		"WRITE A SHORT POST ABOUT TEA",
	}, h.publisher.updateTexts())

	for _, call := range h.completer.calls {
		assert.Empty(t, call.History)
		assert.Equal(t, "be nice", call.Instructions)
	}
	assert.Empty(t, h.store.Authors(), "updates are not recorded in history")
	assert.Empty(t, h.orch.Cursor())
}

func TestPostScheduledNoSubjects(t *testing.T) {
	h := newHarness(testConfig())
	_, err := h.orch.PostScheduled(context.Background())
	assert.ErrorIs(t, err, ErrNoSubjects)
	assert.Zero(t, h.completer.callCount())
}

func TestPostScheduledFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = ScheduleConfig{Subjects: []string{"tea"}}
	h := newHarness(cfg)
	h.publisher.errs = []error{&domain.ForbiddenError{Code: 403, Reason: "duplicate content"}}

	_, err := h.orch.PostScheduled(context.Background())
	var forbidden *domain.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
	assert.Empty(t, h.publisher.updates)
}

func TestPostAboutEmitsHook(t *testing.T) {
	mgr := hooks.NewManager(silentLog())
	got := make(chan hooks.Payload, 1)
	mgr.On(hooks.EventUpdatePosted, "test", func(_ context.Context, p hooks.Payload) error {
		got <- p
		return nil
	})
	h := newHarness(testConfig(), WithHooks(mgr))

	posted, err := h.orch.PostAbout(context.Background(), "say hi", "greetings")
	require.NoError(t, err)
	mgr.Wait()

	p := <-got
	assert.Equal(t, posted.ID, p.Data["postId"])
	assert.Equal(t, "greetings", p.Data["subject"])
}

func TestScheduleRunsAlongsideMentions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig()
	cfg.Schedule = ScheduleConfig{Enabled: true, Interval: 5 * time.Millisecond, Subjects: []string{"tea"}}
	h := newHarness(cfg)
	src := &blockingSource{scriptSource: scriptSource{}}
	h.orch.source = src

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(h.publisher.updateTexts()) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

// blockingSource never yields mentions; Next returns when ctx ends.
type blockingSource struct {
	scriptSource
}

func (b *blockingSource) Next(ctx context.Context, _ string) ([]domain.Mention, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
