package mention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type subscriberFunc func(ctx context.Context, push func(domain.Mention)) error

func (f subscriberFunc) Subscribe(ctx context.Context, push func(domain.Mention)) error {
	return f(ctx, push)
}

func fastStream() StreamConfig {
	return StreamConfig{
		PollTimeout:  50 * time.Millisecond,
		ReconnectMin: 5 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}
}

func TestStreamSourceDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sub := subscriberFunc(func(ctx context.Context, push func(domain.Mention)) error {
		for _, m := range mentions("10", "11", "12") {
			push(m)
		}
		<-ctx.Done()
		return nil
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, ModeStream, s.Mode())

	var got []string
	for len(got) < 3 {
		batch, err := s.Next(context.Background(), "ignored")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch), 1)
		got = append(got, ids(batch)...)
	}
	assert.Equal(t, []string{"10", "11", "12"}, got)
	require.NoError(t, s.Stop())
}

func TestStreamSourcePollTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sub := subscriberFunc(func(ctx context.Context, _ func(domain.Mention)) error {
		<-ctx.Done()
		return nil
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))

	m, ok, err := s.Poll(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, m.ID)
	require.NoError(t, s.Stop())
}

func TestStreamSourceReconnectsAfterTransientDrop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var attempts atomic.Int32
	sub := subscriberFunc(func(ctx context.Context, push func(domain.Mention)) error {
		n := attempts.Add(1)
		if n == 1 {
			return &domain.TransientNetworkError{Op: "read relay", Err: errors.New("reset")}
		}
		push(domain.Mention{ID: "42"})
		<-ctx.Done()
		return nil
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))

	m, ok, err := s.Poll(context.Background(), 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", m.ID)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
	require.NoError(t, s.Stop())
}

func TestStreamSourceProtocolErrorAfterDrain(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var attempts atomic.Int32
	sub := subscriberFunc(func(_ context.Context, push func(domain.Mention)) error {
		attempts.Add(1)
		push(domain.Mention{ID: "1"})
		return &domain.SubscriptionProtocolError{Code: "4001", Message: "bad token"}
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))

	m, ok, err := s.Poll(context.Background(), time.Second)
	require.NoError(t, err, "queued mentions come before the failure")
	require.True(t, ok)
	assert.Equal(t, "1", m.ID)

	var perr *domain.SubscriptionProtocolError
	require.Eventually(t, func() bool {
		_, _, err := s.Poll(context.Background(), 10*time.Millisecond)
		return errors.As(err, &perr)
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "4001", perr.Code)
	assert.Equal(t, int32(1), attempts.Load(), "protocol errors are not retried")
	require.NoError(t, s.Stop())
}

func TestStreamSourceStopDrainsThenStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pushed := make(chan struct{})
	sub := subscriberFunc(func(ctx context.Context, push func(domain.Mention)) error {
		push(domain.Mention{ID: "8"})
		close(pushed)
		<-ctx.Done()
		return nil
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))
	<-pushed
	require.NoError(t, s.Stop())

	batch, err := s.Next(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"8"}, ids(batch))

	_, err = s.Next(context.Background(), "")
	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, s.Pending())
}

func TestStreamSourceStartTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sub := subscriberFunc(func(ctx context.Context, _ func(domain.Mention)) error {
		<-ctx.Done()
		return nil
	})
	s := NewStreamSource(sub, fastStream(), silentLog())
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestStreamSourceStopBeforeStart(t *testing.T) {
	s := NewStreamSource(subscriberFunc(func(context.Context, func(domain.Mention)) error { return nil }), fastStream(), silentLog())
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}
