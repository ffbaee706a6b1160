package mention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
)

// Subscriber is a live connection that pushes mentions as they happen.
//
// Subscribe blocks delivering mentions to push until ctx ends (returning
// nil) or the connection fails. A *domain.SubscriptionProtocolError ends the
// subscription for good; anything else is treated as a transient drop.
type Subscriber interface {
	Subscribe(ctx context.Context, push func(domain.Mention)) error
}

// StreamConfig tunes a StreamSource.
type StreamConfig struct {
	PollTimeout  time.Duration // how long Next waits for a mention
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// StreamSource runs a Subscriber on its own goroutine and buffers what it
// delivers in an unbounded queue.
//
// Mentions queued when the process exits are lost; there is no replay.
type StreamSource struct {
	sub   Subscriber
	cfg   StreamConfig
	queue *queue
	log   *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	fatal   error
	stopped bool
}

var _ Source = (*StreamSource)(nil)

// NewStreamSource creates a streaming strategy over sub.
func NewStreamSource(sub Subscriber, cfg StreamConfig, log *logging.Logger) *StreamSource {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = time.Minute
	}
	return &StreamSource{
		sub:   sub,
		cfg:   cfg,
		queue: newQueue(),
		log:   log.Sub("mention.stream"),
	}
}

func (s *StreamSource) Mode() Mode { return ModeStream }

// Start opens the subscription in the background.
func (s *StreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("stream already started")
	}
	if s.stopped {
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

func (s *StreamSource) run(ctx context.Context) {
	defer close(s.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReconnectMin
	b.MaxInterval = s.cfg.ReconnectMax
	b.Reset()

	for {
		err := s.sub.Subscribe(ctx, s.queue.push)
		if ctx.Err() != nil {
			return
		}

		if IsProtocolError(err) {
			s.log.Error().Err(err).Msg("subscription ended by protocol error")
			s.mu.Lock()
			s.fatal = err
			s.mu.Unlock()
			return
		}

		if err == nil {
			b.Reset()
		}
		wait := b.NextBackOff()
		s.log.Warn().Err(err).Dur("retryIn", wait).Msg("subscription dropped, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Poll pops one mention, waiting up to timeout. Timing out is not an error.
// After the subscription fails with a protocol error and the queue is
// drained, Poll returns that error.
func (s *StreamSource) Poll(ctx context.Context, timeout time.Duration) (domain.Mention, bool, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if m, ok := s.queue.pop(ctx, timeout, done); ok {
		return m, true, nil
	}
	if err := s.fatalErr(); err != nil && s.queue.len() == 0 {
		return domain.Mention{}, false, err
	}
	return domain.Mention{}, false, nil
}

// Next returns at most one mention per call. since is ignored; a stream
// has no replay.
func (s *StreamSource) Next(ctx context.Context, _ string) ([]domain.Mention, error) {
	m, ok, err := s.Poll(ctx, s.cfg.PollTimeout)
	if err != nil {
		return nil, err
	}
	if ok {
		return []domain.Mention{m}, nil
	}
	if s.isStopped() && s.queue.len() == 0 {
		return nil, ErrStopped
	}
	return nil, nil
}

// Stop closes the subscription and waits for it to wind down. Mentions
// already queued can still be polled.
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Pending is the number of queued mentions.
func (s *StreamSource) Pending() int { return s.queue.len() }

func (s *StreamSource) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

func (s *StreamSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
