package mention

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
)

// Fetcher is the platform call behind polling. Results may arrive in any
// order and may include ids at or below sinceID.
type Fetcher interface {
	MentionsSince(ctx context.Context, sinceID string) ([]domain.Mention, error)
}

// FetchSince returns the mentions newer than cursor, oldest first. The
// caller owns the cursor; nothing here remembers it.
func FetchSince(ctx context.Context, f Fetcher, cursor string) ([]domain.Mention, error) {
	got, err := f.MentionsSince(ctx, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Mention, 0, len(got))
	for _, m := range got {
		if cursor == "" || domain.CompareIDs(m.ID, cursor) > 0 {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Mention) int {
		return domain.CompareIDs(a.ID, b.ID)
	})
	return out, nil
}

// PollConfig tunes a PollingSource.
type PollConfig struct {
	Interval time.Duration // gap between fetches
	Timeout  time.Duration // bound on a single fetch
}

// PollingSource fetches on a fixed interval. The first Next call fetches
// immediately.
type PollingSource struct {
	fetcher Fetcher
	cfg     PollConfig
	log     *logging.Logger

	mu        sync.Mutex
	lastFetch time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

var _ Source = (*PollingSource)(nil)

// NewPollingSource creates a polling strategy over fetcher.
func NewPollingSource(fetcher Fetcher, cfg PollConfig, log *logging.Logger) *PollingSource {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &PollingSource{
		fetcher: fetcher,
		cfg:     cfg,
		log:     log.Sub("mention.poll"),
		stop:    make(chan struct{}),
	}
}

func (p *PollingSource) Mode() Mode { return ModePoll }

// Start is a no-op; polling holds no connection.
func (p *PollingSource) Start(context.Context) error { return nil }

// Next waits out the rest of the interval, then fetches mentions newer than since.
func (p *PollingSource) Next(ctx context.Context, since string) ([]domain.Mention, error) {
	p.mu.Lock()
	wait := time.Duration(0)
	if !p.lastFetch.IsZero() {
		wait = p.cfg.Interval - time.Since(p.lastFetch)
	}
	p.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.stop:
			return nil, ErrStopped
		case <-timer.C:
		}
	}
	select {
	case <-p.stop:
		return nil, ErrStopped
	default:
	}

	p.mu.Lock()
	p.lastFetch = time.Now()
	p.mu.Unlock()

	fetchCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	batch, err := FetchSince(fetchCtx, p.fetcher, since)
	if err != nil {
		return nil, err
	}
	if len(batch) > 0 {
		p.log.Debug().Str("since", since).Int("count", len(batch)).Msg("fetched mentions")
	}
	return batch, nil
}

// Stop makes pending and future Next calls return ErrStopped.
func (p *PollingSource) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}
