// Package mention obtains the posts that address the bot, either by polling
// the platform with a cursor or from a live push subscription.
package mention

import (
	"context"
	"errors"

	"github.com/soyeahso/replybot/internal/domain"
)

// ErrStopped is returned by Next once a source has been stopped and has
// nothing left to hand out.
var ErrStopped = errors.New("mention source stopped")

// Mode names a mention strategy.
type Mode int

const (
	ModePoll Mode = iota
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModePoll:
		return "poll"
	case ModeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ParseMode maps a config strategy name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "poll", "":
		return ModePoll, nil
	case "stream":
		return ModeStream, nil
	default:
		return ModePoll, errors.New("unknown mention strategy " + s)
	}
}

// Source yields batches of mentions in arrival order.
//
// Next blocks until a batch is ready, the context ends or the source is
// stopped. An empty batch with a nil error means nothing new arrived.
type Source interface {
	Mode() Mode
	Start(ctx context.Context) error
	Next(ctx context.Context, since string) ([]domain.Mention, error)
	Stop() error
}
