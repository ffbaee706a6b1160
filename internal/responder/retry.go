package responder

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/soyeahso/replybot/internal/domain"
)

func (o *Orchestrator) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.Backoff
	b.MaxInterval = o.cfg.MaxBackoff
	b.Reset()
	return b
}

// retry runs op up to cfg.Retries times while it fails with an error
// retryable accepts. op runs under work; ctx only gates the waits, so a
// stop lets the current attempt finish and prevents the next one.
func retry[T any](o *Orchestrator, ctx, work context.Context, what string, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(work)
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(uint(o.cfg.Retries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			o.log.Warn().Err(err).Str("op", what).Int("attempt", attempt).Dur("retryIn", wait).Msg("retrying")
		}),
	)
	// The last attempt's error comes back still marked permanent.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return v, err
}

func (o *Orchestrator) complete(ctx, work context.Context, window []domain.Turn, prompt string) (string, error) {
	return retry(o, ctx, work, "complete", isUpstream, func(c context.Context) (string, error) {
		return o.completer.Complete(c, o.cfg.Instructions, window, prompt)
	})
}

// publish retries transient failures with backoff. A rate limit is waited
// out once, using the platform's hint, before giving up.
func (o *Orchestrator) publish(ctx, work context.Context, op func(context.Context) (domain.Mention, error)) (domain.Mention, error) {
	m, err := retry(o, ctx, work, "publish", isTransient, op)
	hint, limited := domain.RetryAfter(err)
	if !limited {
		return m, err
	}

	wait := o.rateLimitWait(hint)
	o.log.Warn().Err(err).Dur("wait", wait).Msg("rate limited, waiting before one more try")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.Mention{}, err
	case <-timer.C:
	}
	return op(work)
}

func (o *Orchestrator) rateLimitWait(hint time.Duration) time.Duration {
	if hint <= 0 {
		hint = o.cfg.RateLimitWait
	}
	return min(hint, o.cfg.MaxRateLimitWait)
}

func isUpstream(err error) bool {
	var upstream *domain.UpstreamError
	return errors.As(err, &upstream)
}

func isTransient(err error) bool {
	var transient *domain.TransientNetworkError
	return errors.As(err, &transient)
}
