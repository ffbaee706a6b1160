package responder

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/hooks"
)

// DefaultSubjectTemplate turns a subject into an update prompt.
const DefaultSubjectTemplate = "Write a short post about {subject}"

// SubjectPrompt fills template with subject.
func SubjectPrompt(template, subject string) string {
	if template == "" {
		template = DefaultSubjectTemplate
	}
	if !strings.Contains(template, "{subject}") {
		return template + " " + subject
	}
	return strings.ReplaceAll(template, "{subject}", subject)
}

// ErrNoSubjects is returned by PostScheduled with an empty subject pool.
var ErrNoSubjects = errors.New("no subjects configured")

func (o *Orchestrator) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.PostScheduled(ctx)
		}
	}
}

// nextSubject walks the pool round-robin.
func (o *Orchestrator) nextSubject() (string, bool) {
	subjects := o.cfg.Schedule.Subjects
	if len(subjects) == 0 {
		return "", false
	}
	n := o.subject.Add(1) - 1
	return subjects[n%uint64(len(subjects))], true
}

// PostScheduled writes and publishes one status update about the next
// subject. History plays no part. Failures are logged and returned; they
// never touch the mention cycle.
func (o *Orchestrator) PostScheduled(ctx context.Context) (domain.Mention, error) {
	subject, ok := o.nextSubject()
	if !ok {
		return domain.Mention{}, ErrNoSubjects
	}
	return o.PostAbout(ctx, SubjectPrompt(o.cfg.Schedule.Template, subject), subject)
}

// PostAbout completes prompt with no history and publishes the result as an
// update.
func (o *Orchestrator) PostAbout(ctx context.Context, prompt, subject string) (domain.Mention, error) {
	log := o.log.With("subject", subject)
	work := context.WithoutCancel(ctx)

	text, err := o.complete(ctx, work, nil, prompt)
	if err != nil {
		log.Error().Err(err).Msg("scheduled update: completion failed")
		return domain.Mention{}, err
	}
	posted, err := o.publish(ctx, work, func(c context.Context) (domain.Mention, error) {
		return o.publisher.PostUpdate(c, text)
	})
	if err != nil {
		log.Error().Err(err).Msg("scheduled update: publishing failed")
		return domain.Mention{}, err
	}

	log.Info().Str("postId", posted.ID).Msg("update posted")
	o.hooks.EmitAsync(work, hooks.EventUpdatePosted, map[string]any{
		"postId":  posted.ID,
		"subject": subject,
		"text":    posted.Text,
	})
	return posted, nil
}
