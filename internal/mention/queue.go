package mention

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
)

// queue is an unbounded FIFO with one producer and one consumer. push never
// blocks; pop waits up to a timeout.
type queue struct {
	mu     sync.Mutex
	items  []domain.Mention
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(m domain.Mention) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) tryPop() (domain.Mention, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.Mention{}, false
	}
	m := q.items[0]
	q.items[0] = domain.Mention{}
	q.items = q.items[1:]
	return m, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pop returns the head of the queue, waiting until timeout, ctx ends or
// done closes. It reports false when nothing was available.
func (q *queue) pop(ctx context.Context, timeout time.Duration, done <-chan struct{}) (domain.Mention, bool) {
	if m, ok := q.tryPop(); ok {
		return m, true
	}
	if timeout <= 0 {
		return domain.Mention{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.notify:
			if m, ok := q.tryPop(); ok {
				return m, true
			}
		case <-timer.C:
			return q.tryPop()
		case <-done:
			return q.tryPop()
		case <-ctx.Done():
			return domain.Mention{}, false
		}
	}
}
