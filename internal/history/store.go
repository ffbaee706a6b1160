// Package history keeps the per-user conversation log the bot reads its
// context window from.
package history

import (
	"context"
	"sync"

	"github.com/soyeahso/replybot/internal/domain"
)

// Store is an append-only per-author log of turns.
//
// Storage is unbounded; Recent returns at most the last n turns, oldest
// first, and an empty slice for authors it has never seen.
type Store interface {
	Append(ctx context.Context, authorID string, turn domain.Turn) error
	Recent(ctx context.Context, authorID string, n int) ([]domain.Turn, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]domain.Turn
}

// NewMemoryStore creates an empty in-memory history.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]domain.Turn)}
}

// Append adds a turn to the end of the author's sequence.
func (s *MemoryStore) Append(_ context.Context, authorID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[authorID] = append(s.turns[authorID], turn)
	return nil
}

// Recent returns a copy of the last n turns for the author.
func (s *MemoryStore) Recent(_ context.Context, authorID string, n int) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Window(s.turns[authorID], n), nil
}

// Authors lists every author with at least one turn.
func (s *MemoryStore) Authors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.turns))
	for id := range s.turns {
		out = append(out, id)
	}
	return out
}

// Len is the total number of turns stored for the author.
func (s *MemoryStore) Len(authorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[authorID])
}

// Window copies the last n entries of seq into a new slice.
func Window(seq []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(seq) == 0 {
		return []domain.Turn{}
	}
	start := max(len(seq)-n, 0)
	out := make([]domain.Turn, len(seq)-start)
	copy(out, seq[start:])
	return out
}
