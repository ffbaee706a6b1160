package history

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(i int, fromUser bool) domain.Turn {
	return domain.Turn{FromUser: fromUser, Text: fmt.Sprintf("t%d", i), MessageID: fmt.Sprint(i)}
}

func TestRecentUnknownAuthor(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Recent(context.Background(), "unknown_user", 6)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecentReturnsSuffix(t *testing.T) {
	ctx := context.Background()
	for _, total := range []int{0, 1, 5, 6, 7, 20} {
		for _, n := range []int{0, 1, 6, 30} {
			t.Run(fmt.Sprintf("total=%d/n=%d", total, n), func(t *testing.T) {
				s := NewMemoryStore()
				for i := range total {
					require.NoError(t, s.Append(ctx, "u1", turn(i, i%2 == 0)))
				}

				got, err := s.Recent(ctx, "u1", n)
				require.NoError(t, err)

				want := min(n, total)
				require.Len(t, got, want)
				for i, tr := range got {
					assert.Equal(t, fmt.Sprintf("t%d", total-want+i), tr.Text)
				}
			})
		}
	}
}

func TestRecentDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Append(ctx, "u1", turn(1, true)))

	got, _ := s.Recent(ctx, "u1", 6)
	got[0].Text = "mutated"

	again, _ := s.Recent(ctx, "u1", 6)
	assert.Equal(t, "t1", again[0].Text)
	assert.Equal(t, 1, s.Len("u1"))
}

func TestAuthorsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Append(ctx, "u1", turn(1, true)))
	require.NoError(t, s.Append(ctx, "u2", turn(2, true)))

	got, _ := s.Recent(ctx, "u1", 6)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].Text)
	assert.ElementsMatch(t, []string{"u1", "u2"}, s.Authors())
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, "u1", turn(i, true))
			_, _ = s.Recent(ctx, "u1", 6)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len("u1"))
}
