package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedis connects to REPLYBOT_TEST_REDIS and isolates keys under a
// random prefix that is removed afterwards.
func testRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	addr := os.Getenv("REPLYBOT_TEST_REDIS")
	if addr == "" {
		t.Skip("REPLYBOT_TEST_REDIS not set")
	}
	ctx := context.Background()
	client, err := OpenRedis(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)

	prefix := "replybot-test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client, prefix
}

func TestRedisHistory(t *testing.T) {
	client, prefix := testRedis(t)
	ctx := context.Background()
	h := NewRedisHistory(client, prefix)

	empty, err := h.Recent(ctx, "unknown_user", 6)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := range 8 {
		require.NoError(t, h.Append(ctx, "u1", domain.Turn{FromUser: i%2 == 0, Text: fmt.Sprintf("t%d", i)}))
	}

	turns, err := h.Recent(ctx, "u1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 6)
	assert.Equal(t, "t2", turns[0].Text)
	assert.Equal(t, "t7", turns[5].Text)
	assert.True(t, turns[0].FromUser)
}

func TestRedisCursor(t *testing.T) {
	client, prefix := testRedis(t)
	ctx := context.Background()
	c := NewRedisCursor(client, prefix, "")

	v, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, c.Save(ctx, "1790000000000000001"))
	v, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", v)
}

func TestOpenRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OpenRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
