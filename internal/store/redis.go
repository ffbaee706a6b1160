package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/history"
)

// OpenRedis connects to the configured redis server and checks it answers.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisHistory keeps each author's turns in a redis list of JSON entries.
type RedisHistory struct {
	client *redis.Client
	prefix string
}

var _ history.Store = (*RedisHistory)(nil)

// NewRedisHistory stores lists under "<prefix>:history:<authorId>".
func NewRedisHistory(client *redis.Client, prefix string) *RedisHistory {
	return &RedisHistory{client: client, prefix: prefix}
}

func (h *RedisHistory) key(authorID string) string {
	return h.prefix + ":history:" + authorID
}

// Append pushes the turn onto the tail of the author's list.
func (h *RedisHistory) Append(ctx context.Context, authorID string, turn domain.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}
	if err := h.client.RPush(ctx, h.key(authorID), data).Err(); err != nil {
		return fmt.Errorf("appending turn for %s: %w", authorID, err)
	}
	return nil
}

// Recent reads the last n list entries, oldest first.
func (h *RedisHistory) Recent(ctx context.Context, authorID string, n int) ([]domain.Turn, error) {
	turns := []domain.Turn{}
	if n <= 0 {
		return turns, nil
	}
	vals, err := h.client.LRange(ctx, h.key(authorID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading turns for %s: %w", authorID, err)
	}
	for _, v := range vals {
		var t domain.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("decoding turn for %s: %w", authorID, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// RedisCursor keeps the mention cursor in a single string key.
type RedisCursor struct {
	client *redis.Client
	key    string
}

// NewRedisCursor stores the cursor under "<prefix>:cursor:<name>".
func NewRedisCursor(client *redis.Client, prefix, name string) *RedisCursor {
	if name == "" {
		name = DefaultCursorName
	}
	return &RedisCursor{client: client, key: prefix + ":cursor:" + name}
}

// Load returns the saved cursor, or "" if none was saved yet.
func (c *RedisCursor) Load(ctx context.Context) (string, error) {
	v, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading cursor: %w", err)
	}
	return v, nil
}

// Save records id as the cursor value.
func (c *RedisCursor) Save(ctx context.Context, id string) error {
	if err := c.client.Set(ctx, c.key, id, 0).Err(); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}
