package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OutcomeCache implements ports.OutcomeCache. It holds serialized terminal
// settlement records so duplicate webhook deliveries skip the database.
type OutcomeCache struct {
	client *goredis.Client
	prefix string
}

func NewOutcomeCache(client *goredis.Client) *OutcomeCache {
	return &OutcomeCache{
		client: client,
		prefix: "settlement:",
	}
}

// Get returns nil, nil on a miss.
func (c *OutcomeCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis outcome get: %w", err)
	}
	return val, nil
}

func (c *OutcomeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis outcome set: %w", err)
	}
	return nil
}

// Delete drops an outcome for a record that has been reopened.
func (c *OutcomeCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis outcome delete: %w", err)
	}
	return nil
}
