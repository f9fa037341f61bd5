package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SweepLock implements ports.SweepLock with SET NX and an owner token.
type SweepLock struct {
	client *goredis.Client
	prefix string
	owner  string
}

func NewSweepLock(client *goredis.Client) *SweepLock {
	return &SweepLock{
		client: client,
		prefix: "lock:",
		owner:  uuid.NewString(),
	}
}

// TryAcquire returns false without error when another holder has the lock.
func (l *SweepLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.prefix+name, l.owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return result == "OK", nil
}

func (l *SweepLock) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
