package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard admits at most one in-flight run per client across processes
type Guard interface {
	Acquire(ctx context.Context, clientID, runID string) (bool, error)
	Release(ctx context.Context, clientID, runID string) error
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds a lease key per client. The lease expires after ttl so a
// crashed process cannot block a client forever.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) key(clientID string) string {
	return fmt.Sprintf("%s:inflight:%s", g.prefix, clientID)
}

func (g *RedisGuard) Acquire(ctx context.Context, clientID, runID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(clientID), runID, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	return ok, nil
}

// Release drops the lease only if runID still holds it
func (g *RedisGuard) Release(ctx context.Context, clientID, runID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key(clientID)}, runID).Err(); err != nil {
		return fmt.Errorf("failed to release run lease: %w", err)
	}
	return nil
}
