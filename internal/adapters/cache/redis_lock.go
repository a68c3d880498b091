package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAssignmentLock is a named distributed mutex keyed by assignment ID.
// Acquire is SET NX PX with a random token; Release compares the token before
// deleting so a holder whose TTL expired cannot release a successor's lock.
type RedisAssignmentLock struct {
	client *redis.Client
}

func NewRedisAssignmentLock(client *redis.Client) *RedisAssignmentLock {
	return &RedisAssignmentLock{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func lockKey(assignmentID uuid.UUID) string {
	return "dispatch:lock:assignment:" + assignmentID.String()
}

func (l *RedisAssignmentLock) TryAcquire(ctx context.Context, assignmentID uuid.UUID, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(assignmentID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisAssignmentLock) Release(ctx context.Context, assignmentID uuid.UUID, token string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKey(assignmentID)}, token).Err()
}
