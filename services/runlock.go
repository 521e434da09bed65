package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLocker keeps one sweep from overlapping itself. Correctness does not
// depend on it; the dedup queries do. A false return means another run holds
// the lock.
type RunLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalRunLocker guards runs within one process.
type LocalRunLocker struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{running: make(map[string]bool)}
}

func (l *LocalRunLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[name] {
		return nil, false, nil
	}
	l.running[name] = true
	return func() {
		l.mu.Lock()
		delete(l.running, name)
		l.mu.Unlock()
	}, true, nil
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLocker guards runs across processes sharing one Redis.
type RedisRunLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisRunLocker(client *redis.Client) *RedisRunLocker {
	return &RedisRunLocker{client: client, prefix: "gaming-portal:sweep:"}
}

func (l *RedisRunLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// the run's ctx may be done by now
		releaseScript.Run(context.Background(), l.client, []string{key}, token)
	}, true, nil
}
