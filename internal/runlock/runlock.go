// Package runlock keeps two pipeline runs from overlapping, in-process or
// across processes sharing a Redis.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("runlock: already held")

type Locker interface {
	// Acquire takes key for ttl and returns a token for Release.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func New(backend string, client redis.UniversalClient) (Locker, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryLocker(), nil
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("runlock: redis backend needs a client")
		}
		return &RedisLocker{Client: client}, nil
	default:
		return nil, fmt.Errorf("runlock: unknown backend %q", backend)
	}
}

type memLease struct {
	token   string
	expires time.Time
}

type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memLease
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]memLease{}, now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expires) {
		return "", ErrLocked
	}
	token := uuid.NewString()
	l.leases[key] = memLease{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[key]; ok && cur.token == token {
		delete(l.leases, key)
	}
	return nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client redis.UniversalClient
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("runlock: acquire %s: %w", key, err)
	}
	if !ok {
		return "", ErrLocked
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("runlock: release %s: %w", key, err)
	}
	return nil
}
