package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"sigede/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by Locker.Acquire when another holder owns the lease.
var ErrLockHeld = errors.New("lock held by another sweeper")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out time-bounded exclusive leases on a key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker coordinates sweepers across processes with SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker returns a Locker backed by client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		middleware.RedisErrors.WithLabelValues("sweep_lock").Inc()
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
	once   sync.Once
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		err = releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
		if errors.Is(err, redis.Nil) {
			err = nil
		}
	})
	return err
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]localHold
	now    func() time.Time
	tokens uint64
}

type localHold struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, ErrLockHeld
	}
	l.tokens++
	l.held[key] = localHold{token: l.tokens, expires: now.Add(ttl)}
	return &localLease{locker: l, key: key, token: l.tokens}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if h, ok := l.locker.held[l.key]; ok && h.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}

// NewLocker picks the Redis locker when a client is available.
func NewLocker(client *redis.Client) Locker {
	if client == nil {
		middleware.Logger.Warn("Redis unavailable; sweep lease is process-local")
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}
