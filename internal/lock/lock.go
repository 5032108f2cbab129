// Package lock implements the distributed per-target mutex the publisher
// acquires before running a model (§4.6 step 2, §5 "lock discipline"): a
// Redis key `registry:lock:{target_id}`, a cancellable wait, and a
// TTL-releasable hold so a crashed holder never wedges a target forever.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// ErrNotHeld is returned by Release when the caller's token no longer
// matches the held lock (it expired and was re-acquired by someone else).
var ErrNotHeld = errors.New("lock: not held")

// Locker acquires the distributed per-target mutex described in §5.
type Locker interface {
	// Acquire blocks, polling until the lock is obtained or ctx is
	// cancelled (the caller's cancellation signal, honored per §4.6 step 2).
	Acquire(ctx context.Context, targetID string) (*Handle, error)
}

// Handle represents one held lock; Release is idempotent-safe via a
// compare-and-delete token so a TTL expiry followed by re-acquisition by
// another holder is never released out from under them.
type Handle struct {
	locker *redisLocker
	key    string
	token  string
}

func (h *Handle) Release(ctx context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	return h.locker.release(ctx, h.key, h.token)
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

type redisLocker struct {
	rdb       *goredis.Client
	log       *logger.Logger
	ttl       time.Duration
	pollEvery time.Duration
}

// New builds a Locker over an existing Redis client. ttl bounds how long a
// lock survives a crashed holder; pollEvery is the retry interval while
// waiting for a contended target (§5 "Scheduling").
func New(rdb *goredis.Client, log *logger.Logger, ttl, pollEvery time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if pollEvery <= 0 {
		pollEvery = 100 * time.Millisecond
	}
	return &redisLocker{rdb: rdb, log: log.With("component", "Locker"), ttl: ttl, pollEvery: pollEvery}
}

func keyFor(targetID string) string { return fmt.Sprintf("registry:lock:%s", targetID) }

func (l *redisLocker) Acquire(ctx context.Context, targetID string) (*Handle, error) {
	key := keyFor(targetID)
	token := uuid.New().String()

	ticker := time.NewTicker(l.pollEvery)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return &Handle{locker: l, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	res, err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Result()
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", key, err)
	}
	if n, ok := res.(int64); ok && n == 0 {
		l.log.Warn("lock release found no matching holder", "key", key)
		return ErrNotHeld
	}
	return nil
}
