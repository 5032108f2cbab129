// Package idempotency wraps the publisher invocation in a cache keyed by
// request checksum with a 15-second TTL: concurrent identical requests
// observe the first result (§4.6 step 3).
package idempotency

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the window concurrent identical requests share a result
// for, per §4.6 step 3.
const DefaultTTL = 15 * time.Second

// Cache coalesces concurrent identical requests within one process via
// singleflight, and serves cross-process concurrent requests a cached
// result from Redis for the TTL window.
type Cache struct {
	rdb *goredis.Client
	sf  singleflight.Group
	ttl time.Duration
}

func New(rdb *goredis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func keyFor(checksum string) string { return fmt.Sprintf("registry:idempotency:%s", checksum) }

// Do returns a cached result for checksum if one exists; otherwise it runs
// fn exactly once across concurrent in-process callers sharing the same
// checksum, caches the serialized result, and returns it. hit reports
// whether the result came from cache (Redis or an in-flight coalesced
// call) rather than a fresh invocation of fn.
func (c *Cache) Do(ctx context.Context, checksum string, fn func(ctx context.Context) ([]byte, error)) (result []byte, hit bool, err error) {
	key := keyFor(checksum)

	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			return cached, true, nil
		}
	}

	v, err, shared := c.sf.Do(checksum, func() (interface{}, error) {
		out, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if c.rdb != nil {
			_ = c.rdb.Set(ctx, key, out, c.ttl).Err()
		}
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	out, _ := v.([]byte)
	return out, shared, nil
}
