package lock

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

func TestLocker_AcquireRelease_ExclusiveAcrossHolders(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("REGISTRY_RUN_REDIS_INTEGRATION")), "true") {
		t.Skip("set REGISTRY_RUN_REDIS_INTEGRATION=true to run redis-backed lock tests")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	log, _ := logger.New("test")
	locker := New(rdb, log, 5*time.Second, 20*time.Millisecond)

	targetID := "integration-target"
	h1, err := locker.Acquire(context.Background(), targetID)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer acquireCancel()
	if _, err := locker.Acquire(acquireCtx, targetID); err == nil {
		t.Fatalf("expected second acquire to block while first holds the lock")
	}

	if err := h1.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}

	h2, err := locker.Acquire(context.Background(), targetID)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = h2.Release(context.Background())
}
