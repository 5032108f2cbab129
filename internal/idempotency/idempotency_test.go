package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_Do_CoalescesConcurrentIdenticalCallsInProcess(t *testing.T) {
	c := New(nil, 0)

	var calls int64
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		// Hold the call in flight long enough for every goroutine to join it.
		time.Sleep(100 * time.Millisecond)
		return []byte("result"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, _, err := c.Do(context.Background(), "same-checksum", fn)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected exactly one underlying call, got %d", calls)
	}
	for _, r := range results {
		if string(r) != "result" {
			t.Fatalf("expected every caller to observe the coalesced result, got %q", r)
		}
	}
}

func TestCache_Do_PropagatesErrors(t *testing.T) {
	c := New(nil, 0)
	wantErr := context.DeadlineExceeded
	_, _, err := c.Do(context.Background(), "checksum", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected error to propagate, got %v", err)
	}
}
