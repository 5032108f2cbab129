package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return l
}

type fakeSchemaCheckRepo struct {
	purgeCalls int64
	removed    int64
	err        error
}

func (f *fakeSchemaCheckRepo) Create(dbctx.Context, *domain.SchemaCheck) error { return nil }
func (f *fakeSchemaCheckRepo) GetByID(dbctx.Context, uuid.UUID) (*domain.SchemaCheck, error) {
	return nil, nil
}
func (f *fakeSchemaCheckRepo) GetApprovedChangesForContext(dbctx.Context, uuid.UUID, string) (map[string]inspector.ApprovedChange, error) {
	return nil, nil
}
func (f *fakeSchemaCheckRepo) ApproveFailedCheck(dbctx.Context, uuid.UUID, uuid.UUID) (*domain.SchemaCheck, error) {
	return nil, nil
}
func (f *fakeSchemaCheckRepo) PurgeExpired(dbc dbctx.Context, asOf time.Time) (int64, error) {
	atomic.AddInt64(&f.purgeCalls, 1)
	return f.removed, f.err
}

func TestPurgeWorker_RunOnceCallsPurgeExpired(t *testing.T) {
	repo := &fakeSchemaCheckRepo{removed: 3}
	w := NewPurgeWorker(nil, testLogger(t), repo, time.Minute)

	w.runOnce(context.Background())

	if got := atomic.LoadInt64(&repo.purgeCalls); got != 1 {
		t.Fatalf("expected PurgeExpired to be called once, got %d", got)
	}
}

func TestPurgeWorker_StartStopsOnContextCancel(t *testing.T) {
	repo := &fakeSchemaCheckRepo{}
	w := NewPurgeWorker(nil, testLogger(t), repo, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt64(&repo.purgeCalls) == 0 {
		t.Fatalf("expected at least one tick to have fired before cancellation")
	}
}

func TestNewPurgeWorker_DefaultsInterval(t *testing.T) {
	w := NewPurgeWorker(nil, testLogger(t), &fakeSchemaCheckRepo{}, 0)
	if w.interval != 5*time.Minute {
		t.Fatalf("expected default interval of 5m, got %v", w.interval)
	}
}
