package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

type recordingAlerter struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
}

func (a *recordingAlerter) Notify(ctx context.Context, event ChangeEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return a.err
}

func newTestDispatcher(t *testing.T, alerter Alerter) *Dispatcher {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewDispatcher(alerter, log)
}

func TestDispatcher_Emit_DeliversEventsWithSignal(t *testing.T) {
	alerter := &recordingAlerter{}
	d := newTestDispatcher(t, alerter)

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), ChangeEvent{
			TargetID: "t1",
			Action:   ActionPublish,
			Changes:  []registry.SchemaChange{{Type: "FIELD_ADDED"}},
		})
		close(done)
	}()
	<-done

	if !waitForCount(t, alerter, 1) {
		t.Fatalf("expected one delivered event")
	}
}

func TestDispatcher_Emit_SkipsEventsWithNoSignal(t *testing.T) {
	alerter := &recordingAlerter{}
	d := newTestDispatcher(t, alerter)

	d.Emit(context.Background(), ChangeEvent{TargetID: "t1", Action: ActionPublish})

	alerter.mu.Lock()
	n := len(alerter.events)
	alerter.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no delivery for a signal-less event, got %d", n)
	}
}

func TestDispatcher_Emit_SwallowsAlerterError(t *testing.T) {
	alerter := &recordingAlerter{err: context.DeadlineExceeded}
	d := newTestDispatcher(t, alerter)

	// Must not panic or block the caller even though Notify always errors.
	d.Emit(context.Background(), ChangeEvent{
		TargetID: "t1",
		Action:   ActionDelete,
		Changes:  []registry.SchemaChange{{Type: "TYPE_REMOVED"}},
	})

	if !waitForCount(t, alerter, 1) {
		t.Fatalf("expected delivery attempt despite alerter error")
	}
}

func TestNoAlerter_NeverErrors(t *testing.T) {
	if err := (NoAlerter{}).Notify(context.Background(), ChangeEvent{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func waitForCount(t *testing.T, alerter *recordingAlerter, want int) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alerter.mu.Lock()
		n := len(alerter.events)
		alerter.mu.Unlock()
		if n >= want {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}
