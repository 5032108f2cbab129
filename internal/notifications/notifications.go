// Package notifications fans out accepted publish/delete change
// notifications to the external alerts collaborator (§1 "out of scope:
// the outbound notification fan-out"; §4.6 step 8). Delivery is
// best-effort: failures are logged, never surfaced to the caller.
package notifications

import (
	"context"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// Action discriminates which publisher operation produced the event.
type Action string

const (
	ActionPublish Action = "publish"
	ActionDelete  Action = "delete"
)

// ChangeEvent describes one accepted publish or delete for the alerts
// collaborator to route (e.g. to Slack, email, or a webhook).
type ChangeEvent struct {
	TargetID        string
	OrganizationID  string
	ProjectID       string
	Action          Action
	ServiceName     string
	Changes         []registry.SchemaChange
	BreakingChanges []registry.SchemaChange
	CompositionErrs []string
}

// HasSignal reports whether an event carries anything worth alerting on,
// per §4.6 step 8 ("non-empty changes or errors").
func (e ChangeEvent) HasSignal() bool {
	return len(e.Changes) > 0 || len(e.CompositionErrs) > 0
}

// Alerter is the external notification collaborator (§1). The registry
// core never knows how (or whether) an alert is actually delivered.
type Alerter interface {
	Notify(ctx context.Context, event ChangeEvent) error
}

// NoAlerter discards every event — the default when a project has not
// configured an alerts destination.
type NoAlerter struct{}

func (NoAlerter) Notify(ctx context.Context, event ChangeEvent) error { return nil }

// Dispatcher fans an accepted ChangeEvent out to an Alerter on its own
// goroutine so the publisher's request path never waits on, or fails
// because of, notification delivery.
type Dispatcher struct {
	alerter Alerter
	log     *logger.Logger
}

func NewDispatcher(alerter Alerter, log *logger.Logger) *Dispatcher {
	if alerter == nil {
		alerter = NoAlerter{}
	}
	return &Dispatcher{alerter: alerter, log: log.With("component", "NotificationDispatcher")}
}

// Emit asynchronously delivers event if it carries any signal. The
// caller's context is not propagated to the goroutine: notification
// delivery must outlive a request whose response has already been sent.
func (d *Dispatcher) Emit(ctx context.Context, event ChangeEvent) {
	if d == nil || !event.HasSignal() {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification dispatch panicked", "target_id", event.TargetID, "panic", r)
			}
		}()
		if err := d.alerter.Notify(context.Background(), event); err != nil {
			d.log.Warn("notification delivery failed", "target_id", event.TargetID, "action", event.Action, "error", err)
		}
	}()
}
