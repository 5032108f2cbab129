package inspector

import (
	"context"
	"testing"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
)

func TestDiff_DetectsFieldRemovalAsBreaking(t *testing.T) {
	before := "type Query {\n  id: ID\n  name: String\n}"
	after := "type Query {\n  id: ID\n}"

	changes, ok := Diff(context.Background(), "target-1", before, after, nil)
	if !ok {
		t.Fatalf("expected schemas to parse")
	}
	found := false
	for _, c := range changes {
		if c.Type == registry.ChangeFieldRemoved {
			found = true
			if !c.IsBreaking() {
				t.Fatalf("expected field removal to be breaking")
			}
			if c.IsSafeBasedOnUsage {
				t.Fatalf("expected usage-unsafe with no oracle configured")
			}
		}
	}
	if !found {
		t.Fatalf("expected a FIELD_REMOVED change, got %+v", changes)
	}
}

func TestDiff_FieldAdditionIsSafe(t *testing.T) {
	before := "type Query {\n  id: ID\n}"
	after := "type Query {\n  id: ID\n  name: String\n}"

	changes, ok := Diff(context.Background(), "target-1", before, after, nil)
	if !ok {
		t.Fatalf("expected schemas to parse")
	}
	if len(changes) != 1 || changes[0].Type != registry.ChangeFieldAdded {
		t.Fatalf("expected a single FIELD_ADDED change, got %+v", changes)
	}
	if changes[0].IsBlocking() {
		t.Fatalf("safe change must never block")
	}
}

func TestDiff_ReturnsFalseOnUnparseableInput(t *testing.T) {
	_, ok := Diff(context.Background(), "target-1", "type Query { id: ID", "type Query { id: ID }", nil)
	if ok {
		t.Fatalf("expected unbalanced braces to fail parsing")
	}
}

type alwaysUsedOracle struct{}

func (alwaysUsedOracle) HasTrafficSince(ctx context.Context, targetID string, coord UsageCoordinate) (bool, error) {
	return true, nil
}

func TestDiff_UsageOracleMarksTrafficAsUnsafe(t *testing.T) {
	before := "type Query {\n  id: ID\n  name: String\n}"
	after := "type Query {\n  id: ID\n}"

	changes, ok := Diff(context.Background(), "target-1", before, after, alwaysUsedOracle{})
	if !ok {
		t.Fatalf("expected schemas to parse")
	}
	if changes[0].IsSafeBasedOnUsage {
		t.Fatalf("expected traffic to keep the breaking change usage-unsafe")
	}
	if !changes[0].IsBlocking() {
		t.Fatalf("expected the unsafe breaking change to block")
	}
}

func TestDetectURLChanges_EmitsOneChangePerDifferingService(t *testing.T) {
	before := []ServiceEndpoint{{Name: "accounts", URL: "https://old.example.com"}}
	after := []ServiceEndpoint{{Name: "accounts", URL: "https://new.example.com"}}

	changes := DetectURLChanges(before, after)
	if len(changes) != 1 {
		t.Fatalf("expected exactly one url-change, got %d", len(changes))
	}
	if changes[0].Type != registry.ChangeServiceURLChanged {
		t.Fatalf("expected REGISTRY_SERVICE_URL_CHANGED, got %q", changes[0].Type)
	}
	if changes[0].IsBreaking() {
		t.Fatalf("url changes are Safe, not breaking")
	}
}

func TestDetectURLChanges_SkipsUnchangedAndNewServices(t *testing.T) {
	before := []ServiceEndpoint{{Name: "accounts", URL: "https://same.example.com"}}
	after := []ServiceEndpoint{
		{Name: "accounts", URL: "https://same.example.com"},
		{Name: "inventory", URL: "https://new-service.example.com"},
	}
	changes := DetectURLChanges(before, after)
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestFilterOutFederationChanges_DropsInternalTypeNames(t *testing.T) {
	changes := []registry.SchemaChange{
		{ID: "a", Type: registry.ChangeTypeRemoved, Path: "_Service", Meta: map[string]any{"typeName": "_Service"}},
		{ID: "b", Type: registry.ChangeFieldRemoved, Path: "Product.sku", Meta: map[string]any{"typeName": "Product"}},
	}
	out := FilterOutFederationChanges(changes)
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("expected only the non-federation change to survive, got %+v", out)
	}
}

func TestApplyApprovals_MarksApprovedChangeNonBlocking(t *testing.T) {
	changes := []registry.SchemaChange{
		{ID: "abc", Type: registry.ChangeFieldRemoved, Severity: registry.SeverityBreaking},
	}
	approved := map[string]ApprovedChange{
		"abc": {ChangeID: "abc", ApproverID: "user-1", ApprovedAt: "2026-01-01T00:00:00Z"},
	}
	out := ApplyApprovals(changes, approved)
	if out[0].ApprovedByUserID != "user-1" {
		t.Fatalf("expected approver identity to be preserved")
	}
	if out[0].IsBlocking() {
		t.Fatalf("expected approved change to be non-blocking")
	}
}
