package checks

import (
	"context"
	"testing"

	"github.com/gqlregistry/registry-core/internal/orchestrator"
)

func TestChecksum_ReportsInitialWithNoBaseline(t *testing.T) {
	out := Checksum("", "abc123")
	if out.Kind != KindCompleted {
		t.Fatalf("expected completed outcome, got %v", out.Kind)
	}
	if out.Result.(ChecksumResult).Status != "initial" {
		t.Fatalf("expected initial status, got %+v", out.Result)
	}
}

func TestChecksum_ReportsUnchangedAndModified(t *testing.T) {
	if Checksum("abc", "abc").Result.(ChecksumResult).Status != "unchanged" {
		t.Fatalf("expected unchanged")
	}
	if Checksum("abc", "def").Result.(ChecksumResult).Status != "modified" {
		t.Fatalf("expected modified")
	}
}

func TestComposition_FailsWithPartitionedErrors(t *testing.T) {
	res := &orchestrator.Result{
		Errors: []orchestrator.CompositionError{
			{Message: "bad query", Source: orchestrator.ErrorSourceGraphQL},
			{Message: "conflict", Source: orchestrator.ErrorSourceComposition},
		},
	}
	out := Composition(res)
	if out.Kind != KindFailed {
		t.Fatalf("expected failed outcome")
	}
}

func TestComposition_SucceedsWithNoErrors(t *testing.T) {
	out := Composition(&orchestrator.Result{SDL: "type Query { id: ID }"})
	if out.Kind != KindCompleted {
		t.Fatalf("expected completed outcome")
	}
}

func TestDiffStage_SkipsWhenEitherSideIsEmpty(t *testing.T) {
	out := Diff(context.Background(), "t1", "", "type Query { id: ID }", nil, nil)
	if out.Kind != KindSkipped {
		t.Fatalf("expected skipped outcome when existing SDL is empty")
	}
}

func TestDiffStage_FailsOnUnapprovedBreakingChange(t *testing.T) {
	before := "type Query {\n  id: ID\n  name: String\n}"
	after := "type Query {\n  id: ID\n}"
	out := Diff(context.Background(), "t1", before, after, nil, nil)
	if out.Kind != KindFailed {
		t.Fatalf("expected failed outcome for unapproved breaking removal, got %v", out.Kind)
	}
}

func TestServiceURL_RejectsInvalidURL(t *testing.T) {
	out := ServiceURL("not-a-url", "")
	if out.Kind != KindFailed {
		t.Fatalf("expected failed outcome for invalid url")
	}
}

func TestServiceURL_ReportsUnchanged(t *testing.T) {
	out := ServiceURL("https://svc.example.com", "https://svc.example.com")
	if out.Result.(ServiceURLResult).Status != "unchanged" {
		t.Fatalf("expected unchanged status")
	}
}

func TestMetadata_SkipsWhenAbsent(t *testing.T) {
	out := Metadata("", "")
	if out.Kind != KindSkipped {
		t.Fatalf("expected skipped outcome")
	}
}

func TestMetadata_FailsOnInvalidJSON(t *testing.T) {
	out := Metadata("{not json", "")
	if out.Kind != KindFailed {
		t.Fatalf("expected failed outcome")
	}
}
