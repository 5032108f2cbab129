package models

import (
	"context"
	"testing"

	"github.com/gqlregistry/registry-core/internal/checks"
	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
)

func TestSelect_DispatchesByProjectTypeAndLegacyFlag(t *testing.T) {
	cases := []struct {
		projectType registry.ProjectType
		legacy      bool
		want        Model
	}{
		{registry.ProjectTypeSingle, false, SingleModern{}},
		{registry.ProjectTypeSingle, true, SingleLegacy{}},
		{registry.ProjectTypeFederation, false, CompositeModern{}},
		{registry.ProjectTypeFederation, true, CompositeLegacy{}},
		{registry.ProjectTypeStitching, false, CompositeModern{}},
	}
	for _, c := range cases {
		got := Select(c.projectType, c.legacy)
		if got != c.want {
			t.Fatalf("Select(%q, %v) = %T, want %T", c.projectType, c.legacy, got, c.want)
		}
	}
}

func TestSingleModern_Check_ReturnsSuccessWhenChecksumUnchanged(t *testing.T) {
	in := CheckInput{
		TargetID:    "t1",
		IncomingSDL: "type Query { id: ID }",
		Context:     VersionContext{LatestSDL: "type Query { id: ID }"},
		Caps:        Capabilities{Orchestrator: orchestrator.Single{}},
	}
	out, err := SingleModern{}.Check(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != CheckSuccess {
		t.Fatalf("expected success for unchanged schema")
	}
}

func TestSingleModern_Check_FailsOnBreakingChange(t *testing.T) {
	in := CheckInput{
		TargetID:    "t1",
		IncomingSDL: "type Query {\n  id: ID\n}",
		Context:     VersionContext{LatestSDL: "type Query {\n  id: ID\n  name: String\n}"},
		Caps:        Capabilities{Orchestrator: orchestrator.Single{}, PolicyEngine: checks.NoPolicyEngine{}},
	}
	out, err := SingleModern{}.Check(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != CheckFailure {
		t.Fatalf("expected failure for unapproved breaking change, got %+v", out)
	}
}

func TestCompositeModern_Check_RequiresServiceName(t *testing.T) {
	out, err := CompositeModern{}.Check(context.Background(), CheckInput{TargetID: "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != CheckFailure {
		t.Fatalf("expected failure when service name is missing")
	}
}

func TestCompositeModern_Publish_RejectsMissingServiceUrl(t *testing.T) {
	in := PublishInput{
		TargetID:    "t1",
		ServiceName: "accounts",
		IncomingSDL: "type User { id: ID }",
		Caps:        Capabilities{Orchestrator: orchestrator.Federation{}},
	}
	out, err := CompositeModern{}.Publish(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != PublishReject || out.Reason != "MissingServiceUrl" {
		t.Fatalf("expected MissingServiceUrl rejection, got %+v", out)
	}
}

func TestCompositeModern_Publish_IgnoresUnchangedSchema(t *testing.T) {
	sdl := "type User { id: ID }"
	in := PublishInput{
		TargetID:    "t1",
		ServiceName: "accounts",
		ServiceURL:  "https://accounts.example.com",
		IncomingSDL: sdl,
		Context:     VersionContext{LatestSDL: sdl, Schemas: []Service{{Name: "accounts", SDL: sdl, URL: "https://accounts.example.com"}}},
		Caps:        Capabilities{Orchestrator: orchestrator.Federation{}},
	}
	out, err := CompositeModern{}.Publish(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != PublishIgnore || out.Reason != "NoChanges" {
		t.Fatalf("expected NoChanges ignore, got %+v", out)
	}
}

func TestCompositeLegacy_Publish_AcceptsBreakingChangeWithForce(t *testing.T) {
	existing := "type User {\n  id: ID\n  email: String\n}"
	incoming := "type User {\n  id: ID\n}"
	in := PublishInput{
		TargetID:    "t1",
		ServiceName: "accounts",
		ServiceURL:  "https://accounts.example.com",
		IncomingSDL: incoming,
		Force:       true,
		Context: VersionContext{
			LatestSDL: existing,
			Schemas:   []Service{{Name: "accounts", SDL: existing, URL: "https://accounts.example.com"}},
		},
		Caps: Capabilities{Orchestrator: orchestrator.Federation{}},
	}
	out, err := CompositeLegacy{}.Publish(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != PublishAccept {
		t.Fatalf("expected accept, got %+v", out)
	}
}
