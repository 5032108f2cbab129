// Package models implements the four Project Model variants (§4.5):
// Single and Composite, each with a modern and legacy sub-variant, sharing
// a common check/publish/delete operation surface. Model is a sum type
// with dispatch by (project_type, legacy_flag); each variant composes the
// internal/checks primitives over the three capability interfaces
// (Orchestrator, PolicyEngine, UsageOracle) passed in explicitly (§9
// "Polymorphism across project kinds").
package models

import (
	"context"

	"github.com/gqlregistry/registry-core/internal/checks"
	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
)

// Service is one named service entry in a composite project's schema set.
type Service struct {
	Name string
	SDL  string
	URL  string
}

// VersionContext carries the baseline data a model compares against,
// assembled by the publisher's context-loading step (§4.6 step 4).
type VersionContext struct {
	// Schemas is the latest active log set, one entry per service (a single
	// project always has at most one).
	Schemas []Service

	LatestSDL           string
	LatestComposableSDL string

	BaseSchema string

	ApprovedChanges map[string]inspector.ApprovedChange
}

// Capabilities bundles the three external collaborators every primitive is
// pure over (§9).
type Capabilities struct {
	Orchestrator orchestrator.Orchestrator
	PolicyEngine checks.PolicyEngine
	UsageOracle  inspector.UsageOracle
}

// CheckInput is the normalized request for the check operation.
type CheckInput struct {
	TargetID    string
	IncomingSDL string
	ServiceName string // required for composite variants
	Metadata    string

	CompareToPreviousComposableVersion bool
	FilterOutFederationChanges         bool
	Force                              bool // legacy variants only

	Contracts []orchestrator.ContractInput

	Context VersionContext
	Caps    Capabilities
}

// CheckKind discriminates CheckOutcome's two branches.
type CheckKind string

const (
	CheckSuccess CheckKind = "success"
	CheckFailure CheckKind = "failure"
)

// ContractCheckResult is one contract's composition result within a
// composite check (§4.5.2). No per-contract diff is run.
type ContractCheckResult struct {
	ContractID string
	Succeeded  bool
	Errors     []string
}

// CheckState is the success-branch payload.
type CheckState struct {
	Composition     checks.CompositionResult
	SchemaChanges   []registry.SchemaChange
	PolicyWarnings  []string
	ContractResults []ContractCheckResult
}

// CheckOutcome is the check operation's result (§4.5.1 step 5-6).
type CheckOutcome struct {
	Kind           CheckKind
	State          *CheckState
	FailureReasons []string
}

// PublishKind discriminates PublishOutcome's three branches (§4.5.3).
type PublishKind string

const (
	PublishReject PublishKind = "reject"
	PublishIgnore PublishKind = "ignore"
	PublishAccept PublishKind = "publish"
)

// PublishInput is the normalized request for the publish operation.
type PublishInput struct {
	TargetID    string
	IncomingSDL string
	ServiceName string
	ServiceURL  string
	Metadata    string

	CompareToLatest bool
	Force           bool

	Contracts []orchestrator.ContractInput

	Context VersionContext
	Caps    Capabilities
}

// PublishState is the PublishAccept-branch payload (§4.5.3 step 5).
type PublishState struct {
	Composable        bool
	Changes           []registry.SchemaChange
	BreakingChanges   []registry.SchemaChange
	CompositionErrors []orchestrator.CompositionError
	Supergraph        string
	FullSchemaSDL     string
	Tags              []string
	Contracts         []orchestrator.ContractResult
}

// PublishOutcome is the publish operation's result.
type PublishOutcome struct {
	Kind   PublishKind
	Reason string
	State  *PublishState
}

// DeleteInput is the normalized request for the delete operation.
type DeleteInput struct {
	TargetID    string
	ServiceName string

	CompareToLatest bool

	Contracts []orchestrator.ContractInput

	Context VersionContext
	Caps    Capabilities
}

// DeleteKind discriminates DeleteOutcome's two branches (§4.5.4).
type DeleteKind string

const (
	DeleteAccept DeleteKind = "accept"
	DeleteReject DeleteKind = "reject"
)

// DeleteState is the DeleteAccept-branch payload (§4.5.4 step 4).
type DeleteState struct {
	Composable        bool
	FullSchemaSDL     string
	Changes           []registry.SchemaChange
	BreakingChanges   []registry.SchemaChange
	CompositionErrors []orchestrator.CompositionError
	Supergraph        string
	Tags              []string
}

// DeleteOutcome is the delete operation's result.
type DeleteOutcome struct {
	Kind   DeleteKind
	Reason string
	State  *DeleteState
}

// Model is the common operation surface every project-kind variant
// implements (§9 "Model as a sum type with dispatch by (project_type,
// legacy_flag)").
type Model interface {
	Check(ctx context.Context, in CheckInput) (CheckOutcome, error)
	Publish(ctx context.Context, in PublishInput) (PublishOutcome, error)
	Delete(ctx context.Context, in DeleteInput) (DeleteOutcome, error)
}

// Select dispatches to the concrete Model variant for a project (§4.5).
func Select(projectType registry.ProjectType, legacyRegistryModel bool) Model {
	if projectType == registry.ProjectTypeSingle {
		if legacyRegistryModel {
			return SingleLegacy{}
		}
		return SingleModern{}
	}
	if legacyRegistryModel {
		return CompositeLegacy{}
	}
	return CompositeModern{}
}

func partitionBreaking(changes []registry.SchemaChange) []registry.SchemaChange {
	var out []registry.SchemaChange
	for _, c := range changes {
		if c.IsBreaking() {
			out = append(out, c)
		}
	}
	return out
}

func compositionErrorsFromResult(res checks.CompositionResult) []orchestrator.CompositionError {
	var out []orchestrator.CompositionError
	for _, m := range res.GraphQLErrors {
		out = append(out, orchestrator.CompositionError{Message: m, Source: orchestrator.ErrorSourceGraphQL})
	}
	for _, m := range res.CompositionErrors {
		out = append(out, orchestrator.CompositionError{Message: m, Source: orchestrator.ErrorSourceComposition})
	}
	return out
}

func hasGraphQLSourceErrors(res checks.CompositionResult) bool {
	return len(res.GraphQLErrors) > 0
}
