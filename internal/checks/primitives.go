package checks

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
	"github.com/gqlregistry/registry-core/internal/schemahelper"
)

// ChecksumResult is the `checksum` primitive's completed-outcome payload.
type ChecksumResult struct {
	Status string // "initial", "unchanged", "modified"
	Value  string
}

// Checksum compares the incoming canonical checksum to the latest known
// value. There is no failure branch — absence of a baseline is reported as
// "initial", not skipped (§4.4 primitives table).
func Checksum(latest, incoming string) Outcome {
	canonicalSum := func(sdl string) string {
		return schemahelper.Checksum(schemahelper.Canonicalize("", []schemahelper.Schema{{SDL: sdl}}))
	}
	switch {
	case latest == "":
		return Completed(ChecksumResult{Status: "initial", Value: incoming})
	case canonicalSum(latest) == canonicalSum(incoming):
		return Completed(ChecksumResult{Status: "unchanged", Value: incoming})
	default:
		return Completed(ChecksumResult{Status: "modified", Value: incoming})
	}
}

// CompositionResult is the `composition` primitive's completed-outcome
// payload: errors partitioned by source (§4.4).
type CompositionResult struct {
	SDL               string
	Supergraph        string
	GraphQLErrors     []string
	CompositionErrors []string
}

func (r CompositionResult) Composable() bool {
	return len(r.GraphQLErrors) == 0 && len(r.CompositionErrors) == 0
}

// Composition succeeds when the orchestrator returns no errors; partitions
// any errors by source into the result when it fails.
func Composition(res *orchestrator.Result) Outcome {
	if res == nil {
		return Failed("orchestrator returned no result")
	}
	cr := CompositionResult{SDL: res.SDL, Supergraph: res.Supergraph}
	for _, e := range res.Errors {
		switch e.Source {
		case orchestrator.ErrorSourceGraphQL:
			cr.GraphQLErrors = append(cr.GraphQLErrors, e.Message)
		default:
			cr.CompositionErrors = append(cr.CompositionErrors, e.Message)
		}
	}
	if !cr.Composable() {
		return Outcome{Kind: KindFailed, Reason: "composition reported errors", Result: cr}
	}
	return Completed(cr)
}

// DiffResult is the `diff` primitive's completed-outcome payload.
type DiffResult struct {
	Changes         []registry.SchemaChange
	BreakingChanges []registry.SchemaChange
}

// Diff succeeds iff every breaking change is usage-safe or approved.
// Skips when either side's SDL is null or fails to parse (§4.4).
func Diff(ctx context.Context, targetID string, existingSDL, incomingSDL string, oracle inspector.UsageOracle, approved map[string]inspector.ApprovedChange) Outcome {
	if strings.TrimSpace(existingSDL) == "" || strings.TrimSpace(incomingSDL) == "" {
		return Skipped()
	}

	changes, ok := inspector.Diff(ctx, targetID, existingSDL, incomingSDL, oracle)
	if !ok {
		return Skipped()
	}
	changes = inspector.ApplyApprovals(changes, approved)

	var breaking []registry.SchemaChange
	blocking := false
	for _, c := range changes {
		if c.IsBreaking() {
			breaking = append(breaking, c)
		}
		if c.IsBlocking() {
			blocking = true
		}
	}

	result := DiffResult{Changes: changes, BreakingChanges: breaking}
	if blocking {
		return Outcome{Kind: KindFailed, Reason: "unapproved breaking changes", Result: result}
	}
	return Completed(result)
}

// PolicyCheckResult is the `policyCheck` primitive's completed-outcome
// payload.
type PolicyCheckResult struct {
	Warnings []string
}

// PolicyCheckStage runs the policy engine. Skips when incoming SDL is null
// (composition already failed, per §4.4).
func PolicyCheckStage(ctx context.Context, engine PolicyEngine, incomingSDL, modifiedSDL string) Outcome {
	if strings.TrimSpace(incomingSDL) == "" {
		return Skipped()
	}
	if engine == nil {
		engine = NoPolicyEngine{}
	}
	res, err := engine.Check(ctx, incomingSDL, modifiedSDL)
	if err != nil {
		return Failed(err.Error())
	}
	if !res.Success() {
		return Failed(strings.Join(res.Errors, "; "))
	}
	return Completed(PolicyCheckResult{Warnings: res.Warnings})
}

// ServiceName succeeds when name is non-empty.
func ServiceName(name string) Outcome {
	if strings.TrimSpace(name) == "" {
		return Failed("service name is required")
	}
	return Completed(name)
}

// ServiceURLResult is the `serviceUrl` primitive's completed-outcome
// payload.
type ServiceURLResult struct {
	Status string // "modified", "unchanged"
	URL    string
}

// ServiceURL succeeds when the incoming URL is valid, emitting
// modified/unchanged relative to the previous service's URL.
func ServiceURL(incoming, previous string) Outcome {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return Failed("service url is required")
	}
	parsed, err := url.Parse(incoming)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Failed("service url is not a valid absolute URL")
	}
	status := "modified"
	if incoming == previous {
		status = "unchanged"
	}
	return Completed(ServiceURLResult{Status: status, URL: incoming})
}

// MetadataResult is the `metadata` primitive's completed-outcome payload.
type MetadataResult struct {
	Status string // "modified", "unchanged"
	Parsed map[string]any
}

// Metadata succeeds when the supplied metadata JSON parses. Skips when no
// metadata is supplied at all.
func Metadata(raw, previousRaw string) Outcome {
	if strings.TrimSpace(raw) == "" {
		return Skipped()
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Failed("metadata is not valid JSON: " + err.Error())
	}
	status := "modified"
	if raw == previousRaw {
		status = "unchanged"
	}
	return Completed(MetadataResult{Status: status, Parsed: parsed})
}
