package models

import (
	"context"

	"github.com/gqlregistry/registry-core/internal/checks"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
)

// CompositeModern implements the Composite model's modern variant
// (§4.5.2-4.5.4): federation and stitching projects share this family, the
// only difference being which Orchestrator variant the caller wires in.
type CompositeModern struct{}

// replaceOrAppendService forms the new schema set by replacing the entry
// matching serviceName, or appending if none matches (§4.5.2).
func replaceOrAppendService(existing []Service, serviceName, sdl, url string) []Service {
	out := make([]Service, 0, len(existing)+1)
	found := false
	for _, s := range existing {
		if s.Name == serviceName {
			s.SDL = sdl
			if url != "" {
				s.URL = url
			}
			found = true
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, Service{Name: serviceName, SDL: sdl, URL: url})
	}
	return out
}

// removeService builds the new schema set with the named service removed
// (§4.5.4 step 2).
func removeService(existing []Service, serviceName string) []Service {
	out := make([]Service, 0, len(existing))
	for _, s := range existing {
		if s.Name != serviceName {
			out = append(out, s)
		}
	}
	return out
}

func toOrchestratorSchemas(services []Service) []orchestrator.Schema {
	out := make([]orchestrator.Schema, 0, len(services))
	for _, s := range services {
		out = append(out, orchestrator.Schema{Name: s.Name, SDL: s.SDL, URL: s.URL})
	}
	return out
}

func toServiceEndpoints(services []Service) []inspector.ServiceEndpoint {
	out := make([]inspector.ServiceEndpoint, 0, len(services))
	for _, s := range services {
		out = append(out, inspector.ServiceEndpoint{Name: s.Name, URL: s.URL})
	}
	return out
}

func previousURLFor(services []Service, serviceName string) string {
	for _, s := range services {
		if s.Name == serviceName {
			return s.URL
		}
	}
	return ""
}

func (CompositeModern) Check(ctx context.Context, in CheckInput) (CheckOutcome, error) {
	if in.ServiceName == "" {
		return CheckOutcome{Kind: CheckFailure, FailureReasons: []string{"service name is required"}}, nil
	}

	baseline := in.Context.LatestSDL
	if in.CompareToPreviousComposableVersion {
		baseline = in.Context.LatestComposableSDL
	}

	sumOut := checks.Checksum(baseline, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return CheckOutcome{Kind: CheckSuccess}, nil
	}

	newSet := replaceOrAppendService(in.Context.Schemas, in.ServiceName, in.IncomingSDL, "")

	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, toOrchestratorSchemas(newSet), orchestrator.Options{Contracts: in.Contracts})
	if err != nil {
		return CheckOutcome{}, err
	}
	compOut := checks.Composition(res)
	diffOut := checks.Diff(ctx, in.TargetID, baseline, in.IncomingSDL, in.Caps.UsageOracle, in.Context.ApprovedChanges)
	policyOut := checks.PolicyCheckStage(ctx, in.Caps.PolicyEngine, in.IncomingSDL, in.IncomingSDL)

	var contractResults []ContractCheckResult
	contractFailed := false
	if res != nil {
		for _, cres := range res.Contracts {
			ok := len(cres.Errors) == 0
			if !ok {
				contractFailed = true
			}
			var msgs []string
			for _, e := range cres.Errors {
				msgs = append(msgs, e.Message)
			}
			contractResults = append(contractResults, ContractCheckResult{ContractID: cres.ID, Succeeded: ok, Errors: msgs})
		}
	}

	var reasons []string
	if compOut.Failed() {
		reasons = append(reasons, "composition: "+compOut.Reason)
	}
	if diffOut.Failed() {
		reasons = append(reasons, "diff: "+diffOut.Reason)
	}
	if policyOut.Failed() {
		reasons = append(reasons, "policy: "+policyOut.Reason)
	}
	if contractFailed {
		reasons = append(reasons, "one or more contract checks failed")
	}
	if len(reasons) > 0 {
		return CheckOutcome{Kind: CheckFailure, FailureReasons: reasons}, nil
	}

	state := &CheckState{ContractResults: contractResults}
	if cr, ok := compOut.Result.(checks.CompositionResult); ok {
		state.Composition = cr
	}
	if dr, ok := diffOut.Result.(checks.DiffResult); ok {
		state.SchemaChanges = dr.Changes
	}
	if in.FilterOutFederationChanges {
		state.SchemaChanges = inspector.FilterOutFederationChanges(state.SchemaChanges)
	}
	if pr, ok := policyOut.Result.(checks.PolicyCheckResult); ok {
		state.PolicyWarnings = pr.Warnings
	}
	return CheckOutcome{Kind: CheckSuccess, State: state}, nil
}

func (CompositeModern) Publish(ctx context.Context, in PublishInput) (PublishOutcome, error) {
	if nameOut := checks.ServiceName(in.ServiceName); nameOut.Failed() {
		return PublishOutcome{Kind: PublishReject, Reason: "MissingServiceName"}, nil
	}
	prevURL := previousURLFor(in.Context.Schemas, in.ServiceName)
	if urlOut := checks.ServiceURL(in.ServiceURL, prevURL); urlOut.Failed() {
		return PublishOutcome{Kind: PublishReject, Reason: "MissingServiceUrl"}, nil
	}

	sumOut := checks.Checksum(in.Context.LatestSDL, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return PublishOutcome{Kind: PublishIgnore, Reason: "NoChanges"}, nil
	}

	if metaOut := checks.Metadata(in.Metadata, ""); metaOut.Failed() {
		return PublishOutcome{Kind: PublishReject, Reason: "MetadataParsingFailure"}, nil
	}

	beforeSet := in.Context.Schemas
	afterSet := replaceOrAppendService(beforeSet, in.ServiceName, in.IncomingSDL, in.ServiceURL)

	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, toOrchestratorSchemas(afterSet), orchestrator.Options{Contracts: in.Contracts})
	if err != nil {
		return PublishOutcome{}, err
	}
	compOut := checks.Composition(res)

	changes, _ := inspector.Diff(ctx, in.TargetID, in.Context.LatestSDL, in.IncomingSDL, in.Caps.UsageOracle)
	urlChanges := inspector.DetectURLChanges(toServiceEndpoints(beforeSet), toServiceEndpoints(afterSet))
	changes = append(changes, urlChanges...)
	changes = inspector.ApplyApprovals(changes, in.Context.ApprovedChanges)

	var cr checks.CompositionResult
	if r, ok := compOut.Result.(checks.CompositionResult); ok {
		cr = r
	} else {
		cr = checks.CompositionResult{CompositionErrors: []string{compOut.Reason}}
	}

	if hasGraphQLSourceErrors(cr) && in.CompareToLatest {
		return PublishOutcome{Kind: PublishReject, Reason: "CompositionFailure"}, nil
	}

	state := &PublishState{
		Composable:        cr.Composable(),
		Changes:           changes,
		BreakingChanges:   partitionBreaking(changes),
		CompositionErrors: compositionErrorsFromResult(cr),
		Supergraph:        cr.Supergraph,
		FullSchemaSDL:     cr.SDL,
	}
	if res != nil {
		state.Tags = res.Tags
		state.Contracts = res.Contracts
	}
	return PublishOutcome{Kind: PublishAccept, State: state}, nil
}

func (CompositeModern) Delete(ctx context.Context, in DeleteInput) (DeleteOutcome, error) {
	if nameOut := checks.ServiceName(in.ServiceName); nameOut.Failed() {
		return DeleteOutcome{Kind: DeleteReject, Reason: "MissingServiceName"}, nil
	}

	beforeSet := in.Context.Schemas
	afterSet := removeService(beforeSet, in.ServiceName)

	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, toOrchestratorSchemas(afterSet), orchestrator.Options{Contracts: in.Contracts})
	if err != nil {
		return DeleteOutcome{}, err
	}
	compOut := checks.Composition(res)

	var composedSDL string
	if res != nil {
		composedSDL = res.SDL
	}
	changes, _ := inspector.Diff(ctx, in.TargetID, in.Context.LatestSDL, composedSDL, in.Caps.UsageOracle)
	changes = inspector.ApplyApprovals(changes, in.Context.ApprovedChanges)

	var cr checks.CompositionResult
	if r, ok := compOut.Result.(checks.CompositionResult); ok {
		cr = r
	} else {
		cr = checks.CompositionResult{CompositionErrors: []string{compOut.Reason}}
	}

	if hasGraphQLSourceErrors(cr) && in.CompareToLatest {
		return DeleteOutcome{Kind: DeleteReject, Reason: "CompositionFailure"}, nil
	}

	state := &DeleteState{
		Composable:        cr.Composable(),
		FullSchemaSDL:     cr.SDL,
		Changes:           changes,
		BreakingChanges:   partitionBreaking(changes),
		CompositionErrors: compositionErrorsFromResult(cr),
		Supergraph:        cr.Supergraph,
	}
	if res != nil {
		state.Tags = res.Tags
	}
	return DeleteOutcome{Kind: DeleteAccept, State: state}, nil
}

// CompositeLegacy accepts breaking changes with Force, skips policy checks,
// and collapses contract handling to "no contracts" (§4.5.4 legacy note).
type CompositeLegacy struct{}

func (CompositeLegacy) Check(ctx context.Context, in CheckInput) (CheckOutcome, error) {
	in.Contracts = nil
	if in.ServiceName == "" {
		return CheckOutcome{Kind: CheckFailure, FailureReasons: []string{"service name is required"}}, nil
	}

	baseline := in.Context.LatestSDL
	if in.CompareToPreviousComposableVersion {
		baseline = in.Context.LatestComposableSDL
	}

	sumOut := checks.Checksum(baseline, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return CheckOutcome{Kind: CheckSuccess}, nil
	}

	newSet := replaceOrAppendService(in.Context.Schemas, in.ServiceName, in.IncomingSDL, "")
	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, toOrchestratorSchemas(newSet), orchestrator.Options{})
	if err != nil {
		return CheckOutcome{}, err
	}
	compOut := checks.Composition(res)
	diffOut := checks.Diff(ctx, in.TargetID, baseline, in.IncomingSDL, in.Caps.UsageOracle, in.Context.ApprovedChanges)

	var reasons []string
	if compOut.Failed() {
		reasons = append(reasons, "composition: "+compOut.Reason)
	}
	if diffOut.Failed() && !in.Force {
		reasons = append(reasons, "diff: "+diffOut.Reason)
	}
	if len(reasons) > 0 {
		return CheckOutcome{Kind: CheckFailure, FailureReasons: reasons}, nil
	}

	state := &CheckState{}
	if cr, ok := compOut.Result.(checks.CompositionResult); ok {
		state.Composition = cr
	}
	if dr, ok := diffOut.Result.(checks.DiffResult); ok {
		state.SchemaChanges = dr.Changes
	}
	if in.FilterOutFederationChanges {
		state.SchemaChanges = inspector.FilterOutFederationChanges(state.SchemaChanges)
	}
	return CheckOutcome{Kind: CheckSuccess, State: state}, nil
}

func (CompositeLegacy) Publish(ctx context.Context, in PublishInput) (PublishOutcome, error) {
	in.Contracts = nil
	out, err := CompositeModern{}.Publish(ctx, in)
	if err != nil {
		return out, err
	}
	if out.Kind == PublishReject && out.Reason == "CompositionFailure" && in.Force {
		beforeSet := in.Context.Schemas
		afterSet := replaceOrAppendService(beforeSet, in.ServiceName, in.IncomingSDL, in.ServiceURL)
		res, cerr := in.Caps.Orchestrator.ComposeAndValidate(ctx, toOrchestratorSchemas(afterSet), orchestrator.Options{})
		if cerr != nil {
			return PublishOutcome{}, cerr
		}
		cOut := checks.Composition(res)
		var cres checks.CompositionResult
		if r, ok := cOut.Result.(checks.CompositionResult); ok {
			cres = r
		}
		return PublishOutcome{Kind: PublishAccept, State: &PublishState{
			Composable:        cres.Composable(),
			CompositionErrors: compositionErrorsFromResult(cres),
			FullSchemaSDL:     cres.SDL,
			Supergraph:        cres.Supergraph,
		}}, nil
	}
	return out, nil
}

func (CompositeLegacy) Delete(ctx context.Context, in DeleteInput) (DeleteOutcome, error) {
	in.Contracts = nil
	return CompositeModern{}.Delete(ctx, in)
}
