package models

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/gqlregistry/registry-core/internal/checks"
	"github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
)

// SingleModern implements the Single model's modern variant (§4.5.1).
type SingleModern struct{}

func (SingleModern) Check(ctx context.Context, in CheckInput) (CheckOutcome, error) {
	baseline := in.Context.LatestSDL
	if in.CompareToPreviousComposableVersion {
		baseline = in.Context.LatestComposableSDL
	}

	sumOut := checks.Checksum(baseline, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return CheckOutcome{Kind: CheckSuccess, State: nil}, nil
	}

	var compOut, diffOut, policyOut checks.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := in.Caps.Orchestrator.ComposeAndValidate(gctx, []orchestrator.Schema{{Name: in.ServiceName, SDL: in.IncomingSDL}}, orchestrator.Options{Contracts: in.Contracts})
		if err != nil {
			return err
		}
		compOut = checks.Composition(res)
		return nil
	})
	g.Go(func() error {
		diffOut = checks.Diff(gctx, in.TargetID, baseline, in.IncomingSDL, in.Caps.UsageOracle, in.Context.ApprovedChanges)
		return nil
	})
	g.Go(func() error {
		policyOut = checks.PolicyCheckStage(gctx, in.Caps.PolicyEngine, in.IncomingSDL, in.IncomingSDL)
		return nil
	})
	if err := g.Wait(); err != nil {
		return CheckOutcome{}, err
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
	if pr, ok := policyOut.Result.(checks.PolicyCheckResult); ok {
		state.PolicyWarnings = pr.Warnings
	}
	return CheckOutcome{Kind: CheckSuccess, State: state}, nil
}

func (SingleModern) Publish(ctx context.Context, in PublishInput) (PublishOutcome, error) {
	sumOut := checks.Checksum(in.Context.LatestSDL, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return PublishOutcome{Kind: PublishIgnore, Reason: "NoChanges"}, nil
	}

	if metaOut := checks.Metadata(in.Metadata, ""); metaOut.Failed() {
		return PublishOutcome{Kind: PublishReject, Reason: "MetadataParsingFailure"}, nil
	}

	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, []orchestrator.Schema{{Name: in.ServiceName, SDL: in.IncomingSDL}}, orchestrator.Options{Contracts: in.Contracts})
	if err != nil {
		return PublishOutcome{}, err
	}
	compOut := checks.Composition(res)

	diffOut := checks.Diff(ctx, in.TargetID, in.Context.LatestSDL, in.IncomingSDL, in.Caps.UsageOracle, in.Context.ApprovedChanges)
	var changes []registry.SchemaChange
	if dr, ok := diffOut.Result.(checks.DiffResult); ok {
		changes = dr.Changes
	}

	var cr checks.CompositionResult
	if r, ok := compOut.Result.(checks.CompositionResult); ok {
		cr = r
	} else {
		cr = checks.CompositionResult{GraphQLErrors: []string{compOut.Reason}}
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

func (SingleModern) Delete(ctx context.Context, in DeleteInput) (DeleteOutcome, error) {
	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, nil, orchestrator.Options{Contracts: in.Contracts})
	if err != nil {
		return DeleteOutcome{}, err
	}
	compOut := checks.Composition(res)
	diffOut := checks.Diff(ctx, in.TargetID, in.Context.LatestSDL, "", in.Caps.UsageOracle, in.Context.ApprovedChanges)

	var changes []registry.SchemaChange
	if dr, ok := diffOut.Result.(checks.DiffResult); ok {
		changes = dr.Changes
	}

	var cr checks.CompositionResult
	if r, ok := compOut.Result.(checks.CompositionResult); ok {
		cr = r
	}

	state := &DeleteState{
		Composable:        cr.Composable(),
		FullSchemaSDL:      cr.SDL,
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

// SingleLegacy accepts breaking changes when Force is set and skips policy
// checks, collapsing contract handling to "no contracts" (§4.5.4 legacy
// note).
type SingleLegacy struct{}

func (SingleLegacy) Check(ctx context.Context, in CheckInput) (CheckOutcome, error) {
	in.Contracts = nil
	baseline := in.Context.LatestSDL
	if in.CompareToPreviousComposableVersion {
		baseline = in.Context.LatestComposableSDL
	}

	sumOut := checks.Checksum(baseline, in.IncomingSDL)
	if cr, ok := sumOut.Result.(checks.ChecksumResult); ok && cr.Status == "unchanged" {
		return CheckOutcome{Kind: CheckSuccess}, nil
	}

	res, err := in.Caps.Orchestrator.ComposeAndValidate(ctx, []orchestrator.Schema{{Name: in.ServiceName, SDL: in.IncomingSDL}}, orchestrator.Options{})
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

func (SingleLegacy) Publish(ctx context.Context, in PublishInput) (PublishOutcome, error) {
	in.Contracts = nil
	out, err := SingleModern{}.Publish(ctx, in)
	if err != nil || out.Kind != PublishReject {
		return out, err
	}
	if in.Force && out.Reason == "CompositionFailure" {
		res, cerr := in.Caps.Orchestrator.ComposeAndValidate(ctx, []orchestrator.Schema{{Name: in.ServiceName, SDL: in.IncomingSDL}}, orchestrator.Options{})
		if cerr != nil {
			return PublishOutcome{}, cerr
		}
		cr := checks.Composition(res)
		var cres checks.CompositionResult
		if r, ok := cr.Result.(checks.CompositionResult); ok {
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

func (SingleLegacy) Delete(ctx context.Context, in DeleteInput) (DeleteOutcome, error) {
	in.Contracts = nil
	return SingleModern{}.Delete(ctx, in)
}
