package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/models"
	"github.com/gqlregistry/registry-core/internal/notifications"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	repos "github.com/gqlregistry/registry-core/internal/data/repos/registry"
	"github.com/gqlregistry/registry-core/internal/artifacts"
)

// PublishRequest is the normalized request for the publish operation (§4.6,
// §6 schemaPublish(input)).
type PublishRequest struct {
	TargetID    string
	ServiceName string
	ServiceURL  string
	IncomingSDL string
	Metadata    string
	Author      string
	Commit      string

	CompareToLatest bool
	Force           bool
}

// PublishResult is the publish operation's normalized response.
type PublishResult struct {
	Kind      models.PublishKind
	Reason    string
	State     *models.PublishState
	VersionID string
}

func checksumOf(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Publish acquires the per-target lock, coalesces concurrent identical
// requests via the idempotency cache, dispatches to the project's model,
// and on acceptance persists the new schema version, publishes its
// artifacts, and fans out a notification (§4.6 steps 2-8).
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	overallStart := time.Now()

	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("%w: invalid target id", registryerrors.ErrInvalidArgument)
	}

	lockStart := time.Now()
	handle, err := p.locker.Acquire(ctx, targetID.String())
	if err != nil {
		observability.Current().ObserveLockWait("timeout", time.Since(lockStart))
		return PublishResult{}, fmt.Errorf("publisher: acquire lock for %s: %w", targetID, err)
	}
	observability.Current().ObserveLockWait("acquired", time.Since(lockStart))
	defer func() {
		if rerr := handle.Release(context.Background()); rerr != nil {
			p.log.Warn("failed to release publish lock", "target_id", targetID, "error", rerr)
		}
	}()

	checksum := checksumOf("publish", req.TargetID, req.ServiceName, req.ServiceURL, req.IncomingSDL, req.Metadata)

	var projectType domain.ProjectType
	raw, hit, err := p.idempotency.Do(ctx, checksum, func(ctx context.Context) ([]byte, error) {
		outcome, loaded, runErr := p.runPublish(ctx, targetID, req)
		if runErr != nil {
			return nil, runErr
		}
		projectType = loaded.Project.Type
		return json.Marshal(outcome)
	})
	if hit {
		observability.Current().IncIdempotencyHit()
	} else {
		observability.Current().IncIdempotencyMiss()
	}
	if err != nil {
		return PublishResult{}, err
	}

	var result PublishResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return PublishResult{}, fmt.Errorf("publisher: decode publish result: %w", err)
	}

	observability.Current().ObservePublish(string(projectType), string(result.Kind), time.Since(overallStart))
	return result, nil
}

// runPublish executes the actual publish logic once per idempotency
// checksum; concurrent identical requests within the TTL window observe
// this call's cached result instead of re-running it (§4.6 step 3).
func (p *Publisher) runPublish(ctx context.Context, targetID uuid.UUID, req PublishRequest) (PublishResult, *loadedContext, error) {
	loaded, err := p.loadContext(ctx, targetID, "")
	if err != nil {
		return PublishResult{}, nil, err
	}

	model := models.Select(loaded.Project.Type, loaded.Project.LegacyRegistryModel)
	in := models.PublishInput{
		TargetID:        targetID.String(),
		IncomingSDL:     req.IncomingSDL,
		ServiceName:     req.ServiceName,
		ServiceURL:      req.ServiceURL,
		Metadata:        req.Metadata,
		CompareToLatest: req.CompareToLatest,
		Force:           req.Force,
		Contracts:       contractInputs(loaded.Contracts),
		Context:         loaded.VersionCtx,
		Caps:            p.capabilities(loaded.Project),
	}

	outcome, err := model.Publish(ctx, in)
	if err != nil {
		return PublishResult{}, loaded, err
	}
	if outcome.Kind != models.PublishAccept {
		return PublishResult{Kind: outcome.Kind, Reason: outcome.Reason}, loaded, nil
	}

	version, err := p.persistPublishedVersion(ctx, targetID, req, loaded, outcome.State)
	if err != nil {
		return PublishResult{}, loaded, err
	}

	p.notifier.Emit(ctx, notifications.ChangeEvent{
		TargetID:        targetID.String(),
		OrganizationID:  loaded.Organization.ID.String(),
		ProjectID:       loaded.Project.ID.String(),
		Action:          notifications.ActionPublish,
		ServiceName:     req.ServiceName,
		Changes:         outcome.State.Changes,
		BreakingChanges: outcome.State.BreakingChanges,
		CompositionErrs: compositionErrorMessages(outcome.State.CompositionErrors),
	})

	return PublishResult{Kind: models.PublishAccept, State: outcome.State, VersionID: version.ID.String()}, loaded, nil
}

func (p *Publisher) persistPublishedVersion(ctx context.Context, targetID uuid.UUID, req PublishRequest, loaded *loadedContext, state *models.PublishState) (*domain.SchemaVersion, error) {
	dbc := dbctxFrom(ctx)

	var previousID *uuid.UUID
	if loaded.LatestVersion != nil {
		id := loaded.LatestVersion.ID
		previousID = &id
	}

	logEntry := domain.SchemaLog{
		Action:      domain.SchemaLogActionPush,
		ServiceName: req.ServiceName,
		SDL:         &req.IncomingSDL,
		Author:      req.Author,
		Commit:      req.Commit,
	}
	if req.ServiceURL != "" {
		logEntry.ServiceURL = &req.ServiceURL
	}
	if req.Metadata != "" {
		logEntry.Metadata = datatypes.JSON([]byte(req.Metadata))
	}

	params := repos.CreateVersionParams{
		TargetID:                targetID,
		PreviousSchemaVersionID: previousID,
		IsComposable:            state.Composable,
		BaseSchema:              loaded.VersionCtx.BaseSchema,
		CompositeSDL:            state.FullSchemaSDL,
		SupergraphSDL:           state.Supergraph,
		Tags:                    state.Tags,
		CompositionErrors:       toDomainCompositionErrors(state.CompositionErrors),
		Changes:                 state.Changes,
		LogEntry:                logEntry,
		Contracts:               toContractVersionInputs(loaded.Contracts, state.Contracts),
	}

	return p.repos.SchemaVersion.CreateVersion(dbc, params, func(txc dbctx.Context, version *domain.SchemaVersion) error {
		return p.publishArtifacts(txc.Ctx, targetID, loaded, state, version)
	})
}

func (p *Publisher) publishArtifacts(ctx context.Context, targetID uuid.UUID, loaded *loadedContext, state *models.PublishState, version *domain.SchemaVersion) error {
	if p.artifacts == nil {
		return nil
	}
	if state.FullSchemaSDL != "" {
		if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), "", artifacts.TypeSDL), artifacts.TypeSDL, []byte(state.FullSchemaSDL)); err != nil {
			return fmt.Errorf("publisher: publish sdl artifact: %w", err)
		}
	}
	if state.Supergraph != "" {
		if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), "", artifacts.TypeSupergraph), artifacts.TypeSupergraph, []byte(state.Supergraph)); err != nil {
			return fmt.Errorf("publisher: publish supergraph artifact: %w", err)
		}
	}
	if raw, err := json.Marshal(loaded.VersionCtx.Schemas); err == nil {
		if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), "", artifacts.TypeServices), artifacts.TypeServices, raw); err != nil {
			return fmt.Errorf("publisher: publish services artifact: %w", err)
		}
	}
	metadata := map[string]any{
		"version_id":    version.ID.String(),
		"is_composable": version.IsComposable,
		"tags":          state.Tags,
	}
	if raw, err := json.Marshal(metadata); err == nil {
		if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), "", artifacts.TypeMetadata), artifacts.TypeMetadata, raw); err != nil {
			return fmt.Errorf("publisher: publish metadata artifact: %w", err)
		}
	}

	for _, cr := range state.Contracts {
		contract, ok := contractByStringID(loaded.Contracts, cr.ID)
		if !ok {
			continue
		}
		if cr.SDL != "" {
			if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), contract.Name, artifacts.TypeSDL), artifacts.TypeSDL, []byte(cr.SDL)); err != nil {
				return fmt.Errorf("publisher: publish contract %s sdl artifact: %w", contract.Name, err)
			}
		}
		if cr.Supergraph != "" {
			if err := p.artifacts.Put(ctx, artifacts.Key(targetID.String(), contract.Name, artifacts.TypeSupergraph), artifacts.TypeSupergraph, []byte(cr.Supergraph)); err != nil {
				return fmt.Errorf("publisher: publish contract %s supergraph artifact: %w", contract.Name, err)
			}
		}
	}
	return nil
}

func toDomainCompositionErrors(errs []orchestrator.CompositionError) []domain.CompositionError {
	out := make([]domain.CompositionError, 0, len(errs))
	for _, e := range errs {
		out = append(out, domain.CompositionError{Message: e.Message, Source: string(e.Source)})
	}
	return out
}

func compositionErrorMessages(errs []orchestrator.CompositionError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}

func toContractVersionInputs(contracts []domain.Contract, results []orchestrator.ContractResult) []repos.ContractVersionInput {
	out := make([]repos.ContractVersionInput, 0, len(results))
	for _, cr := range results {
		contract, ok := contractByStringID(contracts, cr.ID)
		if !ok {
			continue
		}
		out = append(out, repos.ContractVersionInput{
			ContractID:        contract.ID,
			IsComposable:      len(cr.Errors) == 0,
			CompositeSDL:      cr.SDL,
			SupergraphSDL:     cr.Supergraph,
			CompositionErrors: toDomainCompositionErrors(cr.Errors),
		})
	}
	return out
}
