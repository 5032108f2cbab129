package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gqlregistry/registry-core/internal/artifacts"
	repos "github.com/gqlregistry/registry-core/internal/data/repos/registry"
	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/models"
	"github.com/gqlregistry/registry-core/internal/notifications"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
)

// DeleteRequest is the normalized request for the delete operation (§4.5.4,
// §6 schemaDelete(input)).
type DeleteRequest struct {
	TargetID    string
	ServiceName string
	Author      string
	Commit      string

	// DryRun reports the would-be result (composability, changes) without
	// persisting a new version or publishing artifacts (§6 "dryRun variant").
	DryRun bool

	// CompareToLatest mirrors PublishRequest's flag of the same name: when
	// set, a graphql-error composition failure against the post-delete
	// schema set rejects the delete instead of being accepted.
	CompareToLatest bool
}

// DeleteResult is the delete operation's normalized response.
type DeleteResult struct {
	Kind      models.DeleteKind
	Reason    string
	State     *models.DeleteState
	VersionID string
}

// Delete removes a service from a target, locking the target the same way
// Publish does (§4.5.4 shares publish's mechanics with a DELETE log entry).
func (p *Publisher) Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("%w: invalid target id", registryerrors.ErrInvalidArgument)
	}

	var handle interface{ Release(context.Context) error }
	if !req.DryRun {
		lockStart := time.Now()
		h, err := p.locker.Acquire(ctx, targetID.String())
		if err != nil {
			observability.Current().ObserveLockWait("timeout", time.Since(lockStart))
			return DeleteResult{}, fmt.Errorf("publisher: acquire lock for %s: %w", targetID, err)
		}
		observability.Current().ObserveLockWait("acquired", time.Since(lockStart))
		handle = h
		defer func() {
			if rerr := handle.Release(context.Background()); rerr != nil {
				p.log.Warn("failed to release delete lock", "target_id", targetID, "error", rerr)
			}
		}()
	}

	loaded, err := p.loadContext(ctx, targetID, "")
	if err != nil {
		return DeleteResult{}, err
	}

	model := models.Select(loaded.Project.Type, loaded.Project.LegacyRegistryModel)
	in := models.DeleteInput{
		TargetID:        targetID.String(),
		ServiceName:     req.ServiceName,
		CompareToLatest: req.CompareToLatest,
		Contracts:       contractInputs(loaded.Contracts),
		Context:         loaded.VersionCtx,
		Caps:            p.capabilities(loaded.Project),
	}

	outcome, err := model.Delete(ctx, in)
	if err != nil {
		observability.Current().IncDelete("error")
		return DeleteResult{}, err
	}
	if outcome.Kind != models.DeleteAccept || req.DryRun {
		observability.Current().IncDelete(string(outcome.Kind))
		return DeleteResult{Kind: outcome.Kind, Reason: outcome.Reason, State: outcome.State}, nil
	}

	version, err := p.persistDeletedVersion(ctx, targetID, req, loaded, outcome.State)
	if err != nil {
		observability.Current().IncDelete("error")
		return DeleteResult{}, err
	}

	p.notifier.Emit(ctx, notifications.ChangeEvent{
		TargetID:        targetID.String(),
		OrganizationID:  loaded.Organization.ID.String(),
		ProjectID:       loaded.Project.ID.String(),
		Action:          notifications.ActionDelete,
		ServiceName:     req.ServiceName,
		Changes:         outcome.State.Changes,
		BreakingChanges: outcome.State.BreakingChanges,
		CompositionErrs: compositionErrorMessages(outcome.State.CompositionErrors),
	})

	observability.Current().IncDelete(string(models.DeleteAccept))
	return DeleteResult{Kind: models.DeleteAccept, State: outcome.State, VersionID: version.ID.String()}, nil
}

func (p *Publisher) persistDeletedVersion(ctx context.Context, targetID uuid.UUID, req DeleteRequest, loaded *loadedContext, state *models.DeleteState) (*domain.SchemaVersion, error) {
	dbc := dbctxFrom(ctx)

	var previousID *uuid.UUID
	if loaded.LatestVersion != nil {
		id := loaded.LatestVersion.ID
		previousID = &id
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
		LogEntry: domain.SchemaLog{
			ServiceName: req.ServiceName,
			Author:      req.Author,
			Commit:      req.Commit,
		},
	}

	return p.repos.SchemaVersion.DeleteSchema(dbc, params, func(txc dbctx.Context, version *domain.SchemaVersion) error {
		if p.artifacts == nil {
			return nil
		}
		if state.FullSchemaSDL != "" {
			key := artifacts.Key(targetID.String(), "", artifacts.TypeSDL)
			if err := p.artifacts.Put(txc.Ctx, key, artifacts.TypeSDL, []byte(state.FullSchemaSDL)); err != nil {
				return fmt.Errorf("publisher: republish sdl artifact after delete: %w", err)
			}
		}
		return nil
	})
}
