package publisher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gqlregistry/registry-core/internal/artifacts"
	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
)

// ApproveFailedSchemaCheck promotes every breaking change on a failed check
// into a context-scoped approval and marks the check manually approved
// (§6 approveFailedSchemaCheck).
func (p *Publisher) ApproveFailedSchemaCheck(ctx context.Context, checkID, approverID string) (*domain.SchemaCheck, error) {
	checkUUID, err := uuid.Parse(checkID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid check id", registryerrors.ErrInvalidArgument)
	}
	approverUUID, err := uuid.Parse(approverID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid approver id", registryerrors.ErrInvalidArgument)
	}
	return p.repos.SchemaCheck.ApproveFailedCheck(dbctxFrom(ctx), checkUUID, approverUUID)
}

// UpdateVersionStatus flips a past version's is_composable flag, recomputes
// the target's latest-composable pointer, and, when the pointer moved,
// republishes that version's CDN artifacts (§6 updateVersionStatus).
func (p *Publisher) UpdateVersionStatus(ctx context.Context, versionID string, valid bool) (*domain.SchemaVersion, error) {
	versionUUID, err := uuid.Parse(versionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version id", registryerrors.ErrInvalidArgument)
	}
	dbc := dbctxFrom(ctx)

	version, err := p.repos.SchemaVersion.GetByID(dbc, versionUUID)
	if err != nil {
		return nil, err
	}
	prevComposable, err := p.repos.SchemaVersion.GetMaybeLatestValidVersion(dbc, version.TargetID)
	if err != nil {
		return nil, err
	}
	var before uuid.UUID
	if prevComposable != nil {
		before = prevComposable.ID
	}
	if err := p.repos.SchemaVersion.SetComposable(dbc, versionUUID, valid); err != nil {
		return nil, err
	}

	newComposable, err := p.repos.SchemaVersion.RecomputeLatestComposable(dbc, version.TargetID)
	if err != nil {
		return nil, err
	}

	if p.artifacts != nil && newComposable != nil && newComposable.ID != before {
		if err := p.republishComposableArtifacts(ctx, version.TargetID, newComposable); err != nil {
			p.log.Warn("failed to republish artifacts after version status change", "version_id", newComposable.ID, "error", err)
		}
	}

	version.IsComposable = valid
	return version, nil
}

func (p *Publisher) republishComposableArtifacts(ctx context.Context, targetID uuid.UUID, version *domain.SchemaVersion) error {
	dbc := dbctxFrom(ctx)
	if version.CompositeSchemaSDLHash != nil {
		sdl, err := p.repos.SDLStore.GetByHash(dbc, *version.CompositeSchemaSDLHash)
		if err != nil {
			return err
		}
		key := artifacts.Key(targetID.String(), "", artifacts.TypeSDL)
		if err := p.artifacts.Put(ctx, key, artifacts.TypeSDL, []byte(sdl)); err != nil {
			return err
		}
	}
	if version.SupergraphSDLHash != nil {
		sdl, err := p.repos.SDLStore.GetByHash(dbc, *version.SupergraphSDLHash)
		if err != nil {
			return err
		}
		key := artifacts.Key(targetID.String(), "", artifacts.TypeSupergraph)
		if err := p.artifacts.Put(ctx, key, artifacts.TypeSupergraph, []byte(sdl)); err != nil {
			return err
		}
	}
	return nil
}

// CreateContract registers a new named tag-filtered view of a target (§6
// createContract).
func (p *Publisher) CreateContract(ctx context.Context, targetID, name string, includeTags, excludeTags []string, removeUnreachable bool) (*domain.Contract, error) {
	targetUUID, err := uuid.Parse(targetID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid target id", registryerrors.ErrInvalidArgument)
	}
	contract := domain.Contract{
		ID:          uuid.New(),
		TargetID:    targetUUID,
		Name:        name,
		IncludeTags: domain.StringSlice(includeTags),
		ExcludeTags: domain.StringSlice(excludeTags),
		RemoveUnreachableTypesFromPublicAPISchema: removeUnreachable,
	}
	if err := p.repos.Contract.Create(dbctxFrom(ctx), &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

// UpdateProjectRegistryModel flips a project's legacy-vs-modern dispatch
// flag (§6 updateProjectRegistryModel).
func (p *Publisher) UpdateProjectRegistryModel(ctx context.Context, projectID string, legacy bool) error {
	projectUUID, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", registryerrors.ErrInvalidArgument)
	}
	return p.repos.Project.UpdateFields(dbctxFrom(ctx), projectUUID, map[string]interface{}{
		"legacy_registry_model": legacy,
	})
}

// EnableExternalSchemaComposition configures a project to delegate
// composeAndValidate to a user HTTP endpoint (§6, §4.2).
func (p *Publisher) EnableExternalSchemaComposition(ctx context.Context, projectID, endpoint, secret string) error {
	projectUUID, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", registryerrors.ErrInvalidArgument)
	}
	return p.repos.Project.UpdateFields(dbctxFrom(ctx), projectUUID, map[string]interface{}{
		"external_composition_enabled": true,
		"external_composition_url":     endpoint,
		"external_composition_secret":  secret,
	})
}

// UpdateNativeFederation sets a project's native_federation flag (§6, §4.2).
// The flag only changes the composition type sent to an external composer;
// in-process composition is the same either way.
func (p *Publisher) UpdateNativeFederation(ctx context.Context, projectID string, native bool) error {
	projectUUID, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", registryerrors.ErrInvalidArgument)
	}
	return p.repos.Project.UpdateFields(dbctxFrom(ctx), projectUUID, map[string]interface{}{
		"native_federation": native,
	})
}

