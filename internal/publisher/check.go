package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/models"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
)

// CheckRequest is the normalized request for the check operation (§4.6,
// §6 schemaCheck(input)).
type CheckRequest struct {
	TargetID    string
	ServiceName string
	IncomingSDL string
	Metadata    string

	CompareToPreviousComposableVersion bool
	FilterOutFederationChanges         bool
	Force                              bool

	ContextID           string
	IntegrationMetadata map[string]string
}

// Check runs the check operation read-only (§5: checks take no lock) and
// always persists a schema_check row recording the outcome (§4.6 step 7
// "always creates a schema_check row").
func (p *Publisher) Check(ctx context.Context, req CheckRequest) (models.CheckOutcome, *domain.SchemaCheck, error) {
	start := time.Now()

	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return models.CheckOutcome{}, nil, fmt.Errorf("%w: invalid target id", registryerrors.ErrInvalidArgument)
	}
	contextID, err := resolveContextID(req.ContextID, req.IntegrationMetadata)
	if err != nil {
		return models.CheckOutcome{}, nil, err
	}

	loaded, err := p.loadContext(ctx, targetID, contextID)
	if err != nil {
		return models.CheckOutcome{}, nil, err
	}

	model := models.Select(loaded.Project.Type, loaded.Project.LegacyRegistryModel)
	in := models.CheckInput{
		TargetID:                           targetID.String(),
		IncomingSDL:                        req.IncomingSDL,
		ServiceName:                        req.ServiceName,
		Metadata:                           req.Metadata,
		CompareToPreviousComposableVersion: req.CompareToPreviousComposableVersion,
		FilterOutFederationChanges:         req.FilterOutFederationChanges,
		Force:                              req.Force,
		Contracts:                          contractInputs(loaded.Contracts),
		Context:                            loaded.VersionCtx,
		Caps:                               p.capabilities(loaded.Project),
	}

	outcome, err := model.Check(ctx, in)
	if err != nil {
		return models.CheckOutcome{}, nil, err
	}

	dbc := dbctxFrom(ctx)
	record, recErr := p.recordCheck(dbc, targetID, contextID, req, loaded, outcome)
	if recErr != nil {
		p.log.Error("failed to persist schema_check", "target_id", targetID, "error", recErr)
	}

	result := string(outcome.Kind)
	observability.Current().ObserveCheck(string(loaded.Project.Type), result, time.Since(start))

	return outcome, record, nil
}

func (p *Publisher) recordCheck(dbc dbctx.Context, targetID uuid.UUID, contextID string, req CheckRequest, loaded *loadedContext, outcome models.CheckOutcome) (*domain.SchemaCheck, error) {
	incomingHash, err := p.repos.SDLStore.Put(dbc, req.IncomingSDL)
	if err != nil {
		return nil, fmt.Errorf("publisher: store incoming sdl: %w", err)
	}

	retention := loaded.Target.RetentionDays
	if retention <= 0 {
		retention = p.defaultRetentionDays
	}

	check := domain.SchemaCheck{
		ID:            uuid.New(),
		TargetID:      targetID,
		SchemaSDLHash: incomingHash,
		IsSuccess:     outcome.Kind == models.CheckSuccess,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().AddDate(0, 0, retention),
	}
	if baseline := loaded.LatestVersion; baseline != nil {
		if req.CompareToPreviousComposableVersion {
			if c := loaded.LatestComposableVersion; c != nil {
				id := c.ID
				check.SchemaVersionID = &id
			}
		} else {
			id := baseline.ID
			check.SchemaVersionID = &id
		}
	}
	if contextID != "" {
		check.ContextID = &contextID
	}
	if len(req.IntegrationMetadata) > 0 {
		raw, err := json.Marshal(req.IntegrationMetadata)
		if err == nil {
			check.IntegrationMetadataRaw = string(raw)
		}
	}

	if outcome.Kind == models.CheckFailure {
		if raw, err := json.Marshal(outcome.FailureReasons); err == nil {
			check.CompositionErrorsRaw = string(raw)
		}
	} else if outcome.State != nil {
		state := outcome.State
		breaking := make([]domain.SchemaChange, 0, len(state.SchemaChanges))
		safe := make([]domain.SchemaChange, 0, len(state.SchemaChanges))
		for _, c := range state.SchemaChanges {
			if c.IsBreaking() {
				breaking = append(breaking, c)
			} else {
				safe = append(safe, c)
			}
		}
		if raw, err := json.Marshal(breaking); err == nil {
			check.BreakingChangesRaw = string(raw)
		}
		if raw, err := json.Marshal(safe); err == nil {
			check.SafeChangesRaw = string(raw)
		}
		if raw, err := json.Marshal(state.PolicyWarnings); err == nil {
			check.PolicyWarningsRaw = string(raw)
		}
		if state.Composition.SDL != "" {
			if hash, err := p.repos.SDLStore.Put(dbc, state.Composition.SDL); err == nil {
				check.CompositeSchemaSDLHash = &hash
			}
		}
		if state.Composition.Supergraph != "" {
			if hash, err := p.repos.SDLStore.Put(dbc, state.Composition.Supergraph); err == nil {
				check.SupergraphSDLHash = &hash
			}
		}
	}

	if err := p.repos.SchemaCheck.Create(dbc, &check); err != nil {
		return nil, err
	}
	return &check, nil
}
