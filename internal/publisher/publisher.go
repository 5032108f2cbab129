// Package publisher implements the top-level orchestration described in
// §4.6: load context, lock, invoke the right model, persist, publish
// artifacts, fan out notifications. Authorization is delegated entirely to
// an external collaborator upstream (the HTTP layer's
// internal/http/middleware.AuthMiddleware) — the publisher is only ever
// entered once access has already been granted (§4.6 step 1, §1 "out of
// scope: authentication and tenant access control").
package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gqlregistry/registry-core/internal/artifacts"
	"github.com/gqlregistry/registry-core/internal/checks"
	repos "github.com/gqlregistry/registry-core/internal/data/repos/registry"
	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/idempotency"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/lock"
	"github.com/gqlregistry/registry-core/internal/models"
	"github.com/gqlregistry/registry-core/internal/notifications"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// dbctxFrom builds a non-transactional dbctx.Context from a request context;
// repos fall back to the base *gorm.DB when Tx is nil.
func dbctxFrom(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

// OrchestratorFactory selects the Orchestrator variant (and, when the
// project has external composition enabled, wraps it with the HMAC-signed
// HTTP delegate) for a given project (§4.2, §9 "Polymorphism").
type OrchestratorFactory func(project *domain.Project) orchestrator.Orchestrator

// Publisher is the schema registry's top-level entry point (§4.6).
type Publisher struct {
	repos         repos.Repos
	locker        lock.Locker
	idempotency   *idempotency.Cache
	artifacts     artifacts.Store
	notifier      *notifications.Dispatcher
	orchestrators OrchestratorFactory
	policyEngine  checks.PolicyEngine
	usageOracle   inspector.UsageOracle
	log           *logger.Logger

	defaultRetentionDays int
}

// Options configures optional collaborators; unset fields fall back to the
// conservative no-op defaults described in §9 ("capability interfaces").
type Options struct {
	PolicyEngine         checks.PolicyEngine
	UsageOracle          inspector.UsageOracle
	Alerter              notifications.Alerter
	DefaultRetentionDays int
}

func New(
	r repos.Repos,
	locker lock.Locker,
	idem *idempotency.Cache,
	store artifacts.Store,
	orchestrators OrchestratorFactory,
	log *logger.Logger,
	opts Options,
) *Publisher {
	policyEngine := opts.PolicyEngine
	if policyEngine == nil {
		policyEngine = checks.NoPolicyEngine{}
	}
	usageOracle := opts.UsageOracle
	if usageOracle == nil {
		usageOracle = inspector.NoUsageOracle{}
	}
	retention := opts.DefaultRetentionDays
	if retention <= 0 {
		retention = 7
	}
	return &Publisher{
		repos:                r,
		locker:               locker,
		idempotency:          idem,
		artifacts:            store,
		notifier:             notifications.NewDispatcher(opts.Alerter, log),
		orchestrators:        orchestrators,
		policyEngine:         policyEngine,
		usageOracle:          usageOracle,
		log:                  log.With("component", "Publisher"),
		defaultRetentionDays: retention,
	}
}

// loadedContext bundles everything the publisher's context-loading step
// (§4.6 step 4) fetches, plus the resolved entities the model
// and persistence steps need.
type loadedContext struct {
	Target       *domain.Target
	Project      *domain.Project
	Organization *domain.Organization

	LatestVersion           *domain.SchemaVersion
	LatestComposableVersion *domain.SchemaVersion

	VersionCtx models.VersionContext

	Contracts []domain.Contract
}

// loadContext fetches target/project/organization, the two lineage
// pointers' versions and SDL, the base schema, approved changes for
// contextID, and the target's contracts (§4.6 step 4). Each lookup could
// run concurrently; sequential here favors reusing a single dbctx.Context
// issued against one (non-transactional) connection pool handle, the way
// the check/publish paths don't need a shared transaction.
func (p *Publisher) loadContext(ctx context.Context, targetID uuid.UUID, contextID string) (*loadedContext, error) {
	dbc := dbctxFrom(ctx)

	target, err := p.repos.Target.GetByID(dbc, targetID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load target %s: %w", targetID, err)
	}
	project, err := p.repos.Project.GetByID(dbc, target.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load project %s: %w", target.ProjectID, err)
	}
	org, err := p.repos.Organization.GetByID(dbc, project.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load organization %s: %w", project.OrganizationID, err)
	}

	latest, err := p.repos.SchemaVersion.GetMaybeLatestVersion(dbc, targetID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load latest version: %w", err)
	}
	latestComposable, err := p.repos.SchemaVersion.GetMaybeLatestValidVersion(dbc, targetID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load latest-composable version: %w", err)
	}

	var latestSDL, latestComposableSDL, baseSchema string
	if latest != nil {
		baseSchema = latest.BaseSchema
		if latest.CompositeSchemaSDLHash != nil {
			sdl, err := p.repos.SDLStore.GetByHash(dbc, *latest.CompositeSchemaSDLHash)
			if err != nil {
				return nil, fmt.Errorf("publisher: load latest composite SDL: %w", err)
			}
			latestSDL = sdl
		}
	}
	if latestComposable != nil && latestComposable.CompositeSchemaSDLHash != nil {
		sdl, err := p.repos.SDLStore.GetByHash(dbc, *latestComposable.CompositeSchemaSDLHash)
		if err != nil {
			return nil, fmt.Errorf("publisher: load latest-composable SDL: %w", err)
		}
		latestComposableSDL = sdl
	}

	var schemas []models.Service
	if latest != nil {
		logs, err := p.repos.SchemaLog.ActiveForVersion(dbc, latest.ID)
		if err != nil {
			return nil, fmt.Errorf("publisher: load active schemas: %w", err)
		}
		schemas = logsToServices(logs)
	}

	approved, err := p.repos.SchemaCheck.GetApprovedChangesForContext(dbc, targetID, contextID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load approved changes: %w", err)
	}

	contracts, err := p.repos.Contract.ListByTarget(dbc, targetID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load contracts: %w", err)
	}

	return &loadedContext{
		Target:                  target,
		Project:                 project,
		Organization:            org,
		LatestVersion:           latest,
		LatestComposableVersion: latestComposable,
		Contracts:               contracts,
		VersionCtx: models.VersionContext{
			Schemas:             schemas,
			LatestSDL:           latestSDL,
			LatestComposableSDL: latestComposableSDL,
			BaseSchema:          baseSchema,
			ApprovedChanges:     approved,
		},
	}, nil
}

func logsToServices(logs []domain.SchemaLog) []models.Service {
	out := make([]models.Service, 0, len(logs))
	for _, l := range logs {
		svc := models.Service{Name: l.ServiceName}
		if l.SDL != nil {
			svc.SDL = *l.SDL
		}
		if l.ServiceURL != nil {
			svc.URL = *l.ServiceURL
		}
		out = append(out, svc)
	}
	return out
}

// resolveContextID implements §4.6 step 5: explicit input wins; otherwise
// synthesize "{repo}#{pr_number}" from integration metadata when present.
// The result must be 1..200 characters.
func resolveContextID(explicit string, integration map[string]string) (string, error) {
	contextID := strings.TrimSpace(explicit)
	if contextID == "" && integration != nil {
		repo := strings.TrimSpace(integration["repo"])
		pr := strings.TrimSpace(integration["pr_number"])
		if repo != "" && pr != "" {
			contextID = fmt.Sprintf("%s#%s", repo, pr)
		}
	}
	if contextID == "" {
		return "", nil
	}
	if len(contextID) > 200 {
		return "", fmt.Errorf("%w: context_id exceeds 200 characters", registryerrors.ErrInvalidArgument)
	}
	return contextID, nil
}

func (p *Publisher) capabilities(project *domain.Project) models.Capabilities {
	return models.Capabilities{
		Orchestrator: p.orchestrators(project),
		PolicyEngine: p.policyEngine,
		UsageOracle:  p.usageOracle,
	}
}

func contractInputs(contracts []domain.Contract) []orchestrator.ContractInput {
	out := make([]orchestrator.ContractInput, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, orchestrator.ContractInput{
			ID: c.ID.String(),
			Filter: orchestrator.ContractFilter{
				IncludeTags: []string(c.IncludeTags),
				ExcludeTags: []string(c.ExcludeTags),
			},
		})
	}
	return out
}

func contractByStringID(contracts []domain.Contract, id string) (domain.Contract, bool) {
	for _, c := range contracts {
		if c.ID.String() == id {
			return c, true
		}
	}
	return domain.Contract{}, false
}

