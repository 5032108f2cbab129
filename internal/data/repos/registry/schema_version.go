package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// ContractVersionInput is one contract's independent artifact for the
// version being created (§3 "Schema Version Contract").
type ContractVersionInput struct {
	ContractID        uuid.UUID
	IsComposable      bool
	CompositeSDL      string
	SupergraphSDL     string
	CompositionErrors []domain.CompositionError
	Changes           []domain.SchemaChange
}

// CreateVersionParams is everything CreateVersion needs to append one new
// schema_version row and its dependent rows inside a single transaction
// (§4.6 step 7 "Publish accept"/"Delete accept").
type CreateVersionParams struct {
	TargetID                uuid.UUID
	PreviousSchemaVersionID *uuid.UUID
	IsComposable            bool
	BaseSchema              string
	CompositeSDL            string
	SupergraphSDL           string
	Tags                    []string
	CompositionErrors       []domain.CompositionError
	Changes                 []domain.SchemaChange

	// LogEntry is the incoming PUSH or DELETE entry this version records;
	// ID/TargetID/CreatedAt are assigned by CreateVersion.
	LogEntry domain.SchemaLog

	Contracts []ContractVersionInput
}

// SchemaVersionRepo implements the schema_version half of the Storage
// contract (§4.7): createSchemaVersion(...,actionFn), deleteSchema(...,actionFn)
// (which shares the same mechanics with a DELETE log entry),
// getMaybeLatestVersion, getMaybeLatestValidVersion, getLatestSchemas.
type SchemaVersionRepo interface {
	// CreateVersion opens a transaction, locks the target row, appends the
	// log entry, derives the new active log set, writes the version (and
	// its changes and per-contract rows), invokes actionFn with the
	// transaction-scoped dbctx.Context and the new version, then advances
	// the target's latest/latest-composable pointers. actionFn failing
	// rolls back everything (§4.6 step 7e).
	CreateVersion(dbc dbctx.Context, params CreateVersionParams, actionFn func(dbctx.Context, *domain.SchemaVersion) error) (*domain.SchemaVersion, error)

	// DeleteSchema shares CreateVersion's mechanics; params.LogEntry.Action
	// must be SchemaLogActionDelete (§4.5.4, §4.7 "same mechanics, with
	// DELETE log entry").
	DeleteSchema(dbc dbctx.Context, params CreateVersionParams, actionFn func(dbctx.Context, *domain.SchemaVersion) error) (*domain.SchemaVersion, error)

	GetMaybeLatestVersion(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error)
	GetMaybeLatestValidVersion(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error)

	// GetLatestSchemas returns the active log set (service entries) as of
	// the target's latest version, or its latest-composable version when
	// onlyComposable is true.
	GetLatestSchemas(dbc dbctx.Context, targetID uuid.UUID, onlyComposable bool) ([]domain.SchemaLog, error)

	// GetByID fetches one version by id (admin updateVersionStatus, §6).
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.SchemaVersion, error)

	// SetComposable flips a past version's is_composable flag (§6
	// updateVersionStatus is admin-only; enforcing that is the HTTP layer's
	// job, not storage's).
	SetComposable(dbc dbctx.Context, versionID uuid.UUID, composable bool) error

	// RecomputeLatestComposable walks targetID's version chain from latest
	// back through PreviousSchemaVersionID until it finds one with
	// is_composable = true, and updates the target's pointer to match
	// (§3 Invariants: "at most one version <= latest is latest-composable,
	// its nearest ancestor with is_composable = true"). Returns the new
	// latest-composable version, or nil if none exists.
	RecomputeLatestComposable(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error)
}

type schemaVersionRepo struct {
	db           *gorm.DB
	log          *logger.Logger
	targets      TargetRepo
	schemaLogs   SchemaLogRepo
	sdlStore     SDLStoreRepo
	contracts    ContractRepo
}

func NewSchemaVersionRepo(db *gorm.DB, baseLog *logger.Logger, targets TargetRepo, schemaLogs SchemaLogRepo, sdlStore SDLStoreRepo, contracts ContractRepo) SchemaVersionRepo {
	return &schemaVersionRepo{
		db:         db,
		log:        baseLog.With("repo", "SchemaVersionRepo"),
		targets:    targets,
		schemaLogs: schemaLogs,
		sdlStore:   sdlStore,
		contracts:  contracts,
	}
}

func (r *schemaVersionRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *schemaVersionRepo) CreateVersion(dbc dbctx.Context, params CreateVersionParams, actionFn func(dbctx.Context, *domain.SchemaVersion) error) (*domain.SchemaVersion, error) {
	if params.TargetID == uuid.Nil {
		return nil, fmt.Errorf("registry: CreateVersion requires a target id")
	}

	var created *domain.SchemaVersion
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}

		if _, err := r.targets.LockForUpdate(txc, params.TargetID); err != nil {
			return fmt.Errorf("registry: lock target %s: %w", params.TargetID, err)
		}

		logEntry := params.LogEntry
		logEntry.ID = uuid.New()
		logEntry.TargetID = params.TargetID
		logEntry.CreatedAt = time.Now()
		if err := r.schemaLogs.Create(txc, &logEntry); err != nil {
			return fmt.Errorf("registry: create schema_log entry: %w", err)
		}

		var previousActive []domain.SchemaLog
		if params.PreviousSchemaVersionID != nil {
			active, err := r.schemaLogs.ActiveForVersion(txc, *params.PreviousSchemaVersionID)
			if err != nil {
				return fmt.Errorf("registry: load active logs for previous version: %w", err)
			}
			previousActive = active
		}
		activeSet := domain.ActiveLogSet(previousActive, logEntry)

		version := domain.SchemaVersion{
			ID:                      uuid.New(),
			TargetID:                params.TargetID,
			CreatedAt:               time.Now(),
			IsComposable:            params.IsComposable,
			PreviousSchemaVersionID: params.PreviousSchemaVersionID,
			BaseSchema:              params.BaseSchema,
			Tags:                    domain.StringSlice(params.Tags),
		}
		if params.CompositeSDL != "" {
			hash, err := r.sdlStore.Put(txc, params.CompositeSDL)
			if err != nil {
				return fmt.Errorf("registry: store composite SDL: %w", err)
			}
			version.CompositeSchemaSDLHash = &hash
		}
		if params.SupergraphSDL != "" {
			hash, err := r.sdlStore.Put(txc, params.SupergraphSDL)
			if err != nil {
				return fmt.Errorf("registry: store supergraph SDL: %w", err)
			}
			version.SupergraphSDLHash = &hash
		}
		if len(params.CompositionErrors) > 0 {
			raw, err := json.Marshal(params.CompositionErrors)
			if err != nil {
				return err
			}
			version.SchemaCompositionErrorsRaw = string(raw)
		}

		if err := txx.WithContext(dbc.Ctx).Create(&version).Error; err != nil {
			return fmt.Errorf("registry: create schema_version: %w", err)
		}

		logIDs := make([]uuid.UUID, 0, len(activeSet))
		for _, l := range activeSet {
			logIDs = append(logIDs, l.ID)
		}
		if err := r.schemaLogs.LinkToVersion(txc, version.ID, logIDs); err != nil {
			return fmt.Errorf("registry: link active logs to version: %w", err)
		}

		for _, c := range params.Changes {
			row := domain.NewSchemaVersionChange(version.ID, c)
			if err := txx.WithContext(dbc.Ctx).Create(&row).Error; err != nil {
				return fmt.Errorf("registry: create schema_version_change %s: %w", c.ID, err)
			}
		}

		for _, contractIn := range params.Contracts {
			svc := domain.SchemaVersionContract{
				ID:              uuid.New(),
				SchemaVersionID: version.ID,
				ContractID:      contractIn.ContractID,
				IsComposable:    contractIn.IsComposable,
				CreatedAt:       time.Now(),
			}
			if prev, err := r.contracts.LatestValidForContract(txc, contractIn.ContractID); err == nil && prev != nil {
				prevID := prev.ID
				svc.LastSchemaVersionContractID = &prevID
			} else if err != nil && err != registryerrors.ErrNotFound {
				return fmt.Errorf("registry: load previous contract version for %s: %w", contractIn.ContractID, err)
			}
			if contractIn.CompositeSDL != "" {
				hash, err := r.sdlStore.Put(txc, contractIn.CompositeSDL)
				if err != nil {
					return err
				}
				svc.CompositeSchemaSDLHash = &hash
			}
			if contractIn.SupergraphSDL != "" {
				hash, err := r.sdlStore.Put(txc, contractIn.SupergraphSDL)
				if err != nil {
					return err
				}
				svc.SupergraphSDLHash = &hash
			}
			if len(contractIn.CompositionErrors) > 0 {
				raw, err := json.Marshal(contractIn.CompositionErrors)
				if err != nil {
					return err
				}
				svc.SchemaCompositionErrorsRaw = string(raw)
			}
			if err := r.contracts.CreateVersionContract(txc, &svc); err != nil {
				return fmt.Errorf("registry: create schema_version_contract for %s: %w", contractIn.ContractID, err)
			}
			for _, c := range contractIn.Changes {
				row := domain.NewSchemaVersionContractChange(svc.ID, c)
				if err := txx.WithContext(dbc.Ctx).Create(&row).Error; err != nil {
					return fmt.Errorf("registry: create schema_version_contract_change %s: %w", c.ID, err)
				}
			}
		}

		if actionFn != nil {
			if err := actionFn(txc, &version); err != nil {
				return fmt.Errorf("registry: actionFn: %w", err)
			}
		}

		var latestComposableID *uuid.UUID
		if version.IsComposable {
			id := version.ID
			latestComposableID = &id
		}
		if err := r.targets.UpdatePointers(txc, params.TargetID, version.ID, latestComposableID); err != nil {
			return fmt.Errorf("registry: update target pointers: %w", err)
		}

		created = &version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *schemaVersionRepo) DeleteSchema(dbc dbctx.Context, params CreateVersionParams, actionFn func(dbctx.Context, *domain.SchemaVersion) error) (*domain.SchemaVersion, error) {
	params.LogEntry.Action = domain.SchemaLogActionDelete
	return r.CreateVersion(dbc, params, actionFn)
}

func (r *schemaVersionRepo) GetMaybeLatestVersion(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error) {
	target, err := r.targets.GetByID(dbc, targetID)
	if err != nil {
		return nil, err
	}
	if target.LatestVersionID == nil {
		return nil, nil
	}
	return r.getByID(dbc, *target.LatestVersionID)
}

func (r *schemaVersionRepo) GetMaybeLatestValidVersion(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error) {
	target, err := r.targets.GetByID(dbc, targetID)
	if err != nil {
		return nil, err
	}
	if target.LatestComposableVersionID == nil {
		return nil, nil
	}
	return r.getByID(dbc, *target.LatestComposableVersionID)
}

func (r *schemaVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.SchemaVersion, error) {
	return r.getByID(dbc, id)
}

func (r *schemaVersionRepo) SetComposable(dbc dbctx.Context, versionID uuid.UUID, composable bool) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.SchemaVersion{}).
		Where("id = ?", versionID).
		Update("is_composable", composable).Error
}

func (r *schemaVersionRepo) RecomputeLatestComposable(dbc dbctx.Context, targetID uuid.UUID) (*domain.SchemaVersion, error) {
	target, err := r.targets.GetByID(dbc, targetID)
	if err != nil {
		return nil, err
	}
	if target.LatestVersionID == nil {
		return nil, nil
	}

	var found *domain.SchemaVersion
	cursor := target.LatestVersionID
	for cursor != nil {
		v, err := r.getByID(dbc, *cursor)
		if err != nil {
			return nil, err
		}
		if v.IsComposable {
			found = v
			break
		}
		cursor = v.PreviousSchemaVersionID
	}

	var newPointer *uuid.UUID
	if found != nil {
		id := found.ID
		newPointer = &id
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Target{}).
		Where("id = ?", targetID).
		Update("latest_composable_version_id", newPointer).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func (r *schemaVersionRepo) getByID(dbc dbctx.Context, id uuid.UUID) (*domain.SchemaVersion, error) {
	var v domain.SchemaVersion
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&v).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *schemaVersionRepo) GetLatestSchemas(dbc dbctx.Context, targetID uuid.UUID, onlyComposable bool) ([]domain.SchemaLog, error) {
	var version *domain.SchemaVersion
	var err error
	if onlyComposable {
		version, err = r.GetMaybeLatestValidVersion(dbc, targetID)
	} else {
		version, err = r.GetMaybeLatestVersion(dbc, targetID)
	}
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, nil
	}
	return r.schemaLogs.ActiveForVersion(dbc, version.ID)
}
