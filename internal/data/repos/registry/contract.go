package registry

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// ContractRepo owns the target's named contracts (§3 "Contract") and the
// per-contract per-version artifacts chained by
// last_schema_version_contract_id (§3 "Schema Version Contract").
type ContractRepo interface {
	Create(dbc dbctx.Context, c *domain.Contract) error
	ListByTarget(dbc dbctx.Context, targetID uuid.UUID) ([]domain.Contract, error)
	// LatestValidForContract returns the most recent successfully-composed
	// schema_version_contract row for contractID, or registryerrors.ErrNotFound
	// if none exists yet.
	LatestValidForContract(dbc dbctx.Context, contractID uuid.UUID) (*domain.SchemaVersionContract, error)
	CreateVersionContract(dbc dbctx.Context, row *domain.SchemaVersionContract) error
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return &contractRepo{db: db, log: baseLog.With("repo", "ContractRepo")}
}

func (r *contractRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *contractRepo) Create(dbc dbctx.Context, c *domain.Contract) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(c).Error
}

func (r *contractRepo) ListByTarget(dbc dbctx.Context, targetID uuid.UUID) ([]domain.Contract, error) {
	var out []domain.Contract
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("target_id = ?", targetID).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contractRepo) LatestValidForContract(dbc dbctx.Context, contractID uuid.UUID) (*domain.SchemaVersionContract, error) {
	var row domain.SchemaVersionContract
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("contract_id = ? AND is_composable = ?", contractID, true).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, registryerrors.ErrNotFound
	}
	return &row, nil
}

func (r *contractRepo) CreateVersionContract(dbc dbctx.Context, row *domain.SchemaVersionContract) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error
}
