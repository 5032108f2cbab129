package registry

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// ProjectRepo looks up the project owning a target, and implements the
// configuration-surface updates (§6: updateProjectRegistryModel,
// enableExternalSchemaComposition, updateNativeFederation).
type ProjectRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Project, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&p).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// OrganizationRepo looks up the organization owning a project.
type OrganizationRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Organization, error)
}

type organizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Organization, error) {
	var o domain.Organization
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&o).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
