// Package registry implements the Storage contract of §4.7: atomic,
// transactional persistence of targets, schema versions, checks,
// approvals, contracts, and the SDL store.
package registry

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// TargetRepo exposes the target lookups and pointer updates the publisher
// and purge worker need (§3 "Invariants": latest / latest-composable).
type TargetRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Target, error)
	// LockForUpdate takes the defensive row-level lock on the target row
	// described in §4.7 ("storage performs a defensive row-level lock on
	// the target row inside write transactions"). Must be called inside a
	// transaction.
	LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Target, error)
	UpdatePointers(dbc dbctx.Context, id uuid.UUID, latestVersionID uuid.UUID, latestComposableVersionID *uuid.UUID) error
}

type targetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTargetRepo(db *gorm.DB, baseLog *logger.Logger) TargetRepo {
	return &targetRepo{db: db, log: baseLog.With("repo", "TargetRepo")}
}

func (r *targetRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *targetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Target, error) {
	var t domain.Target
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&t).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *targetRepo) LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Target, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx)
	// sqlite has no FOR UPDATE syntax and serializes writers at the
	// connection level regardless.
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t domain.Target
	err := q.Where("id = ?", id).First(&t).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *targetRepo) UpdatePointers(dbc dbctx.Context, id uuid.UUID, latestVersionID uuid.UUID, latestComposableVersionID *uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("registry: UpdatePointers requires a target id")
	}
	updates := map[string]interface{}{
		"latest_version_id": latestVersionID,
	}
	if latestComposableVersionID != nil {
		updates["latest_composable_version_id"] = *latestComposableVersionID
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Target{}).
		Where("id = ?", id).
		Updates(updates).Error
}
