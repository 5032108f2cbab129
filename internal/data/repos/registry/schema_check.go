package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/inspector"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// SchemaCheckRepo implements the check-record and approval halves of the
// Storage contract (§4.7): createSchemaCheck, getApprovedSchemaChangesForContextId,
// approveFailedSchemaCheck, purgeExpiredSchemaChecks.
type SchemaCheckRepo interface {
	Create(dbc dbctx.Context, check *domain.SchemaCheck) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.SchemaCheck, error)
	GetApprovedChangesForContext(dbc dbctx.Context, targetID uuid.UUID, contextID string) (map[string]inspector.ApprovedChange, error)
	// ApproveFailedCheck promotes every breaking change on a failed check
	// into a schema_change_approval scoped to its context_id (§6
	// approveFailedSchemaCheck), and marks the check manually approved.
	ApproveFailedCheck(dbc dbctx.Context, checkID uuid.UUID, approverID uuid.UUID) (*domain.SchemaCheck, error)
	// PurgeExpired deletes every check with expires_at <= asOf in one
	// transaction and returns the number of rows removed (§4.7, §5
	// "Background workers", §8 I6). Corresponding approvals are untouched.
	PurgeExpired(dbc dbctx.Context, asOf time.Time) (int64, error)
}

type schemaCheckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchemaCheckRepo(db *gorm.DB, baseLog *logger.Logger) SchemaCheckRepo {
	return &schemaCheckRepo{db: db, log: baseLog.With("repo", "SchemaCheckRepo")}
}

func (r *schemaCheckRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *schemaCheckRepo) Create(dbc dbctx.Context, check *domain.SchemaCheck) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(check).Error
}

func (r *schemaCheckRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.SchemaCheck, error) {
	var c domain.SchemaCheck
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&c).Error
	if gorm.ErrRecordNotFound == err {
		return nil, registryerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *schemaCheckRepo) GetApprovedChangesForContext(dbc dbctx.Context, targetID uuid.UUID, contextID string) (map[string]inspector.ApprovedChange, error) {
	out := map[string]inspector.ApprovedChange{}
	if contextID == "" {
		return out, nil
	}
	var rows []domain.SchemaChangeApproval
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("target_id = ? AND context_id = ?", targetID, contextID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SchemaChangeID] = inspector.ApprovedChange{
			ChangeID:   row.SchemaChangeID,
			ApproverID: row.ApprovedByUserID.String(),
			ApprovedAt: row.CreatedAt.Format(time.RFC3339),
		}
	}
	return out, nil
}

func (r *schemaCheckRepo) ApproveFailedCheck(dbc dbctx.Context, checkID uuid.UUID, approverID uuid.UUID) (*domain.SchemaCheck, error) {
	tx := r.tx(dbc)
	check, err := r.GetByID(dbc, checkID)
	if err != nil {
		return nil, err
	}
	if check.ContextID == nil || *check.ContextID == "" {
		return nil, fmt.Errorf("registry: check %s has no context_id to scope approvals to", checkID)
	}

	var breaking []domain.SchemaChange
	if check.BreakingChangesRaw != "" {
		if err := json.Unmarshal([]byte(check.BreakingChangesRaw), &breaking); err != nil {
			return nil, fmt.Errorf("registry: decode breaking_changes for check %s: %w", checkID, err)
		}
	}

	now := time.Now()
	for _, c := range breaking {
		snapshot, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		approval := domain.SchemaChangeApproval{
			TargetID:                check.TargetID,
			ContextID:               *check.ContextID,
			SchemaChangeID:          c.ID,
			SchemaChangeSnapshotRaw: string(snapshot),
			ApprovedByUserID:        approverID,
			CreatedAt:               now,
		}
		if err := tx.WithContext(dbc.Ctx).Create(&approval).Error; err != nil {
			return nil, fmt.Errorf("registry: create approval for change %s: %w", c.ID, err)
		}
	}

	if err := tx.WithContext(dbc.Ctx).
		Model(&domain.SchemaCheck{}).
		Where("id = ?", checkID).
		Updates(map[string]interface{}{
			"is_manually_approved": true,
			"approved_by_user_id":  approverID,
		}).Error; err != nil {
		return nil, err
	}
	check.IsManuallyApproved = true
	check.ApprovedByUserID = &approverID
	return check, nil
}

func (r *schemaCheckRepo) PurgeExpired(dbc dbctx.Context, asOf time.Time) (int64, error) {
	res := r.tx(dbc).WithContext(dbc.Ctx).
		Where("expires_at <= ?", asOf).
		Delete(&domain.SchemaCheck{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
