package registry

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// SchemaLogRepo manages the append-only schema_log table and the
// schema_version_to_log join that records, for each version, which log
// entries are active (§3 "Schema Log Entry", "active log entries").
type SchemaLogRepo interface {
	Create(dbc dbctx.Context, entry *domain.SchemaLog) error
	// ActiveForVersion returns the log entries linked to versionID via
	// schema_version_to_log, in no particular order (callers apply
	// ActiveLogSet semantics when deriving the next version's set).
	ActiveForVersion(dbc dbctx.Context, versionID uuid.UUID) ([]domain.SchemaLog, error)
	// LinkToVersion writes one schema_version_to_log row per log entry,
	// recording the version's active set (§4.6 step 7b).
	LinkToVersion(dbc dbctx.Context, versionID uuid.UUID, logIDs []uuid.UUID) error
}

type schemaLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchemaLogRepo(db *gorm.DB, baseLog *logger.Logger) SchemaLogRepo {
	return &schemaLogRepo{db: db, log: baseLog.With("repo", "SchemaLogRepo")}
}

func (r *schemaLogRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *schemaLogRepo) Create(dbc dbctx.Context, entry *domain.SchemaLog) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(entry).Error
}

func (r *schemaLogRepo) ActiveForVersion(dbc dbctx.Context, versionID uuid.UUID) ([]domain.SchemaLog, error) {
	var out []domain.SchemaLog
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Joins("JOIN schema_version_to_log ON schema_version_to_log.schema_log_id = schema_log.id").
		Where("schema_version_to_log.schema_version_id = ?", versionID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *schemaLogRepo) LinkToVersion(dbc dbctx.Context, versionID uuid.UUID, logIDs []uuid.UUID) error {
	if len(logIDs) == 0 {
		return nil
	}
	links := make([]domain.SchemaVersionToLog, 0, len(logIDs))
	for _, id := range logIDs {
		links = append(links, domain.SchemaVersionToLog{SchemaVersionID: versionID, SchemaLogID: id})
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Create(&links).Error
}
