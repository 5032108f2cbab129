package db

import (
	types "github.com/gqlregistry/registry-core/internal/domain"
	"gorm.io/gorm"
)

// AutoMigrateAll creates/updates every registry-core table (§3).
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Organization{},
		&types.Project{},
		&types.Target{},

		&types.SchemaLog{},
		&types.SchemaVersion{},
		&types.SchemaVersionToLog{},
		&types.SchemaVersionChange{},
		&types.Contract{},
		&types.SchemaVersionContract{},
		&types.SchemaVersionContractChange{},

		&types.SchemaCheck{},
		&types.SchemaChangeApproval{},
		&types.SDLStoreRow{},
	)
}

// EnsureRegistryIndexes adds indexes GORM tags can't express directly: a
// composite lookup index for approval matching (§4.4 "Approval application")
// and a purge-worker index on schema_checks.expires_at (§5).
func EnsureRegistryIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_schema_change_approval_lookup
		ON schema_change_approvals (target_id, context_id, schema_change_id);
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_schema_checks_expires_at
		ON schema_checks (expires_at);
	`).Error; err != nil {
		return err
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureRegistryIndexes(s.db); err != nil {
		s.log.Error("Registry index migration failed", "error", err)
		return err
	}
	return nil
}
