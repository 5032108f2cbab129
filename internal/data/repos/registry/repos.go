package registry

import (
	"gorm.io/gorm"

	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// Repos bundles every registry repo the publisher and admin handlers need.
type Repos struct {
	Organization  OrganizationRepo
	Project       ProjectRepo
	Target        TargetRepo
	SchemaLog     SchemaLogRepo
	SchemaVersion SchemaVersionRepo
	SchemaCheck   SchemaCheckRepo
	Contract      ContractRepo
	SDLStore      SDLStoreRepo
}

// Wire constructs every registry repo over db.
func Wire(db *gorm.DB, log *logger.Logger) Repos {
	targets := NewTargetRepo(db, log)
	schemaLogs := NewSchemaLogRepo(db, log)
	sdlStore := NewSDLStoreRepo(db, log)
	contracts := NewContractRepo(db, log)

	return Repos{
		Organization:  NewOrganizationRepo(db, log),
		Project:       NewProjectRepo(db, log),
		Target:        targets,
		SchemaLog:     schemaLogs,
		SchemaVersion: NewSchemaVersionRepo(db, log, targets, schemaLogs, sdlStore, contracts),
		SchemaCheck:   NewSchemaCheckRepo(db, log),
		Contract:      contracts,
		SDLStore:      sdlStore,
	}
}
