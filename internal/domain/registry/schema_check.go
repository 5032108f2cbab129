package registry

import (
	"time"

	"github.com/google/uuid"
)

// SchemaCheck is a record of a proposed change that did not advance the
// target (§3, §4.6 step 7 "always creates a schema_check row").
type SchemaCheck struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TargetID uuid.UUID `gorm:"type:uuid;not null;index" json:"target_id"`

	SchemaSDLHash string `gorm:"column:schema_sdl_hash;not null" json:"schema_sdl_hash"`

	// SchemaVersionID is the baseline this check was compared against;
	// nullable for a target with no prior versions.
	SchemaVersionID *uuid.UUID `gorm:"type:uuid;index" json:"schema_version_id,omitempty"`

	IsSuccess bool `gorm:"column:is_success;not null" json:"is_success"`

	BreakingChangesRaw string `gorm:"column:breaking_changes;type:jsonb" json:"-"`
	SafeChangesRaw      string `gorm:"column:safe_changes;type:jsonb" json:"-"`

	PolicyWarningsRaw string `gorm:"column:policy_warnings;type:jsonb" json:"-"`
	PolicyErrorsRaw   string `gorm:"column:policy_errors;type:jsonb" json:"-"`

	CompositionErrorsRaw string `gorm:"column:composition_errors;type:jsonb" json:"-"`

	CompositeSchemaSDLHash *string `gorm:"column:composite_schema_sdl_hash" json:"composite_schema_sdl_hash,omitempty"`
	SupergraphSDLHash      *string `gorm:"column:supergraph_sdl_hash" json:"supergraph_sdl_hash,omitempty"`

	ContextID *string `gorm:"column:context_id;index" json:"context_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	// IntegrationMetadataRaw carries opaque VCS-integration metadata (repo,
	// pr_number, ...) used to synthesize ContextID when absent (§4.6 step 5).
	IntegrationMetadataRaw string `gorm:"column:integration_metadata;type:jsonb" json:"-"`

	IsManuallyApproved bool       `gorm:"column:is_manually_approved;not null;default:false" json:"is_manually_approved"`
	ApprovedByUserID   *uuid.UUID `gorm:"type:uuid" json:"approved_by_user_id,omitempty"`
}

func (SchemaCheck) TableName() string { return "schema_checks" }

// SchemaChangeApproval is the tuple (target_id, context_id, schema_change_id)
// -> schema_change_snapshot described in §3. Created when a user approves a
// failed check; looked up on subsequent checks sharing the same context_id.
type SchemaChangeApproval struct {
	TargetID       uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"target_id"`
	ContextID      string    `gorm:"column:context_id;not null;primaryKey" json:"context_id"`
	SchemaChangeID string    `gorm:"column:schema_change_id;not null;primaryKey" json:"schema_change_id"`

	SchemaChangeSnapshotRaw string `gorm:"column:schema_change_snapshot;type:jsonb;not null" json:"-"`

	ApprovedByUserID uuid.UUID `gorm:"type:uuid;not null" json:"approved_by_user_id"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SchemaChangeApproval) TableName() string { return "schema_change_approvals" }

// SDLStoreRow is the content-addressed store (hash -> SDL string) described
// in §3 "SDL Store".
type SDLStoreRow struct {
	Hash      string    `gorm:"column:hash;primaryKey" json:"hash"`
	SDL       string    `gorm:"column:sdl;not null" json:"sdl"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SDLStoreRow) TableName() string { return "sdl_store" }
