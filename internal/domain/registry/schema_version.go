package registry

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is an immutable snapshot of a target at a point in time (§3).
//
// Invariants enforced by the storage layer (internal/data/repos/registry):
//   - exactly one version per target is "latest" (Target.LatestVersionID);
//   - at most one version <= latest is "latest-composable";
//   - if CompositeSchemaSDLHash is nil, SupergraphSDLHash must be nil and
//     CompositionErrors must be non-empty;
//   - Tags is non-nil iff IsComposable && the owning project supports contracts.
type SchemaVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TargetID uuid.UUID `gorm:"type:uuid;not null;index" json:"target_id"`

	CreatedAt time.Time `gorm:"not null;default:now();index:idx_schema_version_target_created,priority:2" json:"created_at"`

	IsComposable bool `gorm:"column:is_composable;not null" json:"is_composable"`

	// PreviousSchemaVersionID forms the linked list described in §3.
	PreviousSchemaVersionID *uuid.UUID `gorm:"type:uuid;index" json:"previous_schema_version_id,omitempty"`

	BaseSchema string `gorm:"column:base_schema" json:"base_schema,omitempty"`

	// Large SDL bodies are stored by content hash via the SDL store (§3); the
	// row itself only keeps the hash, matching the "large SDL fields... stored
	// by reference" contract.
	CompositeSchemaSDLHash *string `gorm:"column:composite_schema_sdl_hash" json:"composite_schema_sdl_hash,omitempty"`
	SupergraphSDLHash      *string `gorm:"column:supergraph_sdl_hash" json:"supergraph_sdl_hash,omitempty"`

	Tags StringSlice `gorm:"column:tags;type:jsonb" json:"tags,omitempty"`

	SchemaCompositionErrors []CompositionError `gorm:"-" json:"schema_composition_errors,omitempty"`
	// Serialized form persisted alongside the row; kept separate from the Go
	// slice above so repos can round-trip JSON without a custom GORM type.
	SchemaCompositionErrorsRaw string `gorm:"column:schema_composition_errors;type:jsonb" json:"-"`
}

func (SchemaVersion) TableName() string { return "schema_versions" }

// CompositionError mirrors the orchestrator.CompositionError shape persisted on a version
// or check row (§4.2).
type CompositionError struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

// Contract is a named tag-filtered view of a target's schema versions (§3).
// Immutable once created.
type Contract struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TargetID uuid.UUID `gorm:"type:uuid;not null;index" json:"target_id"`
	Name     string    `gorm:"column:name;not null;index" json:"name"`

	IncludeTags StringSlice `gorm:"column:include_tags;type:jsonb" json:"include_tags,omitempty"`
	ExcludeTags StringSlice `gorm:"column:exclude_tags;type:jsonb" json:"exclude_tags,omitempty"`

	RemoveUnreachableTypesFromPublicAPISchema bool `gorm:"column:remove_unreachable_types;not null;default:false" json:"remove_unreachable_types_from_public_api_schema"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Contract) TableName() string { return "contracts" }

// SchemaVersionContract is, for every composable schema version of a
// contract-bearing target, one record per contract (§3).
type SchemaVersionContract struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SchemaVersionID uuid.UUID `gorm:"type:uuid;not null;index" json:"schema_version_id"`
	ContractID      uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`

	CompositeSchemaSDLHash *string `gorm:"column:composite_schema_sdl_hash" json:"composite_schema_sdl_hash,omitempty"`
	SupergraphSDLHash      *string `gorm:"column:supergraph_sdl_hash" json:"supergraph_sdl_hash,omitempty"`
	IsComposable           bool    `gorm:"column:is_composable;not null" json:"is_composable"`

	SchemaCompositionErrorsRaw string `gorm:"column:schema_composition_errors;type:jsonb" json:"-"`

	// LastSchemaVersionContractID chains to the previous successful version
	// for the same contract (§3 and §9 "cyclic references" design note: this
	// is an arena-indexed lineage chain, not a pointer cycle).
	LastSchemaVersionContractID *uuid.UUID `gorm:"type:uuid;index" json:"last_schema_version_contract_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SchemaVersionContract) TableName() string { return "schema_version_contracts" }
