package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the top-level tenant boundary. Auth and billing are handled
// by external collaborators; this row exists so targets can be scoped by it.
type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Organization) TableName() string { return "organizations" }

// ProjectType selects which Model family (§4.5) handles a project's targets.
type ProjectType string

const (
	ProjectTypeSingle    ProjectType = "single"
	ProjectTypeFederation ProjectType = "federation"
	ProjectTypeStitching ProjectType = "stitching"
)

// Project groups targets and carries the registry-model and composition flags
// that select model dispatch and orchestrator behavior.
type Project struct {
	ID             uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID   `gorm:"type:uuid;not null;index" json:"organization_id"`
	Slug           string      `gorm:"column:slug;not null;index" json:"slug"`
	Name           string      `gorm:"column:name;not null" json:"name"`
	Type           ProjectType `gorm:"column:type;not null" json:"type"`

	// LegacyRegistryModel selects the legacy model variant (§4.5.4 design note).
	LegacyRegistryModel bool `gorm:"column:legacy_registry_model;not null;default:false" json:"legacy_registry_model"`

	// NativeFederation selects the in-process composer over the legacy remote one (§4.2).
	NativeFederation bool `gorm:"column:native_federation;not null;default:false" json:"native_federation"`

	// ExternalComposition delegates composeAndValidate to a user HTTP endpoint (§4.2).
	ExternalCompositionEnabled bool   `gorm:"column:external_composition_enabled;not null;default:false" json:"external_composition_enabled"`
	ExternalCompositionURL     string `gorm:"column:external_composition_url" json:"external_composition_url,omitempty"`
	ExternalCompositionSecret  string `gorm:"column:external_composition_secret" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Project) TableName() string { return "projects" }

// Target is the unit of version-streaming, identified by (organization, project, target).
type Target struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Slug      string    `gorm:"column:slug;not null;index" json:"slug"`
	Name      string    `gorm:"column:name;not null" json:"name"`

	// LatestVersionID and LatestComposableVersionID are the two parallel lineage
	// pointers described in §3 Invariants. Nullable: a fresh target has neither.
	LatestVersionID           *uuid.UUID `gorm:"type:uuid;index" json:"latest_version_id,omitempty"`
	LatestComposableVersionID *uuid.UUID `gorm:"type:uuid;index" json:"latest_composable_version_id,omitempty"`

	// RetentionDays controls schema_checks.expires_at (§4.6 step 7).
	RetentionDays int `gorm:"column:retention_days;not null;default:7" json:"retention_days"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Target) TableName() string { return "targets" }
