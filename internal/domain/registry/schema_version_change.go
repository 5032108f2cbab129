package registry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaVersionChange persists one SchemaChange against the schema version
// it was detected on (§6 "Persisted state": schema_version_changes).
type SchemaVersionChange struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SchemaVersionID uuid.UUID `gorm:"type:uuid;not null;index" json:"schema_version_id"`

	ChangeID string `gorm:"column:change_id;not null;index" json:"change_id"`
	Type     string `gorm:"column:type;not null" json:"type"`
	Severity string `gorm:"column:severity;not null" json:"severity"`
	MetaRaw  string `gorm:"column:meta;type:jsonb" json:"-"`
	Path     string `gorm:"column:path" json:"path,omitempty"`

	IsSafeBasedOnUsage bool   `gorm:"column:is_safe_based_on_usage;not null;default:false" json:"is_safe_based_on_usage"`
	ApprovedByUserID   string `gorm:"column:approved_by_user_id" json:"approved_by_user_id,omitempty"`
	ApprovedAt         string `gorm:"column:approved_at" json:"approved_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SchemaVersionChange) TableName() string { return "schema_version_changes" }

// NewSchemaVersionChange converts a SchemaChange value record into its
// persisted row for versionID.
func NewSchemaVersionChange(versionID uuid.UUID, c SchemaChange) SchemaVersionChange {
	meta, _ := json.Marshal(c.Meta)
	return SchemaVersionChange{
		ID:                 uuid.New(),
		SchemaVersionID:    versionID,
		ChangeID:           c.ID,
		Type:               string(c.Type),
		Severity:           string(c.Severity),
		MetaRaw:            string(meta),
		Path:               c.Path,
		IsSafeBasedOnUsage: c.IsSafeBasedOnUsage,
		ApprovedByUserID:   c.ApprovedByUserID,
		ApprovedAt:         c.ApprovedAt,
		CreatedAt:          time.Now(),
	}
}

// SchemaVersionContractChange is the per-contract analogue of
// SchemaVersionChange (§6: schema_version_contract_changes).
type SchemaVersionContractChange struct {
	ID                      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SchemaVersionContractID uuid.UUID `gorm:"type:uuid;not null;index" json:"schema_version_contract_id"`

	ChangeID string `gorm:"column:change_id;not null;index" json:"change_id"`
	Type     string `gorm:"column:type;not null" json:"type"`
	Severity string `gorm:"column:severity;not null" json:"severity"`
	MetaRaw  string `gorm:"column:meta;type:jsonb" json:"-"`
	Path     string `gorm:"column:path" json:"path,omitempty"`

	IsSafeBasedOnUsage bool `gorm:"column:is_safe_based_on_usage;not null;default:false" json:"is_safe_based_on_usage"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SchemaVersionContractChange) TableName() string { return "schema_version_contract_changes" }

// NewSchemaVersionContractChange converts a SchemaChange into its persisted
// row for a specific schema_version_contract.
func NewSchemaVersionContractChange(svcID uuid.UUID, c SchemaChange) SchemaVersionContractChange {
	meta, _ := json.Marshal(c.Meta)
	return SchemaVersionContractChange{
		ID:                      uuid.New(),
		SchemaVersionContractID: svcID,
		ChangeID:                c.ID,
		Type:                    string(c.Type),
		Severity:                string(c.Severity),
		MetaRaw:                 string(meta),
		Path:                    c.Path,
		IsSafeBasedOnUsage:      c.IsSafeBasedOnUsage,
		CreatedAt:               time.Now(),
	}
}
