package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SchemaLogAction distinguishes the two schema log entry variants (§3).
type SchemaLogAction string

const (
	SchemaLogActionPush   SchemaLogAction = "PUSH"
	SchemaLogActionDelete SchemaLogAction = "DELETE"
)

// SchemaLog is an immutable append-only record of one user action against a
// target. PUSH entries carry the incoming subgraph/service SDL; DELETE
// entries only name the service being removed. Never mutated after creation.
type SchemaLog struct {
	ID       uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TargetID uuid.UUID       `gorm:"type:uuid;not null;index" json:"target_id"`
	Action   SchemaLogAction `gorm:"column:action;not null" json:"action"`

	ServiceName string  `gorm:"column:service_name;not null;index" json:"service_name"`
	ServiceURL  *string `gorm:"column:service_url" json:"service_url,omitempty"`

	SDL      *string        `gorm:"column:sdl" json:"sdl,omitempty"`
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	Author string `gorm:"column:author" json:"author,omitempty"`
	Commit string `gorm:"column:commit" json:"commit,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (SchemaLog) TableName() string { return "schema_log" }

// SchemaVersionToLog is the join between a schema version and the set of log
// entries that are "active" as of that version (§3: Schema Version's active
// log entries = previous version's active set, with DELETE removing by
// service_name and PUSH replacing any entry with the same service_name).
type SchemaVersionToLog struct {
	SchemaVersionID uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"schema_version_id"`
	SchemaLogID     uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"schema_log_id"`
}

func (SchemaVersionToLog) TableName() string { return "schema_version_to_log" }

// ActiveLogSet computes the active log entries for a version that inherits
// `previous` and applies `incoming` as either a PUSH or DELETE, per §3's
// "active" definition: DELETE removes by service_name, PUSH replaces any
// entry with the same service_name (or appends).
func ActiveLogSet(previous []SchemaLog, incoming SchemaLog) []SchemaLog {
	next := make([]SchemaLog, 0, len(previous)+1)
	for _, l := range previous {
		if l.ServiceName == incoming.ServiceName {
			continue
		}
		next = append(next, l)
	}
	if incoming.Action == SchemaLogActionPush {
		next = append(next, incoming)
	}
	return next
}
