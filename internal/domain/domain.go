// Package domain re-exports the registry data model (internal/domain/registry)
// so callers write domain.Target instead of registry.Target.
package domain

import "github.com/gqlregistry/registry-core/internal/domain/registry"

type (
	Organization           = registry.Organization
	ProjectType             = registry.ProjectType
	Project                 = registry.Project
	Target                  = registry.Target
	SchemaLog               = registry.SchemaLog
	SchemaLogAction         = registry.SchemaLogAction
	SchemaVersionToLog      = registry.SchemaVersionToLog
	SchemaVersion           = registry.SchemaVersion
	CompositionError        = registry.CompositionError
	Contract                = registry.Contract
	SchemaVersionContract   = registry.SchemaVersionContract
	StringSlice             = registry.StringSlice
	Severity                = registry.Severity
	ChangeType              = registry.ChangeType
	SchemaChange            = registry.SchemaChange
	SchemaCheck             = registry.SchemaCheck
	SchemaChangeApproval    = registry.SchemaChangeApproval
	SDLStoreRow             = registry.SDLStoreRow
	SchemaVersionChange         = registry.SchemaVersionChange
	SchemaVersionContractChange = registry.SchemaVersionContractChange
)

const (
	ProjectTypeSingle     = registry.ProjectTypeSingle
	ProjectTypeFederation = registry.ProjectTypeFederation
	ProjectTypeStitching  = registry.ProjectTypeStitching

	SchemaLogActionPush   = registry.SchemaLogActionPush
	SchemaLogActionDelete = registry.SchemaLogActionDelete

	SeverityBreaking  = registry.SeverityBreaking
	SeverityDangerous = registry.SeverityDangerous
	SeveritySafe      = registry.SeveritySafe
)

var (
	ActiveLogSet = registry.ActiveLogSet
	ChangeID     = registry.ChangeID
)
