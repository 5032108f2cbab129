package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

var errBoom = errors.New("boom")

func seedTarget(t *testing.T, gdb *gorm.DB, projectType domain.ProjectType) *domain.Target {
	t.Helper()

	org := &domain.Organization{ID: uuid.New(), Slug: "org-" + uuid.NewString(), Name: "Org"}
	require.NoError(t, gdb.Create(org).Error)

	proj := &domain.Project{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Slug:           "proj-" + uuid.NewString(),
		Name:           "Project",
		Type:           projectType,
	}
	require.NoError(t, gdb.Create(proj).Error)

	target := &domain.Target{
		ID:        uuid.New(),
		ProjectID: proj.ID,
		Slug:      "target-" + uuid.NewString(),
		Name:      "Target",
	}
	require.NoError(t, gdb.Create(target).Error)
	return target
}

func newSchemaVersionRepo(gdb *gorm.DB, log *logger.Logger) SchemaVersionRepo {
	targets := NewTargetRepo(gdb, log)
	schemaLogs := NewSchemaLogRepo(gdb, log)
	sdlStore := NewSDLStoreRepo(gdb, log)
	contracts := NewContractRepo(gdb, log)
	return NewSchemaVersionRepo(gdb, log, targets, schemaLogs, sdlStore, contracts)
}

func TestSchemaVersionRepo_CreateVersion_FirstPush(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := newSchemaVersionRepo(tx, log)
	targets := NewTargetRepo(tx, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	params := CreateVersionParams{
		TargetID:     target.ID,
		IsComposable: true,
		CompositeSDL: "type Query { hello: String }",
		Changes: []domain.SchemaChange{
			{ID: "c1", Type: domain.ChangeFieldAdded, Severity: domain.SeveritySafe, Path: "Query.hello"},
		},
		LogEntry: domain.SchemaLog{
			Action:      domain.SchemaLogActionPush,
			ServiceName: "accounts",
			Author:      "alice",
			Commit:      "abc123",
		},
	}

	var actionFnCalled bool
	version, err := repo.CreateVersion(dbc, params, func(txc dbctx.Context, v *domain.SchemaVersion) error {
		actionFnCalled = true
		require.NotNil(t, txc.Tx)
		require.Equal(t, target.ID, v.TargetID)
		return nil
	})
	require.NoError(t, err)
	require.True(t, actionFnCalled)
	require.NotNil(t, version)
	require.True(t, version.IsComposable)
	require.NotNil(t, version.CompositeSchemaSDLHash)

	updated, err := targets.GetByID(dbc, target.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LatestVersionID)
	require.Equal(t, version.ID, *updated.LatestVersionID)
	require.NotNil(t, updated.LatestComposableVersionID)
	require.Equal(t, version.ID, *updated.LatestComposableVersionID)

	var changeRows []domain.SchemaVersionChange
	require.NoError(t, tx.Where("schema_version_id = ?", version.ID).Find(&changeRows).Error)
	require.Len(t, changeRows, 1)
	require.Equal(t, "c1", changeRows[0].ChangeID)

	var logRows []domain.SchemaVersionToLog
	require.NoError(t, tx.Where("schema_version_id = ?", version.ID).Find(&logRows).Error)
	require.Len(t, logRows, 1)
}

func TestSchemaVersionRepo_CreateVersion_PushThenDeleteActiveSet(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeFederation)
	repo := newSchemaVersionRepo(tx, log)
	schemaLogs := NewSchemaLogRepo(tx, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	first, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:     target.ID,
		IsComposable: true,
		LogEntry: domain.SchemaLog{
			Action:      domain.SchemaLogActionPush,
			ServiceName: "accounts",
		},
	}, nil)
	require.NoError(t, err)

	second, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:                target.ID,
		PreviousSchemaVersionID: &first.ID,
		IsComposable:            true,
		LogEntry: domain.SchemaLog{
			Action:      domain.SchemaLogActionPush,
			ServiceName: "inventory",
		},
	}, nil)
	require.NoError(t, err)

	activeAfterSecond, err := schemaLogs.ActiveForVersion(dbc, second.ID)
	require.NoError(t, err)
	require.Len(t, activeAfterSecond, 2)

	third, err := repo.DeleteSchema(dbc, CreateVersionParams{
		TargetID:                target.ID,
		PreviousSchemaVersionID: &second.ID,
		IsComposable:            true,
		LogEntry: domain.SchemaLog{
			ServiceName: "accounts",
		},
	}, nil)
	require.NoError(t, err)

	activeAfterDelete, err := schemaLogs.ActiveForVersion(dbc, third.ID)
	require.NoError(t, err)
	require.Len(t, activeAfterDelete, 1)
	require.Equal(t, "inventory", activeAfterDelete[0].ServiceName)
}

func TestSchemaVersionRepo_CreateVersion_ActionFnErrorRollsBack(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := newSchemaVersionRepo(tx, log)
	targets := NewTargetRepo(tx, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:     target.ID,
		IsComposable: true,
		LogEntry: domain.SchemaLog{
			Action:      domain.SchemaLogActionPush,
			ServiceName: "accounts",
		},
	}, func(txc dbctx.Context, v *domain.SchemaVersion) error {
		return errBoom
	})
	require.Error(t, err)

	updated, err := targets.GetByID(dbc, target.ID)
	require.NoError(t, err)
	require.Nil(t, updated.LatestVersionID)

	var versions []domain.SchemaVersion
	require.NoError(t, tx.Where("target_id = ?", target.ID).Find(&versions).Error)
	require.Empty(t, versions)
}

func TestSchemaVersionRepo_RecomputeLatestComposable(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := newSchemaVersionRepo(tx, log)
	targets := NewTargetRepo(tx, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	v1, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:     target.ID,
		IsComposable: true,
		LogEntry:     domain.SchemaLog{Action: domain.SchemaLogActionPush, ServiceName: "accounts"},
	}, nil)
	require.NoError(t, err)

	v2, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:                target.ID,
		PreviousSchemaVersionID: &v1.ID,
		IsComposable:            false,
		LogEntry:                domain.SchemaLog{Action: domain.SchemaLogActionPush, ServiceName: "accounts"},
	}, nil)
	require.NoError(t, err)
	require.False(t, v2.IsComposable)

	updated, err := targets.GetByID(dbc, target.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LatestComposableVersionID)
	require.Equal(t, v1.ID, *updated.LatestComposableVersionID)

	require.NoError(t, tx.Model(&domain.Target{}).
		Where("id = ?", target.ID).
		Update("latest_composable_version_id", nil).Error)

	found, err := repo.RecomputeLatestComposable(dbc, target.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, v1.ID, found.ID)

	rechecked, err := targets.GetByID(dbc, target.ID)
	require.NoError(t, err)
	require.NotNil(t, rechecked.LatestComposableVersionID)
	require.Equal(t, v1.ID, *rechecked.LatestComposableVersionID)
}

func TestSchemaVersionRepo_RecomputeLatestComposable_NoneFound(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := newSchemaVersionRepo(tx, log)

	dbc := dbctx.Context{Ctx: context.Background()}

	_, err := repo.CreateVersion(dbc, CreateVersionParams{
		TargetID:     target.ID,
		IsComposable: false,
		LogEntry:     domain.SchemaLog{Action: domain.SchemaLogActionPush, ServiceName: "accounts"},
	}, nil)
	require.NoError(t, err)

	found, err := repo.RecomputeLatestComposable(dbc, target.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}
