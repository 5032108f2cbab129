package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
)

func TestSchemaCheckRepo_PurgeExpired(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := NewSchemaCheckRepo(tx, log)
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now()
	expired := []domain.SchemaCheck{
		{ID: uuid.New(), TargetID: target.ID, SchemaSDLHash: "h1", IsSuccess: true, CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)},
		{ID: uuid.New(), TargetID: target.ID, SchemaSDLHash: "h2", IsSuccess: false, CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-1 * time.Minute)},
	}
	for i := range expired {
		require.NoError(t, repo.Create(dbc, &expired[i]))
	}

	stillLive := domain.SchemaCheck{ID: uuid.New(), TargetID: target.ID, SchemaSDLHash: "h3", IsSuccess: true, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	require.NoError(t, repo.Create(dbc, &stillLive))

	n, err := repo.PurgeExpired(dbc, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = repo.GetByID(dbc, expired[0].ID)
	require.Error(t, err)
	_, err = repo.GetByID(dbc, expired[1].ID)
	require.Error(t, err)

	remaining, err := repo.GetByID(dbc, stillLive.ID)
	require.NoError(t, err)
	require.Equal(t, stillLive.ID, remaining.ID)
}

func TestSchemaCheckRepo_PurgeExpired_NoneExpired(t *testing.T) {
	db := testDatabase(t)
	tx := testTx(t, db)
	log := testLogger(t)

	target := seedTarget(t, tx, domain.ProjectTypeSingle)
	repo := NewSchemaCheckRepo(tx, log)
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now()
	live := domain.SchemaCheck{ID: uuid.New(), TargetID: target.ID, SchemaSDLHash: "h1", IsSuccess: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(dbc, &live))

	n, err := repo.PurgeExpired(dbc, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
