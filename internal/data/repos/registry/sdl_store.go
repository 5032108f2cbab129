package registry

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
	"github.com/gqlregistry/registry-core/internal/schemahelper"
)

// SDLStoreRepo is the content-addressed hash->SDL store (§3 "SDL Store").
// Large SDL fields on schema_versions and schema_checks are stored here by
// reference; rows are immutable once written, so Put is an upsert that
// never overwrites an existing hash's body.
type SDLStoreRepo interface {
	GetByHash(dbc dbctx.Context, hash string) (string, error)
	// Put stores sdl under its checksum and returns the hash, creating the
	// row only if it does not already exist.
	Put(dbc dbctx.Context, sdl string) (string, error)
}

type sdlStoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSDLStoreRepo(db *gorm.DB, baseLog *logger.Logger) SDLStoreRepo {
	return &sdlStoreRepo{db: db, log: baseLog.With("repo", "SDLStoreRepo")}
}

func (r *sdlStoreRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sdlStoreRepo) GetByHash(dbc dbctx.Context, hash string) (string, error) {
	if hash == "" {
		return "", nil
	}
	var row domain.SDLStoreRow
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("hash = ?", hash).First(&row).Error
	if gorm.ErrRecordNotFound == err {
		return "", registryerrors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.SDL, nil
}

func (r *sdlStoreRepo) Put(dbc dbctx.Context, sdl string) (string, error) {
	hash := schemahelper.Checksum(sdl)
	row := domain.SDLStoreRow{Hash: hash, SDL: sdl, CreatedAt: time.Now()}
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return "", err
	}
	return hash, nil
}
