// Package worker runs the registry's background maintenance loops.
package worker

import (
	"context"
	"time"

	"gorm.io/gorm"

	repos "github.com/gqlregistry/registry-core/internal/data/repos/registry"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/pkg/dbctx"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// PurgeWorker periodically deletes expired schema_check rows (§4.7, §5
// "Background workers", §8 I6).
type PurgeWorker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.SchemaCheckRepo
	interval time.Duration
}

// NewPurgeWorker builds a PurgeWorker. interval <= 0 falls back to 5 minutes.
func NewPurgeWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.SchemaCheckRepo, interval time.Duration) *PurgeWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PurgeWorker{
		db:       db,
		log:      baseLog.With("component", "PurgeWorker"),
		repo:     repo,
		interval: interval,
	}
}

// Start runs the purge loop in its own goroutine until ctx is cancelled.
func (w *PurgeWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

func (w *PurgeWorker) runOnce(ctx context.Context) {
	dbc := dbctx.Context{Ctx: ctx}
	removed, err := w.repo.PurgeExpired(dbc, time.Now())
	observability.Current().IncPurgeRun(removed, err)
	if err != nil {
		w.log.Warn("purge expired schema checks failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Info("purged expired schema checks", "rows", removed)
	}
}
