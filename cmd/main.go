package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gqlregistry/registry-core/internal/artifacts"
	"github.com/gqlregistry/registry-core/internal/authz"
	"github.com/gqlregistry/registry-core/internal/config"
	"github.com/gqlregistry/registry-core/internal/data/db"
	repos "github.com/gqlregistry/registry-core/internal/data/repos/registry"
	domain "github.com/gqlregistry/registry-core/internal/domain/registry"
	registryhttp "github.com/gqlregistry/registry-core/internal/http"
	"github.com/gqlregistry/registry-core/internal/http/handlers"
	"github.com/gqlregistry/registry-core/internal/http/middleware"
	"github.com/gqlregistry/registry-core/internal/idempotency"
	"github.com/gqlregistry/registry-core/internal/lock"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/orchestrator"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
	"github.com/gqlregistry/registry-core/internal/publisher"
	"github.com/gqlregistry/registry-core/internal/worker"
)

func main() {
	cfg := config.LoadConfigFromEnv()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "registry-core",
		Environment: cfg.Env,
	})
	defer func() {
		if shutdownOTel != nil {
			_ = shutdownOTel(context.Background())
		}
	}()
	metrics := observability.Init(log)

	postgres, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	if err := postgres.AutoMigrateAll(); err != nil {
		log.Fatal("failed to migrate registry schema", "error", err)
	}
	gormDB := postgres.DB()
	metrics.StartPostgresCollector(ctx, log, gormDB)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	metrics.StartRedisCollector(ctx, log, cfg.RedisAddr)

	registryRepos := repos.Wire(gormDB, log)
	metrics.StartPendingCheckCollector(ctx, log, gormDB)

	locker := lock.New(rdb, log, cfg.LockTTL, cfg.LockPollEvery)
	idem := idempotency.New(rdb, cfg.IdempotencyTTL)

	storageClient, storageCfg, err := artifacts.NewStorageClient(ctx)
	var artifactStore artifacts.Store
	if err != nil {
		log.Warn("artifact storage unavailable, artifacts will not be published", "error", err)
	} else {
		artifactStore, err = artifacts.NewStore(storageClient, storageCfg, log)
		if err != nil {
			log.Warn("artifact store init failed, artifacts will not be published", "error", err)
			artifactStore = nil
		}
	}

	pub := publisher.New(registryRepos, locker, idem, artifactStore, orchestratorFactory(log), log, publisher.Options{
		DefaultRetentionDays: cfg.DefaultRetentionDays,
	})

	purgeWorker := worker.NewPurgeWorker(gormDB, log, registryRepos.SchemaCheck, cfg.PurgeInterval)
	purgeWorker.Start(ctx)

	authorizer := authz.New(cfg.JWTSecretKey)
	authMiddleware := middleware.NewAuthMiddleware(log, authorizer)

	server := registryhttp.NewServer(registryhttp.RouterConfig{
		Log:            log,
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		HealthHandler:  handlers.NewHealthHandler(),
		SchemaHandler:  handlers.NewSchemaHandler(pub),
		AdminHandler:   handlers.NewAdminHandler(pub),
	})

	log.Info("starting registry-core", "port", cfg.Port, "env", cfg.Env)
	if err := server.Run(":" + cfg.Port); err != nil {
		log.Fatal("http server exited", "error", err)
	}
}

// orchestratorFactory selects and configures the composeAndValidate
// variant for a project (§4.2, §9 "Polymorphism"): Single for single-schema
// projects, Stitching for stitching projects and Federation for every other
// project type, bound to the project's native_federation flag and wrapped
// with an HMAC-signed external delegate when the project has external
// composition enabled.
func orchestratorFactory(log *logger.Logger) publisher.OrchestratorFactory {
	return func(project *domain.Project) orchestrator.Orchestrator {
		var base orchestrator.Orchestrator
		switch project.Type {
		case domain.ProjectTypeSingle:
			base = orchestrator.Single{}
		case domain.ProjectTypeStitching:
			base = orchestrator.Stitching{}
		default:
			base = orchestrator.Federation{}
		}

		bound := orchestrator.Bound{Inner: base, Native: project.NativeFederation}
		if project.ExternalCompositionEnabled {
			bound.Inner = orchestrator.NewExternalDelegate(log, base)
			bound.External = &orchestrator.ExternalComposition{
				Endpoint: project.ExternalCompositionURL,
				Secret:   project.ExternalCompositionSecret,
			}
		}
		return bound
	}
}
