package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/gqlregistry/registry-core/internal/http/handlers"
	httpMW "github.com/gqlregistry/registry-core/internal/http/middleware"
	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// RouterConfig wires the handlers and middleware that make up the
// registry's HTTP surface (§6 "Inbound operations").
type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics

	HealthHandler *httpH.HealthHandler
	SchemaHandler *httpH.SchemaHandler
	AdminHandler  *httpH.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("registry-core"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics(cfg.Metrics))
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.SchemaHandler != nil {
		api.POST("/targets/:targetId/check", cfg.SchemaHandler.Check)
		api.POST("/targets/:targetId/publish", cfg.SchemaHandler.Publish)
		api.POST("/targets/:targetId/delete", cfg.SchemaHandler.Delete)
	}

	if cfg.AdminHandler != nil {
		api.POST("/checks/:checkId/approve", cfg.AdminHandler.ApproveFailedSchemaCheck)
		api.PATCH("/versions/:versionId/status", cfg.AdminHandler.UpdateVersionStatus)
		api.POST("/targets/:targetId/contracts", cfg.AdminHandler.CreateContract)
		api.PATCH("/projects/:projectId/registry-model", cfg.AdminHandler.UpdateProjectRegistryModel)
		api.POST("/projects/:projectId/external-composition", cfg.AdminHandler.EnableExternalSchemaComposition)
		api.PATCH("/projects/:projectId/native-federation", cfg.AdminHandler.UpdateNativeFederation)
	}

	return r
}
