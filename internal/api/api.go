// Package api is the REST surface consumed by the dashboards. It is a view
// layer: every mutation goes through the orchestrator and the response is
// always the request view model, history included.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/crossgrid/orchestrator/internal/dispatch"
	"github.com/crossgrid/orchestrator/internal/ingest"
	"github.com/crossgrid/orchestrator/internal/orchestrator"
)

type Api struct {
	orch     *orchestrator.Orchestrator
	ingestor *ingest.Ingestor
	targets  dispatch.Targets
	source   ingest.SourceConfig
	logger   *slog.Logger
	router   *gin.Engine
}

func NewAPI(
	orch *orchestrator.Orchestrator,
	ingestor *ingest.Ingestor,
	targets dispatch.Targets,
	source ingest.SourceConfig,
	logger *slog.Logger,
) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	a := &Api{
		orch:     orch,
		ingestor: ingestor,
		targets:  targets,
		source:   source,
		logger:   logger,
		router:   r,
	}
	a.router.Use(a.requestLogger())
	return a
}

func (a *Api) Router() *gin.Engine {
	v1 := a.router.Group("/api/v1")

	v1.POST("/requests", a.CreateRequest)
	v1.GET("/requests", a.ListRequests)
	v1.GET("/requests/:id", a.GetRequest)
	v1.POST("/requests/:id/validate", a.ValidateRequest)
	v1.POST("/requests/:id/deploy", a.DeployRequest)
	v1.POST("/requests/:id/reconcile", a.ReconcileRequest)
	v1.GET("/requests/:id/preview/:target", a.PreviewRequest)

	v1.POST("/orchestrate/:eventType", a.Sweep)
	v1.POST("/ingest/:eventType", a.Ingest)
	v1.POST("/status-updates", a.StatusPush)

	a.router.GET("/healthz", a.Health)
	return a.router
}

func (a *Api) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		a.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
