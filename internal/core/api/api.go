/*
 * Package api exposes the decisioning engine over HTTP.
 *
 * The surface is deliberately small: ingest orders and cancellation
 * requests, trigger dispatch, work the review queue, and manage rules.
 * Handlers translate between JSON payloads and domain types; all policy
 * lives in internal/engine and internal/rules.
 */
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/rescindhq/rescind/internal/core/config"
	"github.com/rescindhq/rescind/internal/core/store"
	"github.com/rescindhq/rescind/internal/engine"
)

// Service holds the handler dependencies.
type Service struct {
	store  *store.Store
	engine *engine.Engine
	cfg    *config.ServiceConfig
	log    *slog.Logger
}

// NewService creates the HTTP service.
func NewService(st *store.Store, eng *engine.Engine, cfg *config.ServiceConfig, log *slog.Logger) *Service {
	return &Service{store: st, engine: eng, cfg: cfg, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Service) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/orders", s.createOrder)
		v1.GET("/orders/:id", s.getOrder)

		v1.POST("/cancellation-requests", s.createRequest)
		v1.GET("/cancellation-requests/:id", s.getRequest)
		v1.POST("/cancellation-requests/:id/decide", s.decideRequest)

		v1.GET("/review-queue", s.listQueueItems)
		v1.GET("/review-queue/:id", s.getQueueItem)
		v1.POST("/review-queue/:id/approve", s.approveItem)
		v1.POST("/review-queue/:id/deny", s.denyItem)
		v1.POST("/review-queue/:id/request-info", s.requestInfo)
		v1.POST("/review-queue/:id/escalate", s.escalateItem)
		v1.POST("/review-queue/:id/respond", s.respondToInfo)

		v1.POST("/rules", s.createRule)
		v1.GET("/rules", s.listRules)
		v1.GET("/rules/:id", s.getRule)
		v1.PATCH("/rules/:id/active", s.setRuleActive)
	}

	return r
}

// requestLogger emits one structured line per request.
func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status())
	}
}

// pageLimit clamps a requested page size to the configured maximum.
func (s *Service) pageLimit(requested int) int {
	if requested <= 0 || requested > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return requested
}
