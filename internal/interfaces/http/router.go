// Package http exposes the mapping pipeline as a JSON API on gin.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/BioMapper/internal/interfaces/http/handlers"
	"github.com/turtacn/BioMapper/internal/interfaces/http/middleware"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// RouterConfig carries the handlers and middleware settings.  Nil handlers
// leave their routes unregistered.
type RouterConfig struct {
	MappingHandler *handlers.MappingHandler
	HealthHandler  *handlers.HealthHandler

	Logging   middleware.LoggingConfig
	RateLimit middleware.RateLimitConfig

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("http")

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, cfg.Logging))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimit(middleware.NewLimiter(cfg.RateLimit), cfg.RateLimit))
	}
	if h := cfg.MappingHandler; h != nil {
		api.POST("/mappings", h.Create)
		api.GET("/pipeline", h.Pipeline)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: errors.ErrCodeNotFound, Message: "route not found"})
	})
	return r
}

//Personal.AI order the ending
