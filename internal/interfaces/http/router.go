package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DexAtlas/internal/interfaces/http/handlers"
	"github.com/turtacn/DexAtlas/internal/interfaces/http/middleware"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// preview API.
type RouterConfig struct {
	// Mode is the gin mode: debug, release or test.
	Mode string

	DatasetHandler *handlers.DatasetHandler
	HealthHandler  *handlers.HealthHandler

	// CORSOrigins lists browser origins allowed to read the API.  Empty
	// allows any origin.
	CORSOrigins []string

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.PipelineMetrics
}

// NewRouter builds the route tree: probes and /metrics at the root, the
// dataset under /api/v1.  Nil handlers leave their routes unregistered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery(), middleware.RequestID())
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins
	if len(corsCfg.AllowedOrigins) == 0 {
		corsCfg.AllowedOrigins = []string{"*"}
	}
	r.Use(middleware.CORS(corsCfg))
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	registerDatasetRoutes(api, cfg.DatasetHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: string(errors.ErrCodeNotFound), Message: "route not found"})
	})
	return r
}

func registerDatasetRoutes(r *gin.RouterGroup, h *handlers.DatasetHandler) {
	if h == nil {
		return
	}
	r.GET("/trials", h.ListTrials)
	r.GET("/trials/:id", h.GetTrial)
	r.GET("/summary", h.Summary)
	r.GET("/summary/by-rob", h.SummaryByRob)
	r.GET("/validation", h.Validation)
	r.GET("/review-queue", h.ReviewQueue)
	r.GET("/checksums", h.Checksums)
	r.GET("/linkage/coverage", h.Linkage)
}

//Personal.AI order the ending
