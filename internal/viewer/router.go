// Package viewer assembles the HTTP surface of the provenance viewer.
package viewer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
	"github.com/jmerrifield20/SupplyChainLedger/internal/health"
	"github.com/jmerrifield20/SupplyChainLedger/internal/viewer/handler"
)

// LedgerStatus reports ledger reachability for /healthz.
type LedgerStatus interface {
	Status() (health.Status, uint64)
}

// Options wires the router's collaborators.
type Options struct {
	Aggregator   handler.Aggregator
	Catalog      catalog.Store
	Pages        handler.PageOptions
	CORSOrigins  []string
	RateLimitRPS int          // 0 disables rate limiting
	Health       LedgerStatus // nil reports the ledger as not monitored
	Logger       *zap.Logger
}

// NewRouter builds the gin engine serving pages, the JSON API, health and
// metrics. Background work started for the router stops when ctx is done.
func NewRouter(ctx context.Context, opts Options) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())
	router.Use(handler.SecurityHeaders())

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	router.Use(handler.PrometheusMiddleware())
	if opts.RateLimitRPS > 0 {
		router.Use(handler.RateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitRPS*2))
	}
	router.Use(handler.RequestLogger(opts.Logger))

	if err := handler.LoadTemplates(router); err != nil {
		return nil, err
	}

	router.GET("/healthz", healthz(opts.Health))
	router.GET("/metrics", handler.MetricsHandler())

	pages := handler.NewPageHandler(opts.Catalog, opts.Aggregator, opts.Pages, opts.Logger)
	pages.Register(&router.RouterGroup)

	v1 := router.Group("/api/v1")
	v1.Use(cors.New(corsConfig(opts.CORSOrigins)))
	// Preflight requests need a route for the group middleware to run.
	v1.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	handler.NewAPIHandler(opts.Aggregator, opts.Catalog, opts.Pages.CallTimeout, opts.Logger).Register(v1)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		return cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", handler.RequestIDHeader},
			MaxAge:          12 * time.Hour,
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", handler.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", handler.RequestIDHeader},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}
}

func healthz(status LedgerStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger": "unmonitored"})
			return
		}
		s, block := status.Status()
		body := gin.H{"status": "ok", "ledger": s.String()}
		if s == health.StatusHealthy {
			body["block"] = block
		}
		if s == health.StatusDegraded {
			body["status"] = "degraded"
		}
		// The viewer still serves catalog pages when the ledger is down.
		c.JSON(http.StatusOK, body)
	}
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
