// Package httpapi wires the HTTP transport (Gin) to the feed cache services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gfycat/feedcore/internal/config"
	"github.com/gfycat/feedcore/internal/http/handlers"
	"github.com/gfycat/feedcore/internal/http/middleware"
)

// Services bundles the application services the router depends on.
type Services struct {
	Feeds      handlers.FeedService
	Categories handlers.CategoriesService
	Media      handlers.MediaService
	Moderation handlers.ModerationService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), rate limiting, CORS, compression,
// health and metrics endpoints, and the versioned public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Gzip compression
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. CORS
func RegisterRoutes(r *gin.Engine, svcs Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Response compression; media files are already compressed formats
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^.*/media/.*$`})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(svcs.Feeds, svcs.Categories, svcs.Media, svcs.Moderation)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Feeds
		api.GET("/feeds", h.GetFeed)
		api.POST("/feeds/refresh", h.RefreshFeed)
		api.POST("/feeds/more", h.MoreFeed)
		api.POST("/feeds/new", h.NewFeedItems)
		api.DELETE("/feeds", h.DropFeed)

		// Items
		api.GET("/gfycats/:id", h.GetGfycat)

		// Recent feed
		api.POST("/recent", h.AddRecent)
		api.DELETE("/recent/:id", h.RemoveRecent)

		// Categories
		api.GET("/categories", h.GetCategories)
		api.DELETE("/categories", h.DropCategories)

		// Media
		api.GET("/media/:id/:type", h.GetMedia)

		// Moderation
		api.PUT("/moderation/gfycats/:id/deleted", h.MarkDeleted)
		api.PUT("/moderation/gfycats/:id/published", h.MarkPublished)
		api.PUT("/moderation/gfycats/:id/nsfw", h.MarkNsfw)
		api.PUT("/moderation/gfycats/:id/blocked", h.BlockItem)
		api.PUT("/moderation/users/:name/blocked", h.BlockUser)
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
