// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/config"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/http/handlers"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/http/middleware"
	"github.com/s99865834-alt/dm-checkout-ai-sub001/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. The provider is the outbound messaging client used by the reply
// and follow-up paths; tests inject a fake.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per shop/IP)
//  8. CORS, gzip, and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, provider services.Provider, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per shop/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByShopOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Shop-Domain"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Shop-Domain"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compress API responses; the redirect endpoint carries no body worth it
	// but gzip negotiation is harmless there.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (off by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/provider
	claimSvc := &services.ClaimService{DB: db}
	intakeSvc := &services.IntakeService{DB: db, Claims: claimSvc, MinConfidence: cfg.MinConfidence}
	attrSvc := &services.AttributionService{DB: db}
	followupSvc := &services.FollowupService{
		DB:            db,
		Provider:      provider,
		WindowFarAge:  cfg.Followup.WindowFar,
		WindowNearAge: cfg.Followup.WindowNear,
	}
	queueSvc := &services.QueueService{
		DB:          db,
		Provider:    provider,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseBackoff: cfg.Queue.BaseBackoff,
	}
	analyticsSvc := &services.AnalyticsService{DB: db}
	settingsSvc := &services.SettingsService{DB: db}

	h := handlers.New(db, intakeSvc, attrSvc, followupSvc, queueSvc, analyticsSvc, settingsSvc)

	// Tracked-link redirect lives at the root: the short URL shoppers click.
	r.GET("/l/:linkID", h.HandleRedirect)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Provider webhooks
		api.POST("/webhooks/message", h.HandleMessageWebhook)
		api.POST("/webhooks/order", h.HandleOrderWebhook)
		api.POST("/webhooks/uninstall", h.HandleUninstallWebhook)

		// Tenant lifecycle and settings
		api.POST("/shops", h.HandleInstallShop)
		api.GET("/shops/:id/settings", h.HandleGetSettings)
		api.PUT("/shops/:id/settings", h.HandleUpdateSettings)

		// Analytics
		api.GET("/shops/:id/analytics", h.HandleAnalytics)

		// Queue introspection
		api.GET("/queue/overview", h.HandleQueueOverview)
		api.GET("/queue/items", h.HandleQueueItems)

		// Manual job triggers (ops)
		api.POST("/jobs/followups/run", h.HandleRunFollowups)
		api.POST("/jobs/queue/run", h.HandleRunQueue)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
