// Package httpapi wires the HTTP transport (Gin) to the settlement engine,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// caller identity, idempotency, rate limiting, compression, CORS and security
// headers.
package httpapi

import (
	"context"
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

	"github.com/tbourn/go-chat-ledger/internal/config"
	"github.com/tbourn/go-chat-ledger/internal/http/handlers"
	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// allowHeaders are the request headers browsers may send cross-origin.
var allowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	middleware.HeaderCaller, middleware.HeaderIdempotencyKey, "If-None-Match",
}

// exposeHeaders are the response headers readable by browser clients.
var exposeHeaders = []string{
	"X-Request-ID", "Content-Length", "ETag",
	middleware.HeaderIdempotencyReplayed, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the ledger API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CallerIdentity: resolve X-Caller-Address (idempotency and rate limit key on it)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per caller/IP, bypass on replay)
//  10. Compression, CORS and security headers
func RegisterRoutes(r *gin.Engine, svc handlers.LedgerService, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.CallerIdentity())
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, caller, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, caller, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByCallerOrIP())
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc, db, cfg.IdempotencyTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Admin (owner only)
		api.POST("/admin/mint", h.Mint)
		api.PUT("/admin/spenders/:address", h.SetSpender)
		api.PUT("/admin/chatbots/:id", h.RegisterChatbot)

		// Settlements
		api.POST("/messages", h.PostMessage)
		api.POST("/rewards/daily", h.ClaimDailyReward)
		api.POST("/purchases", h.BuyTokens)
		api.POST("/earnings/withdraw", h.WithdrawEarnings)
		api.POST("/transfers", h.Transfer)
		api.POST("/burn", h.Burn)

		// Reads
		api.GET("/balances/:address", h.GetBalance)
		api.GET("/supply", h.GetSupply)
		api.GET("/spenders/:address", h.GetSpender)
		api.GET("/usage/:address", h.GetUsage)
		api.GET("/earnings/:address", h.GetEarnings)
		api.GET("/pool", h.GetPool)
		api.GET("/chatbots/:id", h.GetChatbot)
		api.GET("/limits", h.GetLimits)
		api.GET("/purchase-info", h.GetPurchaseInfo)
		api.GET("/settlements", h.ListSettlements)
		api.GET("/settlements/:id", h.GetSettlement)
	}
}

// health reports liveness and whether the database answers a ping. It
// returns 503 when the store is unreachable.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, dbState := http.StatusOK, "ok"
		if db == nil {
			dbState = "unconfigured"
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, dbState = http.StatusServiceUnavailable, "unreachable"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "db": dbState})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
