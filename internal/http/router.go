// Package httpapi wires the operator API (Gin) to the bot services. It owns
// the middleware chain: tracing, correlation IDs, logging, panic recovery,
// metrics, rate limiting, compression, CORS and admin auth.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-comic-bot/internal/config"
	"github.com/tbourn/go-comic-bot/internal/http/handlers"
	"github.com/tbourn/go-comic-bot/internal/http/middleware"
)

// RegisterRoutes attaches the middleware chain and every endpoint to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. BearerAuth (marks admin requests, never rejects)
//  4. Logger
//  5. Recovery
//  6. Body size limit
//  7. Metrics
//  8. Rate limiter (per admin or IP)
//  9. gzip
//  10. CORS
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.BearerAuth(cfg.AdminToken))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClient())
	r.Use(rl.Handler())

	// promhttp negotiates its own compression.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	methods := []string{"GET", "POST", "PUT", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
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
					hd := c.Writer.Header()
					hd.Set("Access-Control-Allow-Origin", origin)
					hd.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/comics", h.ListComics)
		api.GET("/comics/:id/tally", h.GetTally)

		api.GET("/guilds/:id", h.GetGuild)
		api.PUT("/guilds/:id", middleware.RequireAdmin(), h.UpdateGuild)

		admin := api.Group("/admin", middleware.RequireAdmin())
		admin.POST("/publish", h.Publish)
		admin.POST("/close", h.ClosePolls)
	}
}

// limitBody caps request bodies at maxBytes; oversized reads error out.
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
