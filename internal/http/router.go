// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Besides the versioned REST API it mounts the channel endpoints: the
// websocket used by the web client, the Twilio WhatsApp and voice webhooks,
// synthesized audio under /tts and the static web client.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/claudioaldrian-source/asistente-macla-ia/docs"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/handlers"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/middleware"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
)

// Deps are the collaborators mounted by RegisterRoutes.
type Deps struct {
	API handlers.Deps

	// Realtime serves the websocket endpoint; nil leaves /ws unmounted.
	Realtime http.Handler

	// Signature checks Twilio webhook signatures when
	// cfg.Twilio.ValidateSignature is set.
	Signature middleware.SignatureVerifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (never on the websocket upgrade)
//  8. Identity from X-User-ID
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per identity, Twilio sender or IP; bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(cfg.APIBasePath))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; a gzip writer cannot be hijacked for the websocket.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics", "/tts"})))

	// 8) Caller identity
	r.Use(middleware.Identity())

	// 9) Idempotency validation (before rate limiting)
	db := d.API.DB
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, identity, scope, key string, now time.Time) (bool, error) {
			if db == nil {
				return false, nil
			}
			rec, err := repo.GetIdempotency(ctx, db, identity, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIdentityOrIP(), "/health", "/metrics", "/tts/")
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers: no-store on dynamic replies, HSTS only on HTTPS
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{cfg.APIBasePath, "/webhook/", handlers.VoiceAction},
		EnablePolicy:    true,
	}))

	// Fallbacks: the static web client, then a JSON 404.
	r.NoRoute(func(c *gin.Context) {
		if m := c.Request.Method; m == http.MethodGet || m == http.MethodHead {
			if f := publicFile(cfg.PublicDir, c.Request.URL.Path); f != "" {
				c.File(f)
				return
			}
		}
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(d.API)

	// Interactive web sessions
	if d.Realtime != nil {
		r.GET("/ws", gin.WrapH(d.Realtime))
	}

	// Twilio channels
	var webhook []gin.HandlerFunc
	if cfg.Twilio.ValidateSignature && d.Signature != nil {
		webhook = append(webhook, middleware.TwilioSignature(d.Signature, cfg.PublicBaseURL))
	}
	r.POST("/webhook/whatsapp", append(webhook, h.WhatsAppWebhook)...)
	r.POST(handlers.VoiceAction, append(webhook, h.ProcessVoice)...)
	if cfg.TTSDir != "" {
		r.Static("/tts", cfg.TTSDir)
	}

	// Dev helpers
	r.GET("/dev/calendar/test", h.CalendarTest)

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Reminders
		api.POST("/reminders", h.CreateReminder)
		api.GET("/reminders", h.ListReminders)
		api.GET("/reminders/:id", h.GetReminder)

		// Preferences
		api.GET("/users/me/prefs", h.GetPrefs)
		api.PATCH("/users/me/prefs", h.PatchPrefs)

		// Conversation memory
		api.GET("/conversation/turns", h.ListTurns)
		api.DELETE("/conversation", h.ResetConversation)
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

// publicFile maps a request path to a regular file under dir, serving
// index.html for "/". It returns "" when dir is unset or nothing matches.
func publicFile(dir, urlPath string) string {
	if dir == "" {
		return ""
	}
	p := path.Clean("/" + urlPath)
	if p == "/" {
		p = "/index.html"
	}
	f := filepath.Join(dir, filepath.FromSlash(p))
	if fi, err := os.Stat(f); err != nil || !fi.Mode().IsRegular() {
		return ""
	}
	return f
}
