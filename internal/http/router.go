// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, compression, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected through Deps
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

	"github.com/bitafam/terrenos/internal/config"
	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/http/handlers"
	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/media"
	"github.com/bitafam/terrenos/internal/notify"
	"github.com/bitafam/terrenos/internal/repo"
	"github.com/bitafam/terrenos/internal/services"
	"github.com/bitafam/terrenos/internal/session"
)

// listingRepoShim adapts the repository free functions to the
// services.ListingRepo interface expected by the ListingService.
type listingRepoShim struct{}

// CreateListing proxies repo.CreateListing.
func (listingRepoShim) CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	return repo.CreateListing(ctx, db, l)
}

// ListListings proxies repo.ListListings.
func (listingRepoShim) ListListings(ctx context.Context, db *gorm.DB) ([]domain.Listing, error) {
	return repo.ListListings(ctx, db)
}

// ListListingsByOwner proxies repo.ListListingsByOwner.
func (listingRepoShim) ListListingsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Listing, error) {
	return repo.ListListingsByOwner(ctx, db, ownerID)
}

// GetListing proxies repo.GetListing.
func (listingRepoShim) GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	return repo.GetListing(ctx, db, id)
}

// UpdateListing proxies repo.UpdateListing.
func (listingRepoShim) UpdateListing(ctx context.Context, db *gorm.DB, id, ownerID string, l *domain.Listing) error {
	return repo.UpdateListing(ctx, db, id, ownerID, l)
}

// UpdateListingStatus proxies repo.UpdateListingStatus.
func (listingRepoShim) UpdateListingStatus(ctx context.Context, db *gorm.DB, id, ownerID string, status domain.ListingStatus) error {
	return repo.UpdateListingStatus(ctx, db, id, ownerID, status)
}

// DeleteListing proxies repo.DeleteListing.
func (listingRepoShim) DeleteListing(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return repo.DeleteListing(ctx, db, id, ownerID)
}

// GetIdempotency proxies repo.GetIdempotency.
func (listingRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, now)
}

// CreateIdempotency proxies repo.CreateIdempotency.
func (listingRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, listingID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, listingID, status, ttl)
}

// inquiryRepoShim adapts the repository free functions to services.InquiryRepo.
type inquiryRepoShim struct{}

func (inquiryRepoShim) GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	return repo.GetListing(ctx, db, id)
}

func (inquiryRepoShim) CreateInquiry(ctx context.Context, db *gorm.DB, in *domain.Inquiry) error {
	return repo.CreateInquiry(ctx, db, in)
}

func (inquiryRepoShim) MarkInquirySent(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkInquirySent(ctx, db, id)
}

// Deps are the collaborators RegisterRoutes wires into services and handlers.
type Deps struct {
	DB       *gorm.DB
	Config   config.Config
	Media    media.Store
	Sessions *session.Manager
	// Notifier forwards inquiries; nil logs them instead.
	Notifier notify.Notifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), session
// resolution, idempotency and rate limiting, CORS, compression and security
// headers, health, metrics and docs endpoints, and then mounts the public
// API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Authenticate: attach the session, if any (rate limiter keys on it)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, gzip and security headers
func RegisterRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	db := deps.DB
	manager := deps.Sessions

	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit; multipart uploads are the largest bodies.
	maxBody := cfg.Media.MaxBytes
	if maxBody <= 0 {
		maxBody = 32 << 20
	}
	r.Use(limitBody(maxBody))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Optional session
	r.Use(middleware.Authenticate(manager))

	// 8) Idempotency validation (before rate limiting)
	base := normalizeBase(cfg.APIBasePath)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scopes: map[string]string{
				http.MethodPost + " " + base + "/listings": services.IdempotencyScopeCreate,
			},
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotent-Replay"}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
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
		// Credentials are allowed here so the session cookie reaches the API.
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compress JSON; /metrics negotiates its own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "Página no encontrada.")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "Método no permitido.")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/media/sessions
	listingSvc := services.NewListingService(db, listingRepoShim{}, deps.Media, manager)
	inquirySvc := services.NewInquiryService(db, inquiryRepoShim{}, deps.Notifier)
	h := handlers.New(listingSvc, inquirySvc, manager, handlers.Options{
		PageSize:       cfg.PageSize,
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxUploadBytes: maxBody,
		SecureCookie:   cfg.Security.EnableHSTS,
		Contact: handlers.Contact{
			Email: cfg.Contact.Email,
			Phone: cfg.Contact.Phone,
		},
	})

	guard := middleware.RequireSession(manager, middleware.GuardOptions{})

	// Public API
	api := groupWithPrefix(r, base)
	{
		// Session
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", guard, h.Logout)
		api.GET("/auth/session", guard, h.CurrentSession)

		// Listing queries
		api.GET("/listings", h.ListListings)
		api.GET("/listings/split", h.SplitListings)
		api.GET("/listings/:id", h.GetListing)
		api.GET("/me/listings", guard, h.MyListings)

		// Listing mutations
		api.POST("/listings", guard, h.CreateListing)
		api.PUT("/listings/:id", guard, h.UpdateListing)
		api.PATCH("/listings/:id/status", guard, h.SetListingStatus)
		api.DELETE("/listings/:id", guard, h.DeleteListing)

		// Inquiries
		api.POST("/listings/:id/inquiries", h.PostInquiry)
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

// normalizeBase maps "/" to "" so scoped route keys never contain "//".
func normalizeBase(p string) string {
	if p == "/" {
		return ""
	}
	return p
}
