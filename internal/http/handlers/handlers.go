// Package handlers exposes the REST endpoints of the marketplace.
//
// Handlers are transport-thin: they decode input, call application services,
// and translate results into HTTP responses (including conditional
// responses). Identity comes from the session middleware; handlers never
// parse tokens themselves except on the auth endpoints.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/catalog"
	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/services"
	"github.com/bitafam/terrenos/internal/session"
	"github.com/bitafam/terrenos/internal/utils"
)

//
// Service contracts (context-aware)
//

// ListingService defines the listing query and mutation pipelines consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ListingService interface {
	// ListAll returns every listing, newest first.
	ListAll(ctx context.Context) ([]domain.Listing, error)
	// ListByOwner returns the listings published by ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error)
	// Get returns one listing or services.ErrListingNotFound.
	Get(ctx context.Context, id string) (*domain.Listing, error)
	// Create uploads files, resolves the cover and inserts a listing.
	Create(ctx context.Context, userID string, in services.ListingInput, files []services.MediaFile) (*domain.Listing, error)
	// Update edits a listing owned by userID.
	Update(ctx context.Context, userID, id string, in services.ListingInput, files []services.MediaFile) (*domain.Listing, error)
	// Delete removes a listing owned by userID and its stored images.
	Delete(ctx context.Context, userID, id string) error
	// SetStatus sets or, when status is empty, toggles the listing status.
	SetStatus(ctx context.Context, userID, id, status string) (*domain.Listing, error)
	// FindCreated returns the listing recorded under an idempotency key.
	FindCreated(ctx context.Context, userID, key string) (*domain.Listing, bool)
	// RememberCreated records the listing created under an idempotency key.
	RememberCreated(ctx context.Context, userID, key, listingID string, status int, ttl time.Duration)
}

// InquiryService accepts contact requests for a listing.
type InquiryService interface {
	Submit(ctx context.Context, listingID string, in services.InquiryInput) (*domain.Inquiry, error)
}

// AuthService is the session context: sign-up, sign-in, sign-out and the
// current session.
type AuthService interface {
	SignUp(ctx context.Context, name, email, password string) (*session.Identity, error)
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignOut(ctx context.Context, token string) error
	Current(ctx context.Context, token string) (*session.Session, error)
}

//
// Handler wiring
//

// maxPageSize bounds Options.PageSize.
const maxPageSize = 100

// Contact holds the channels linked from a listing's detail page.
type Contact struct {
	Email string
	Phone string
}

// Options tunes handler behavior. Zero values select defaults.
type Options struct {
	// PageSize is the catalog page size (catalog.DefaultPageSize when 0).
	PageSize int
	// IdempotencyTTL is how long a create Idempotency-Key is remembered.
	IdempotencyTTL time.Duration
	// MaxUploadBytes bounds the multipart form held in memory.
	MaxUploadBytes int64
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	Contact      Contact
}

// Handlers groups HTTP endpoints for listings, inquiries, and sessions.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	listings  ListingService
	inquiries InquiryService
	auth      AuthService
	opts      Options
}

// New constructs and returns a Handlers instance bound to the given services.
func New(listings ListingService, inquiries InquiryService, auth AuthService, opts Options) *Handlers {
	if opts.PageSize <= 0 {
		opts.PageSize = catalog.DefaultPageSize
	}
	opts.PageSize = utils.ClampInt(opts.PageSize, 1, maxPageSize)
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Handlers{listings: listings, inquiries: inquiries, auth: auth, opts: opts}
}

// userID returns the identity attached by the session middleware, or "".
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}

//
// Helpers
//

// pageParam parses the 1-based page query parameter. The catalog clamps
// the upper bound once the filtered size is known.
func pageParam(c *gin.Context) int {
	return utils.ClampInt(utils.AtoiDefault(c.Query("page"), 1), 1, 0)
}

// truthy reports whether a query/form flag is set ("true", "1", "yes", "si").
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "si", "sí":
		return true
	}
	return false
}
