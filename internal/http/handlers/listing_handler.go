// Listing query HTTP handlers.
//
// This file exposes the read side of the catalog:
//   - GET /listings            (browse: filter, search, page; ETag support)
//   - GET /listings/split      (mine vs. others)
//   - GET /listings/{id}       (detail with contact links)
//   - GET /me/listings         (listings of the current user)
//
// Listings are always fetched whole from the store; filtering and page
// slicing happen in memory through a catalog.Browser built per request.
package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/catalog"
	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/repo"
	"github.com/bitafam/terrenos/internal/services"
)

// notSpecified replaces empty technical descriptors on the detail view.
const notSpecified = "No especificado"

//
// DTOs
//

// ListListingsResponse is one catalog page plus the filter that produced it.
type ListListingsResponse struct {
	catalog.Page
	Type   string `json:"type"   example:"urban"`
	Price  string `json:"price"  example:"medium"`
	Search string `json:"search" example:"carabayllo"`
}

// SplitListingsResponse separates the caller's listings from the rest.
type SplitListingsResponse struct {
	Mine   []domain.Listing `json:"mine"`
	Others []domain.Listing `json:"others"`
}

// ListingDetail is the display form of one listing.
type ListingDetail struct {
	domain.Listing
	// Images is the gallery; it falls back to the cover when empty.
	Images []string `json:"images"`
	// Display holds the technical descriptors with defaults applied.
	Display DetailDisplay `json:"display"`
	// Contact holds prefilled contact links for this listing.
	Contact ContactLinks `json:"contact"`
}

// DetailDisplay is Details with "No especificado" in place of blanks and the
// services list split on commas.
type DetailDisplay struct {
	Dimensions    string   `json:"dimensions"    example:"10 x 20 m"`
	Terrain       string   `json:"terrain"       example:"Plano"`
	Access        string   `json:"access"        example:"Pista asfaltada"`
	Zoning        string   `json:"zoning"        example:"Residencial"`
	Services      []string `json:"services"`
	Documentation string   `json:"documentation" example:"Título de propiedad"`
}

// ContactLinks are ready-to-open contact URLs.
type ContactLinks struct {
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
}

//
// Handlers
//

// ListListings godoc
// @ID          listListings
// @Summary     Browse listings
// @Description Returns one page of the catalog, newest first, after the type, price and search filters. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Listings
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"listings:3:1700000000000\")
// @Param       type           query   string  false "Listing type or alias (all|residential|commercial|industrial|countryside|rural|urban)"  example(urbano)
// @Param       price          query   string  false "Price bracket (all|low|medium|high, or bajo|medio|alto)"  example(medio)
// @Param       q              query   string  false "Search in title and location (case-insensitive)"  example(lurin)
// @Param       page           query   int     false "Page number"  minimum(1) default(1)
//
// @Success     200  {object} handlers.ListListingsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid filter"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings [get]
func (h *Handlers) ListListings(c *gin.Context) {
	ctx := c.Request.Context()

	f, err := catalog.ParseFilter(c.Query("type"), c.Query("price"), c.Query("q"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidFilter, "Filtro no válido.")
		return
	}
	page := pageParam(c)

	// ETag pre-check (best effort).
	if db := h.statsDB(); db != nil {
		if etag, err := catalogETag(c, db, "", f, page); err == nil && notModified(c, etag) {
			return
		}
	}

	b := catalog.NewBrowser(h.opts.PageSize)
	if err := b.Refresh(ctx, h.listings.ListAll); err != nil {
		failLoad(c, err)
		return
	}
	b.SetType(f.Type)
	b.SetPrice(f.Price)
	b.SetSearchInput(f.Search)
	b.CommitSearch()
	b.GoTo(page)

	ok(c, http.StatusOK, ListListingsResponse{
		Page:   b.Current(),
		Type:   string(f.Type),
		Price:  string(f.Price),
		Search: b.Filter().Search,
	})
}

// SplitListings godoc
// @ID          splitListings
// @Summary     Listings split by owner
// @Description Returns the caller's listings and everyone else's. Anonymous callers get every listing under "others".
// @Tags        Listings
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.SplitListingsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/split [get]
func (h *Handlers) SplitListings(c *gin.Context) {
	all, err := h.listings.ListAll(c.Request.Context())
	if err != nil {
		failLoad(c, err)
		return
	}
	mine, others := catalog.Split(all, userID(c))
	ok(c, http.StatusOK, SplitListingsResponse{Mine: nonNil(mine), Others: nonNil(others)})
}

// failLoad answers 500 load_failed for a catalog read that could not reach
// the store, keeping the cause in the request log.
func failLoad(c *gin.Context, err error) {
	middleware.LoggerFrom(c).Error().Err(err).Msg("list listings failed")
	fail(c, http.StatusInternalServerError, ErrCodeLoadFailed, "No se pudieron cargar los terrenos.")
}

// GetListing godoc
// @ID          getListing
// @Summary     Listing detail
// @Description Returns one listing with display defaults and prefilled WhatsApp and e-mail links.
// @Tags        Listings
// @Produce     json
// @Param       id   path  string  true  "Listing ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.ListingDetail
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/{id} [get]
func (h *Handlers) GetListing(c *gin.Context) {
	l, err := h.listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.detail(*l))
}

// MyListings godoc
// @ID          myListings
// @Summary     My listings
// @Description Returns every listing published by the current user, newest first.
// @Tags        Listings
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}  domain.Listing
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /me/listings [get]
func (h *Handlers) MyListings(c *gin.Context) {
	uid := userID(c)
	if db := h.statsDB(); db != nil && uid != "" {
		if etag, err := catalogETag(c, db, uid, catalog.Filter{}, 0); err == nil && notModified(c, etag) {
			return
		}
	}

	ls, err := h.listings.ListByOwner(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(ls))
}

//
// Helpers
//

// statsDB returns the record store behind the listing service, when the
// concrete service is in use.
func (h *Handlers) statsDB() *gorm.DB {
	if svc, ok := h.listings.(*services.ListingService); ok {
		return svc.DB
	}
	return nil
}

// catalogETag builds a weak ETag from the listing count, the newest
// UpdatedAt, and the view parameters that shape the body.
func catalogETag(c *gin.Context, db *gorm.DB, ownerID string, f catalog.Filter, page int) (string, error) {
	count, maxTS, err := repo.ListingsStats(c.Request.Context(), db, ownerID)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixMilli()
	}
	scope := "all"
	if ownerID != "" {
		scope = "owner:" + ownerID
	}
	view := url.Values{}
	view.Set("t", string(f.Type))
	view.Set("p", string(f.Price))
	view.Set("q", strings.ToLower(f.Search))
	return fmt.Sprintf(`W/"listings:%s:%d:%d:%d:%s"`, scope, count, ts, page, view.Encode()), nil
}

// detail builds the display form of l.
func (h *Handlers) detail(l domain.Listing) ListingDetail {
	images := []string(l.ImageURLs)
	if len(images) == 0 && l.CoverURL != "" {
		images = []string{l.CoverURL}
	}
	if images == nil {
		images = []string{}
	}
	return ListingDetail{
		Listing: l,
		Images:  images,
		Display: displayDetails(l.Details),
		Contact: contactLinks(h.opts.Contact, l.Title),
	}
}

func displayDetails(d domain.Details) DetailDisplay {
	return DetailDisplay{
		Dimensions:    orDefault(d.Dimensions),
		Terrain:       orDefault(d.Terrain),
		Access:        orDefault(d.Access),
		Zoning:        orDefault(d.Zoning),
		Services:      splitServices(d.Services),
		Documentation: orDefault(d.Documentation),
	}
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

// splitServices turns "Agua, Luz,Desagüe" into its trimmed, non-empty parts.
func splitServices(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// contactLinks builds the WhatsApp and Gmail compose links for a listing
// titled title. Either link is empty when its channel is not configured.
func contactLinks(ct Contact, title string) ContactLinks {
	var links ContactLinks
	if phone := digits(ct.Phone); phone != "" {
		msg := fmt.Sprintf("Hola, estoy interesado en el terreno %q. Por favor, contáctenme.", title)
		links.WhatsApp = "https://wa.me/" + phone + "?text=" + url.QueryEscape(msg)
	}
	if addr := strings.TrimSpace(ct.Email); addr != "" {
		q := url.Values{}
		q.Set("view", "cm")
		q.Set("fs", "1")
		q.Set("to", addr)
		q.Set("su", "Consulta sobre terreno: "+title)
		q.Set("body", fmt.Sprintf("Hola,\n\nEstoy interesado en obtener más información sobre el terreno %q. Por favor, contáctenme.\n\nGracias.", title))
		links.Email = "https://mail.google.com/mail/?" + q.Encode()
	}
	return links
}

// digits keeps only the decimal digits of a phone number.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nonNil(ls []domain.Listing) []domain.Listing {
	if ls == nil {
		return []domain.Listing{}
	}
	return ls
}
