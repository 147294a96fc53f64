// Listing mutation HTTP handlers.
//
// This file exposes the write side of the catalog, all behind the session
// guard:
//   - POST   /listings              (publish; optional Idempotency-Key)
//   - PUT    /listings/{id}         (edit)
//   - PATCH  /listings/{id}/status  (set or toggle status)
//   - DELETE /listings/{id}         (remove; requires confirm=true)
//
// Create and edit accept multipart/form-data with image files, or JSON when
// every image is an external URL.
package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/services"
)

// Multipart field holding uploaded images.
const formImages = "images"

//
// DTOs
//

// ListingRequest is the JSON payload for creating or editing a listing.
// Multipart requests use the same field names as form fields.
type ListingRequest struct {
	Title       string      `json:"title"       example:"Lote en Carabayllo"`
	Description string      `json:"description" example:"Terreno plano con vista al valle."`
	Location    string      `json:"location"    example:"Carabayllo, Lima"`
	Price       json.Number `json:"price"       swaggertype:"number" example:"95000"`
	Area        json.Number `json:"area"        swaggertype:"number" example:"200"`
	Type        string      `json:"type"        example:"urban"`
	Status      string      `json:"status"      example:"available"`

	Details domain.Details `json:"details"`

	// ImageURLs are external images (jpg, jpeg, png, webp or gif).
	ImageURLs []string `json:"image_urls"`
	// Cover selects the cover by URL; CoverIndex by position.
	Cover      string `json:"cover"`
	CoverIndex *int   `json:"cover_index"`
	// RemoveImages drops stored images on edit.
	RemoveImages []string `json:"remove_images"`
}

// SetStatusRequest is the JSON payload for PATCH /listings/{id}/status.
// An empty status toggles between available and sold.
type SetStatusRequest struct {
	Status string `json:"status" example:"sold"`
}

func (r ListingRequest) input() services.ListingInput {
	return services.ListingInput{
		Title:        r.Title,
		Description:  r.Description,
		Location:     r.Location,
		Price:        r.Price.String(),
		Area:         r.Area.String(),
		Type:         r.Type,
		Status:       r.Status,
		Details:      r.Details,
		ImageURLs:    r.ImageURLs,
		Cover:        r.Cover,
		CoverIndex:   r.CoverIndex,
		RemoveImages: r.RemoveImages,
	}
}

//
// Handlers
//

// CreateListing godoc
// @ID          createListing
// @Summary     Publish a listing
// @Description Uploads the images one by one, resolves the cover and stores the listing. At least one image (file or URL) is required. Repeating a request with the same Idempotency-Key returns the listing created the first time.
// @Tags        Listings
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header    string  false "Deduplicates retries"  example(3f1c9a7e-publicar)
// @Param       title            formData  string  true  "Title"
// @Param       description      formData  string  true  "Description"
// @Param       location         formData  string  true  "Location"
// @Param       price            formData  number  true  "Price"
// @Param       area             formData  number  false "Area in m²"
// @Param       type             formData  string  false "Listing type"  default(urban)
// @Param       images           formData  file    false "Image files, in display order"
// @Param       image_urls       formData  []string false "External image URLs"  collectionFormat(multi)
// @Param       cover            formData  string  false "Cover image URL"
// @Param       cover_index      formData  int     false "Cover position in the final image list"
//
// @Success     201  {object} domain.Listing
// @Failure     400  {object} handlers.ErrorResponse "Validation failed or cover required"
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Failure     403  {object} handlers.ErrorResponse "Unknown user"
// @Failure     409  {object} handlers.ErrorResponse "Submission in flight"
// @Failure     502  {object} handlers.ErrorResponse "Image upload failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings [post]
func (h *Handlers) CreateListing(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey {
		if l, found := h.listings.FindCreated(ctx, uid, key); found {
			c.Header("Idempotent-Replay", "true")
			ok(c, http.StatusCreated, l)
			return
		}
	}

	in, files, done, okIn := h.readListing(c)
	if !okIn {
		return
	}
	defer done()

	l, err := h.listings.Create(ctx, uid, in, files)
	if err != nil {
		failErr(c, err)
		return
	}
	if hasKey {
		h.listings.RememberCreated(ctx, uid, key, l.ID, http.StatusCreated, h.opts.IdempotencyTTL)
	}
	c.Header("Location", strings.TrimSuffix(c.FullPath(), "/")+"/"+l.ID)
	ok(c, http.StatusCreated, l)
}

// UpdateListing godoc
// @ID          updateListing
// @Summary     Edit a listing
// @Description Edits a listing owned by the current user. New files are appended after the kept images; remove_images drops stored ones. The cover is re-resolved against the final list.
// @Tags        Listings
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Listing ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ListingRequest  false "JSON payload (without files)"
// @Success     200  {object} domain.Listing
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Failure     409  {object} handlers.ErrorResponse "Submission in flight"
// @Failure     502  {object} handlers.ErrorResponse "Image upload failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/{id} [put]
func (h *Handlers) UpdateListing(c *gin.Context) {
	in, files, done, okIn := h.readListing(c)
	if !okIn {
		return
	}
	defer done()

	l, err := h.listings.Update(c.Request.Context(), userID(c), c.Param("id"), in, files)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// SetListingStatus godoc
// @ID          setListingStatus
// @Summary     Change listing status
// @Description Sets the status of a listing owned by the current user. Without a status it toggles available and sold; reserved listings become available.
// @Tags        Listings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Listing ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SetStatusRequest  false "Target status"
// @Success     200  {object} domain.Listing
// @Failure     400  {object} handlers.ErrorResponse "Invalid status"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Router      /listings/{id}/status [patch]
func (h *Handlers) SetListingStatus(c *gin.Context) {
	var req SetStatusRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody)
			return
		}
	}
	l, err := h.listings.SetStatus(c.Request.Context(), userID(c), c.Param("id"), strings.TrimSpace(req.Status))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// DeleteListing godoc
// @ID          deleteListing
// @Summary     Delete a listing
// @Description Deletes a listing owned by the current user and its stored images. The caller must confirm with confirm=true.
// @Tags        Listings
// @Produce     json
// @Security    BearerAuth
// @Param       id       path   string  true  "Listing ID (UUID)"  format(uuid)
// @Param       confirm  query  bool    true  "Explicit confirmation"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Confirmation required"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Router      /listings/{id} [delete]
func (h *Handlers) DeleteListing(c *gin.Context) {
	if !truthy(c.Query("confirm")) {
		fail(c, http.StatusBadRequest, ErrCodeConfirmationRequired, "Confirma que deseas eliminar este terreno.")
		return
	}
	if err := h.listings.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

//
// Input decoding
//

// readListing decodes a create/edit submission. On failure it has already
// written the response. done closes any opened upload.
func (h *Handlers) readListing(c *gin.Context) (in services.ListingInput, files []services.MediaFile, done func(), okIn bool) {
	done = func() {}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		var req ListingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody)
			return in, nil, done, false
		}
		return req.input(), nil, done, true
	}

	if err := c.Request.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No se pudo leer el formulario.")
		return in, nil, done, false
	}
	form := c.Request.MultipartForm
	in, err := listingFromForm(form)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return in, nil, done, false
	}

	var opened []multipart.File
	done = func() {
		for _, f := range opened {
			_ = f.Close()
		}
		_ = form.RemoveAll()
	}
	for _, fh := range form.File[formImages] {
		f, err := fh.Open()
		if err != nil {
			done()
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No se pudo leer la imagen "+fh.Filename+".")
			return in, nil, func() {}, false
		}
		opened = append(opened, f)
		files = append(files, services.MediaFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return in, files, done, true
}

// formError is a user-facing form decoding error.
type formError string

func (e formError) Error() string { return string(e) }

// listingFromForm maps multipart fields onto a ListingInput.
func listingFromForm(form *multipart.Form) (services.ListingInput, error) {
	get := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	in := services.ListingInput{
		Title:       get("title"),
		Description: get("description"),
		Location:    get("location"),
		Price:       get("price"),
		Area:        get("area"),
		Type:        get("type"),
		Status:      get("status"),
		Details: domain.Details{
			Dimensions:    get("dimensions"),
			Terrain:       get("terrain"),
			Access:        get("access"),
			Zoning:        get("zoning"),
			Services:      get("services"),
			Documentation: get("documentation"),
		},
		ImageURLs:    multiValue(form.Value["image_urls"]),
		Cover:        get("cover"),
		RemoveImages: multiValue(form.Value["remove_images"]),
	}
	if raw := strings.TrimSpace(get("cover_index")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return in, formError("La posición de la portada no es válida.")
		}
		in.CoverIndex = &n
	}
	return in, nil
}

// multiValue accepts both repeated fields and a single newline or comma
// separated field.
func multiValue(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.FieldsFunc(v, func(r rune) bool { return r == '\n' || r == ',' }) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
