// Package services – ListingService
//
// This file implements ListingService, which owns the listing lifecycle:
// the read paths used by the catalog views and the create/update pipeline
// that uploads images, resolves the cover and writes the record.
//
// A submission moves Idle → UploadingMedia → WritingRecord → Done, or to
// Failed from any non-terminal state. Objects uploaded by a failed
// submission are deleted again on a best-effort basis. Ownership is checked
// before any upload or remote delete.
//
// Observability: public methods are OpenTelemetry-instrumented and counted in
// listing_mutations_total / media_uploads_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/media"
	"github.com/bitafam/terrenos/internal/repo"
)

// IdempotencyScopeCreate scopes Idempotency-Key records of listing creation.
const IdempotencyScopeCreate = "listings:create"

// ListingRepo defines the repository contract required by ListingService.
type ListingRepo interface {
	// CreateListing inserts l, assigning its ID and timestamps.
	CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error

	// ListListings returns every listing, newest first.
	ListListings(ctx context.Context, db *gorm.DB) ([]domain.Listing, error)

	// ListListingsByOwner returns the listings of ownerID, newest first.
	ListListingsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Listing, error)

	// GetListing fetches one listing by ID.
	GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error)

	// UpdateListing overwrites a listing, scoped by id and owner.
	UpdateListing(ctx context.Context, db *gorm.DB, id, ownerID string, l *domain.Listing) error

	// UpdateListingStatus sets the status, scoped by id and owner.
	UpdateListingStatus(ctx context.Context, db *gorm.DB, id, ownerID string, status domain.ListingStatus) error

	// DeleteListing removes a listing, scoped by id and owner.
	DeleteListing(ctx context.Context, db *gorm.DB, id, ownerID string) error

	// GetIdempotency returns a live idempotency record.
	GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error)

	// CreateIdempotency stores an idempotency record.
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, listingID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// Registry answers whether a user may publish.
type Registry interface {
	IsRegistered(ctx context.Context, userID string) (bool, error)
}

// ListingService provides listing queries and mutations.
type ListingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the listing repository used by this service.
	Repo ListingRepo
	// Media stores uploaded images.
	Media media.Store
	// Users is consulted before a listing is created. Nil skips the check.
	Users Registry

	// Now is the clock used for object keys and idempotency lookups.
	Now func() time.Time

	running inflight
}

// NewListingService constructs a ListingService.
func NewListingService(db *gorm.DB, r ListingRepo, store media.Store, users Registry) *ListingService {
	return &ListingService{
		DB:    db,
		Repo:  r,
		Media: store,
		Users: users,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListAll returns every listing, newest first. Filtering and pagination are
// applied by the caller.
func (s *ListingService) ListAll(ctx context.Context) ([]domain.Listing, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "ListAll")
	defer span.End()

	ls, err := s.Repo.ListListings(ctx, s.DB)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("listings.count", len(ls)))
	return ls, nil
}

// ListByOwner returns the listings published by ownerID, newest first.
func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "ListByOwner",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	return s.Repo.ListListingsByOwner(ctx, s.DB, ownerID)
}

// Get returns one listing.
func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("listing.id", id)),
	)
	defer span.End()

	l, err := s.Repo.GetListing(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

// Create publishes a new listing owned by userID. At least one file or image
// URL is required; the cover defaults to the first image.
func (s *ListingService) Create(ctx context.Context, userID string, in ListingInput, files []MediaFile) (*domain.Listing, error) {
	l, _, err := s.create(ctx, userID, in, files)
	return l, err
}

func (s *ListingService) create(ctx context.Context, userID string, in ListingInput, files []MediaFile) (*domain.Listing, *Submission, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("files", len(files)),
		),
	)
	defer span.End()

	sub := newSubmission("create")
	l, err := s.runCreate(ctx, sub, userID, in, files)
	observeMutation("create", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return l, sub, err
}

func (s *ListingService) runCreate(ctx context.Context, sub *Submission, userID string, in ListingInput, files []MediaFile) (*domain.Listing, error) {
	f, err := in.validate()
	if err != nil {
		return nil, sub.fail(err)
	}
	if len(files) == 0 && len(f.imageURLs) == 0 {
		return nil, sub.fail(ErrCoverRequired)
	}
	if err := s.checkExternal(f.imageURLs, nil); err != nil {
		return nil, sub.fail(err)
	}
	if userID == "" {
		return nil, sub.fail(ErrNotAuthenticated)
	}
	if s.Users != nil {
		ok, err := s.Users.IsRegistered(ctx, userID)
		if err != nil {
			return nil, sub.fail(fmt.Errorf("check registry: %w", err))
		}
		if !ok {
			return nil, sub.fail(ErrUnknownUser)
		}
	}

	key := inflightKey(userID, "")
	if !s.running.acquire(key) {
		return nil, sub.fail(ErrSubmissionInFlight)
	}
	defer s.running.release(key)

	uploaded, err := s.upload(ctx, sub, files)
	if err != nil {
		return nil, err
	}
	urls := appendUnique(uploaded, f.imageURLs...)

	l := &domain.Listing{
		OwnerID:     userID,
		Title:       f.title,
		Description: f.description,
		Location:    f.location,
		Price:       f.price,
		Area:        f.area,
		Type:        f.typ,
		Status:      f.status,
		ImageURLs:   urls,
		CoverURL:    ResolveCover(urls, pickCover(in, urls, "")),
		Details:     f.details,
	}

	if err := sub.advance(StateWritingRecord); err != nil {
		return nil, s.abort(ctx, sub, err)
	}
	if err := s.Repo.CreateListing(ctx, s.DB, l); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("insert listing failed")
		return nil, s.abort(ctx, sub, err)
	}
	if err := sub.advance(StateDone); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("listing_id", l.ID).
		Str("user_id", userID).
		Int("images", len(l.ImageURLs)).
		Msg("listing created")
	return l, nil
}

// Update replaces the editable fields of a listing owned by userID. Images in
// RemoveImages are dropped, new files and URLs are appended, and the cover is
// re-resolved against the resulting sequence.
func (s *ListingService) Update(ctx context.Context, userID, id string, in ListingInput, files []MediaFile) (*domain.Listing, error) {
	l, _, err := s.update(ctx, userID, id, in, files)
	return l, err
}

func (s *ListingService) update(ctx context.Context, userID, id string, in ListingInput, files []MediaFile) (*domain.Listing, *Submission, error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("listing.id", id),
			attribute.Int("files", len(files)),
		),
	)
	defer span.End()

	sub := newSubmission("update")
	l, err := s.runUpdate(ctx, sub, userID, id, in, files)
	observeMutation("update", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return l, sub, err
}

func (s *ListingService) runUpdate(ctx context.Context, sub *Submission, userID, id string, in ListingInput, files []MediaFile) (*domain.Listing, error) {
	f, err := in.validate()
	if err != nil {
		return nil, sub.fail(err)
	}
	if userID == "" {
		return nil, sub.fail(ErrNotAuthenticated)
	}
	current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, sub.fail(err)
	}
	if err := s.checkExternal(f.imageURLs, current.ImageURLs); err != nil {
		return nil, sub.fail(err)
	}

	key := inflightKey(userID, id)
	if !s.running.acquire(key) {
		return nil, sub.fail(ErrSubmissionInFlight)
	}
	defer s.running.release(key)

	uploaded, err := s.upload(ctx, sub, files)
	if err != nil {
		return nil, err
	}
	kept := without(current.ImageURLs, in.RemoveImages)
	urls := appendUnique(appendUnique(kept, uploaded...), f.imageURLs...)

	status := current.Status
	if f.hasStatus {
		status = f.status
	}
	l := &domain.Listing{
		ID:          current.ID,
		OwnerID:     current.OwnerID,
		Title:       f.title,
		Description: f.description,
		Location:    f.location,
		Price:       f.price,
		Area:        f.area,
		Type:        f.typ,
		Status:      status,
		ImageURLs:   urls,
		CoverURL:    ResolveCover(urls, pickCover(in, urls, current.CoverURL)),
		Details:     f.details,
		CreatedAt:   current.CreatedAt,
	}

	if err := sub.advance(StateWritingRecord); err != nil {
		return nil, s.abort(ctx, sub, err)
	}
	if err := s.Repo.UpdateListing(ctx, s.DB, id, userID, l); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = ErrListingNotFound
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("listing_id", id).Msg("update listing failed")
		return nil, s.abort(ctx, sub, err)
	}
	if err := sub.advance(StateDone); err != nil {
		return nil, err
	}

	// Images dropped from the listing are no longer referenced anywhere.
	s.deleteObjects(ctx, s.ownedKeys(without(current.ImageURLs, urls)))

	zerolog.Ctx(ctx).Info().Str("listing_id", id).Str("user_id", userID).Msg("listing updated")
	return l, nil
}

// Delete removes a listing owned by userID and then its stored images.
// Ownership is verified before anything is deleted.
func (s *ListingService) Delete(ctx context.Context, userID, id string) (err error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("listing.id", id),
		),
	)
	defer span.End()
	defer func() { observeMutation("delete", err) }()

	if userID == "" {
		return ErrNotAuthenticated
	}
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteListing(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrListingNotFound
		}
		span.RecordError(err)
		return err
	}
	s.deleteObjects(ctx, s.ownedKeys(l.ImageURLs))

	zerolog.Ctx(ctx).Info().Str("listing_id", id).Str("user_id", userID).Msg("listing deleted")
	return nil
}

// SetStatus changes the status of a listing owned by userID. An empty status
// toggles between available and sold.
func (s *ListingService) SetStatus(ctx context.Context, userID, id, status string) (_ *domain.Listing, err error) {
	tr := otel.Tracer("services/ListingService")
	ctx, span := tr.Start(ctx, "SetStatus",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("listing.id", id),
		),
	)
	defer span.End()
	defer func() { observeMutation("status", err) }()

	var next domain.ListingStatus
	if status != "" {
		st, ok := domain.ParseListingStatus(status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		next = st
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if next == "" {
		next = l.Status.Toggled()
	}
	if err := s.Repo.UpdateListingStatus(ctx, s.DB, id, userID, next); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	l.Status = next
	l.UpdatedAt = s.Now()
	return l, nil
}

// FindCreated returns the listing a previous create with the same
// Idempotency-Key produced, if its record is still live.
func (s *ListingService) FindCreated(ctx context.Context, userID, key string) (*domain.Listing, bool) {
	if key == "" {
		return nil, false
	}
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, userID, IdempotencyScopeCreate, key, s.Now())
	if err != nil || rec == nil || rec.ListingID == "" {
		return nil, false
	}
	l, err := s.Repo.GetListing(ctx, s.DB, rec.ListingID)
	if err != nil {
		return nil, false
	}
	return l, true
}

// RememberCreated records that key produced listingID. Failures are logged
// only; the listing itself is already stored.
func (s *ListingService) RememberCreated(ctx context.Context, userID, key, listingID string, status int, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	if _, err := s.Repo.CreateIdempotency(ctx, s.DB, userID, IdempotencyScopeCreate, key, listingID, status, ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("listing_id", listingID).Msg("store idempotency record failed")
	}
}

// owned loads id and checks that userID owns it.
func (s *ListingService) owned(ctx context.Context, userID, id string) (*domain.Listing, error) {
	l, err := s.Repo.GetListing(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if l.OwnerID != userID {
		return nil, ErrForbidden
	}
	return l, nil
}

// upload stores files one after another and returns their public URLs in
// order. The first failure aborts the submission.
func (s *ListingService) upload(ctx context.Context, sub *Submission, files []MediaFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.Media == nil {
		return nil, sub.fail(fmt.Errorf("%w: no media store configured", ErrMediaUpload))
	}
	if err := sub.advance(StateUploadingMedia); err != nil {
		return nil, sub.fail(err)
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := media.ObjectKey(s.Now(), f.Name)
		if err := s.Media.Put(ctx, key, f.Body, f.Size, f.ContentType); err != nil {
			mediaUploads.WithLabelValues("error").Inc()
			zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("image upload failed")
			return nil, s.abort(ctx, sub, fmt.Errorf("%w: %v", ErrMediaUpload, err))
		}
		mediaUploads.WithLabelValues("ok").Inc()
		sub.Uploaded = append(sub.Uploaded, key)
		urls = append(urls, s.Media.PublicURL(key))
	}
	return urls, nil
}

// abort fails sub and removes every object it uploaded.
func (s *ListingService) abort(ctx context.Context, sub *Submission, err error) error {
	if len(sub.Uploaded) > 0 {
		// The request may already be canceled; cleanup must still run.
		s.deleteObjects(context.WithoutCancel(ctx), sub.Uploaded)
	}
	return sub.fail(err)
}

// checkExternal rejects submitted image URLs that point into the media store
// unless the listing already holds them. Stored objects are deleted together
// with the listing that references them, so a listing may only reference
// objects it uploaded itself.
func (s *ListingService) checkExternal(urls, have []string) error {
	if s.Media == nil {
		return nil
	}
	for _, u := range urls {
		if _, stored := s.Media.KeyFromURL(u); !stored {
			continue
		}
		if !slices.Contains(have, u) {
			return invalid("image_urls", "La imagen no pertenece a este terreno: "+u)
		}
	}
	return nil
}

func (s *ListingService) ownedKeys(urls []string) []string {
	if s.Media == nil {
		return nil
	}
	var keys []string
	for _, u := range urls {
		if k, ok := s.Media.KeyFromURL(u); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *ListingService) deleteObjects(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.Media.Delete(ctx, k); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", k).Msg("media cleanup failed")
		}
	}
}
