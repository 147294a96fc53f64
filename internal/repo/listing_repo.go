// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Listing
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Filtering and pagination of the public
// catalog happen in memory (see package catalog), so the list queries here
// only order by creation time.
//
// Error semantics:
//   - When a listing is not found (or not owned by the caller for scoped
//     writes), functions return gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - CreateListing(ctx, db, l) -> error
//     Inserts l, assigning a UUID and UTC timestamps when missing.
//
//   - ListListings(ctx, db) -> []domain.Listing, error
//     Returns every listing, most recent first.
//
//   - ListListingsByOwner(ctx, db, ownerID) -> []domain.Listing, error
//     Returns the listings created by ownerID, most recent first.
//
//   - GetListing(ctx, db, id) -> *domain.Listing, error
//
//   - UpdateListing(ctx, db, id, ownerID, l) -> error
//     Overwrites the mutable columns, scoped by id AND owner_id.
//
//   - UpdateListingStatus(ctx, db, id, ownerID, status) -> error
//
//   - DeleteListing(ctx, db, id, ownerID) -> error
//     Hard-deletes the row, scoped by id AND owner_id.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateListing inserts l. When l.ID is empty a UUID is generated; CreatedAt
// and UpdatedAt default to the current UTC time.
func CreateListing(ctx context.Context, db *gorm.DB, l *domain.Listing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	if l.ImageURLs == nil {
		l.ImageURLs = []string{}
	}
	return db.WithContext(ctx).Create(l).Error
}

// ListListings returns every listing ordered by creation time descending.
// It returns an empty slice when the table is empty.
func ListListings(ctx context.Context, db *gorm.DB) ([]domain.Listing, error) {
	var out []domain.Listing
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListListingsByOwner returns the listings created by ownerID, most recent
// first.
func ListListingsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Listing, error) {
	var out []domain.Listing
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// GetListing fetches a single listing by ID. If the record does not exist, it
// returns ErrNotFound.
func GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateListing overwrites the mutable columns of the listing identified by id
// and owned by ownerID with the values in l. Zero values are written too, so
// an empty cover or a zero area replace what was stored. If no rows are
// affected it returns ErrNotFound.
func UpdateListing(ctx context.Context, db *gorm.DB, id, ownerID string, l *domain.Listing) error {
	urls := l.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	l.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{
			"title":         l.Title,
			"description":   l.Description,
			"location":      l.Location,
			"price":         l.Price,
			"area":          l.Area,
			"type":          l.Type,
			"status":        l.Status,
			"image_urls":    urls,
			"cover_url":     l.CoverURL,
			"dimensions":    l.Details.Dimensions,
			"terrain":       l.Details.Terrain,
			"access":        l.Details.Access,
			"zoning":        l.Details.Zoning,
			"services":      l.Details.Services,
			"documentation": l.Details.Documentation,
			"updated_at":    l.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateListingStatus sets the status of a listing owned by ownerID.
// If no rows are affected it returns ErrNotFound.
func UpdateListingStatus(ctx context.Context, db *gorm.DB, id, ownerID string, status domain.ListingStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteListing hard-deletes the listing identified by id and owned by
// ownerID. If no rows are affected it returns ErrNotFound.
func DeleteListing(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.Listing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
