// Package services holds the listing and inquiry business logic.
// This file centralizes the service-level error values so handlers can map
// them to HTTP results consistently.
//
// Translation into user-facing text happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Listing errors.
var (
	// ErrListingNotFound indicates the listing does not exist (or was removed
	// while the request was in progress).
	ErrListingNotFound = errors.New("listing not found")

	// ErrForbidden is returned when the caller does not own the listing it
	// tries to change.
	ErrForbidden = errors.New("listing belongs to another user")

	// ErrNotAuthenticated is returned by mutations invoked without an identity.
	ErrNotAuthenticated = errors.New("authentication required")

	// ErrUnknownUser is returned when the caller has no row in the users
	// registry and therefore cannot publish.
	ErrUnknownUser = errors.New("user is not registered")

	// ErrCoverRequired is returned by create when neither an uploaded file nor
	// an image URL was supplied.
	ErrCoverRequired = errors.New("a cover image is required")

	// ErrSubmissionInFlight rejects a second submission for the same owner and
	// listing while the first one is still running.
	ErrSubmissionInFlight = errors.New("a submission for this listing is already in progress")

	// ErrMediaUpload wraps a failure of the media store during upload.
	ErrMediaUpload = errors.New("image upload failed")

	// ErrInvalidListing is the parent of every *ValidationError.
	ErrInvalidListing = errors.New("invalid listing")

	// ErrInvalidStatus is returned by SetStatus for unknown status values.
	ErrInvalidStatus = errors.New("invalid listing status")
)

// Inquiry errors.
var (
	// ErrInvalidInquiry is returned when a contact request is missing its
	// name or message, or carries a malformed e-mail address.
	ErrInvalidInquiry = errors.New("invalid inquiry")
)

// ValidationError reports a rejected listing field. Message is the text shown
// to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidListing) match.
func (e *ValidationError) Unwrap() error { return ErrInvalidListing }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
