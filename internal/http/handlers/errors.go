// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package) and the translation of
// service errors into those codes. Codes give clients a stable,
// machine-readable taxonomy; messages are user-facing and in Spanish, the
// language of the marketplace.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain-specific codes (e.g., cover_required, submission_in_flight) name
//     business rules that cannot be conveyed by status alone.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "cover_required",
//	  "message": "Debes seleccionar una imagen para la portada."
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/services"
	"github.com/bitafam/terrenos/internal/session"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation           = "validation_failed"
	ErrCodeInvalidFilter        = "invalid_filter"
	ErrCodeInvalidStatus        = "invalid_status"
	ErrCodeInvalidInquiry       = "invalid_inquiry"
	ErrCodeCoverRequired        = "cover_required"
	ErrCodeUnknownUser          = "unknown_user"
	ErrCodeSubmissionInFlight   = "submission_in_flight"
	ErrCodeUploadFailed         = "media_upload_failed"
	ErrCodeConfirmationRequired = "confirmation_required"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeEmailTaken           = "email_taken"
	ErrCodeLoadFailed           = "load_failed"
)

// User-facing messages shared by several handlers.
const (
	msgInternal      = "Error interno del servidor."
	msgNotFound      = "Terreno no encontrado."
	msgLoginRequired = "Debes iniciar sesión para continuar."
	msgInvalidBody   = "Solicitud no válida."
)

// apiError is the HTTP rendering of a service error.
type apiError struct {
	status  int
	code    string
	message string
}

// errorTable maps service sentinels to their HTTP rendering. Order matters
// only for errors that wrap more than one sentinel.
var errorTable = []struct {
	target error
	out    apiError
}{
	{services.ErrCoverRequired, apiError{http.StatusBadRequest, ErrCodeCoverRequired, "Debes seleccionar una imagen para la portada."}},
	{services.ErrNotAuthenticated, apiError{http.StatusUnauthorized, ErrCodeUnauthorized, msgLoginRequired}},
	{session.ErrNoSession, apiError{http.StatusUnauthorized, ErrCodeUnauthorized, msgLoginRequired}},
	{services.ErrUnknownUser, apiError{http.StatusForbidden, ErrCodeUnknownUser, "Tu usuario no está registrado. Vuelve a iniciar sesión."}},
	{services.ErrForbidden, apiError{http.StatusForbidden, ErrCodeForbidden, "No tienes permiso para modificar este terreno."}},
	{services.ErrListingNotFound, apiError{http.StatusNotFound, ErrCodeNotFound, msgNotFound}},
	{services.ErrSubmissionInFlight, apiError{http.StatusConflict, ErrCodeSubmissionInFlight, "Ya se está guardando este terreno. Espera a que termine."}},
	{services.ErrMediaUpload, apiError{http.StatusBadGateway, ErrCodeUploadFailed, "No se pudieron subir las imágenes. Inténtalo de nuevo."}},
	{services.ErrInvalidStatus, apiError{http.StatusBadRequest, ErrCodeInvalidStatus, "Estado no válido."}},
	{services.ErrInvalidInquiry, apiError{http.StatusBadRequest, ErrCodeInvalidInquiry, "Completa tu nombre, un correo válido y el mensaje."}},
	{session.ErrInvalidCredentials, apiError{http.StatusUnauthorized, ErrCodeInvalidCredentials, "Correo o contraseña incorrectos."}},
	{session.ErrEmailTaken, apiError{http.StatusConflict, ErrCodeEmailTaken, "Ese correo ya está registrado."}},
	{session.ErrWeakPassword, apiError{http.StatusBadRequest, ErrCodeValidation, "La contraseña debe tener al menos 6 caracteres."}},
	{session.ErrMissingFields, apiError{http.StatusBadRequest, ErrCodeValidation, "Completa todos los campos."}},
	{session.ErrInvalidEmail, apiError{http.StatusBadRequest, ErrCodeValidation, "Correo electrónico no válido."}},
}

// classify picks the HTTP rendering for err. Unknown errors become 500.
func classify(err error) apiError {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return apiError{http.StatusBadRequest, ErrCodeValidation, ve.Message}
	}
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.out
		}
	}
	return apiError{http.StatusInternalServerError, ErrCodeInternal, msgInternal}
}

// failErr writes the envelope for a service error. The raw error is logged
// for 5xx responses and never shown to the client.
func failErr(c *gin.Context, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Msg("service error")
	}
	fail(c, e.status, e.code, e.message)
}
