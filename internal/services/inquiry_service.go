// Package services – InquiryService
//
// InquiryService accepts contact requests about a listing, stores them and
// forwards them to the marketplace inbox. Delivery is best effort: a failed
// notification is logged and the inquiry stays stored with Sent=false.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/notify"
	"github.com/bitafam/terrenos/internal/repo"
)

// InquiryRepo defines the repository contract required by InquiryService.
type InquiryRepo interface {
	GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error)
	CreateInquiry(ctx context.Context, db *gorm.DB, in *domain.Inquiry) error
	MarkInquirySent(ctx context.Context, db *gorm.DB, id string) error
}

// InquiryInput is a contact form submission.
type InquiryInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// InquiryService stores and forwards inquiries.
type InquiryService struct {
	DB       *gorm.DB
	Repo     InquiryRepo
	Notifier notify.Notifier
}

// NewInquiryService constructs an InquiryService. A nil notifier logs instead
// of sending.
func NewInquiryService(db *gorm.DB, r InquiryRepo, n notify.Notifier) *InquiryService {
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &InquiryService{DB: db, Repo: r, Notifier: n}
}

// Submit validates in, stores it against listingID and notifies the inbox.
func (s *InquiryService) Submit(ctx context.Context, listingID string, in InquiryInput) (*domain.Inquiry, error) {
	tr := otel.Tracer("services/InquiryService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("listing.id", listingID)),
	)
	defer span.End()

	q := domain.Inquiry{
		ListingID: listingID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Message:   strings.TrimSpace(in.Message),
	}
	if q.Name == "" || q.Message == "" {
		return nil, ErrInvalidInquiry
	}
	if _, err := mail.ParseAddress(q.Email); err != nil {
		return nil, ErrInvalidInquiry
	}

	l, err := s.Repo.GetListing(ctx, s.DB, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if err := s.Repo.CreateInquiry(ctx, s.DB, &q); err != nil {
		span.RecordError(err)
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	if err := s.Notifier.NotifyInquiry(ctx, *l, q); err != nil {
		log.Error().Err(err).Str("inquiry_id", q.ID).Msg("inquiry notification failed")
		return &q, nil
	}
	if err := s.Repo.MarkInquirySent(ctx, s.DB, q.ID); err != nil {
		log.Warn().Err(err).Str("inquiry_id", q.ID).Msg("mark inquiry sent failed")
		return &q, nil
	}
	q.Sent = true
	return &q, nil
}
