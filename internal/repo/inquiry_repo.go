package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
)

// CreateInquiry persists a contact request for a listing. The ID and
// CreatedAt are assigned when missing.
func CreateInquiry(ctx context.Context, db *gorm.DB, in *domain.Inquiry) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(in).Error
}

// MarkInquirySent flags an inquiry as delivered. If no rows are affected it
// returns ErrNotFound.
func MarkInquirySent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Inquiry{}).
		Where("id = ?", id).
		Update("sent", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
