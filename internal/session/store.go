package session

import (
	"context"

	"gorm.io/gorm"

	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/repo"
)

// AccountStore persists auth identities and the known-users registry.
// CreateAccount returns repo.ErrDuplicate for a taken email and
// AccountByEmail returns repo.ErrNotFound for an unknown one.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	AccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type gormStore struct{ db *gorm.DB }

// NewGormStore adapts the repo functions to AccountStore.
func NewGormStore(db *gorm.DB) AccountStore { return gormStore{db: db} }

func (s gormStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	return repo.CreateAccount(ctx, s.db, a)
}

func (s gormStore) AccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return repo.GetAccountByEmail(ctx, s.db, email)
}

func (s gormStore) UpsertUser(ctx context.Context, u *domain.User) error {
	return repo.UpsertUser(ctx, s.db, u)
}

func (s gormStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return repo.GetUser(ctx, s.db, id)
}
