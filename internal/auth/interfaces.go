package auth

import (
	"context"

	"github.com/dvloznov/gestapp/internal/domain"
)

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	MarkVerified(ctx context.Context, id int64) error
}

// Mailer delivers verification links.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}
