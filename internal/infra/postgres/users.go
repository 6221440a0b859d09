package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, name, password_hash, is_verified, verification_token, verification_token_expiry, created_at`

// UserRepository stores accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a repository backed by pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and fills its ID and CreatedAt. A taken email yields
// domain.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	resync := func(ctx context.Context, table string) error {
		return resyncSequence(ctx, r.pool, table)
	}
	err := withSequenceRepair(ctx, resync, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (email, name, password_hash, is_verified, verification_token, verification_token_expiry)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			u.Email, u.Name, u.PasswordHash, u.IsVerified, u.VerificationToken, u.VerificationTokenExpiry,
		).Scan(&u.ID, &u.CreatedAt)
	})
	if isUniqueViolation(err, "users_email_key") {
		return fmt.Errorf("el correo %s ya está registrado: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// FindByEmail looks a user up by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID looks a user up by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByVerificationToken looks a user up by a pending verification token.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, "verification_token", token)
}

// MarkVerified flags the user as verified and clears the token.
func (r *UserRepository) MarkVerified(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET is_verified = TRUE, verification_token = NULL, verification_token_expiry = NULL
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("MarkVerified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("usuario %d no encontrado: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, column string, value any) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+pgx.Identifier{column}.Sanitize()+` = $1`,
		value,
	).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsVerified,
		&u.VerificationToken, &u.VerificationTokenExpiry, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("usuario no encontrado: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("findOne by %s: %w", column, err)
	}
	return &u, nil
}
