package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost           = 10
	verificationTokenLen = 32
	verificationTTL      = 24 * time.Hour
	minPasswordLen       = 6
)

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	AccessToken string       `json:"accessToken"`
	User        *domain.User `json:"user"`
}

// Service implements registration, verification and login.
type Service struct {
	users  UserRepository
	tokens *Tokens
	mailer Mailer
	now    func() time.Time
}

// NewService creates an auth service.
func NewService(users UserRepository, tokens *Tokens, mailer Mailer) *Service {
	return &Service{users: users, tokens: tokens, mailer: mailer, now: time.Now}
}

// Register creates an unverified account and sends its verification link.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)

	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, domain.NewValidationError("email", "email inválido")
	}
	if len(in.Password) < minPasswordLen {
		return nil, domain.NewValidationError("password", fmt.Sprintf("la contraseña debe tener al menos %d caracteres", minPasswordLen))
	}
	if name == "" {
		return nil, domain.NewValidationError("name", "el nombre es requerido")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hashing password: %w", err)
	}
	token, err := newVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("Register: generating token: %w", err)
	}
	expiry := s.now().Add(verificationTTL)

	u := &domain.User{
		Email:                   email,
		Name:                    name,
		PasswordHash:            string(hash),
		VerificationToken:       &token,
		VerificationTokenExpiry: &expiry,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("el email ya está registrado: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("Register: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, u.Email, token); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to send verification email")
	}
	return u, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("credenciales inválidas: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("credenciales inválidas: %w", domain.ErrUnauthorized)
	}
	if !u.IsVerified {
		return nil, fmt.Errorf("por favor verifica tu email primero: %w", domain.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}
	return &LoginResult{AccessToken: token, User: u}, nil
}

// VerifyEmail marks the owner of token as verified. Unknown tokens yield
// domain.ErrNotFound, expired ones domain.ErrConflict.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("token", "token requerido")
	}

	u, err := s.users.FindByVerificationToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("token de verificación inválido: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("VerifyEmail: %w", err)
	}

	if u.VerificationTokenExpiry != nil && u.VerificationTokenExpiry.Before(s.now()) {
		return nil, fmt.Errorf("el token de verificación ha expirado: %w", domain.ErrConflict)
	}

	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("VerifyEmail: %w", err)
	}
	u.IsVerified = true
	u.VerificationToken = nil
	u.VerificationTokenExpiry = nil
	return u, nil
}

// Authenticate resolves a bearer token to a user id.
func (s *Service) Authenticate(raw string) (int64, error) {
	id, _, err := s.tokens.Parse(raw)
	return id, err
}

func newVerificationToken() (string, error) {
	b := make([]byte, verificationTokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
