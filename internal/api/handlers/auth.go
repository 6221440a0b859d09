package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/auth"
	"github.com/dvloznov/gestapp/internal/domain"
)

// AuthService is the account API used by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
}

// AuthHandler handles registration, verification and login.
type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to register user")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Usuario registrado. Revisa tu email para verificar tu cuenta.",
		"email":   u.Email,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Failed to log in")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Verify handles GET /auth/verify?token= and its /auth/verify-email alias.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to verify email")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verificado correctamente",
		"email":   u.Email,
	})
}
