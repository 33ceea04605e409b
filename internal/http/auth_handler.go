package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/katharos/storefront/internal/auth"
	"github.com/katharos/storefront/internal/domain"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
}

type AuthHandler struct {
	auth    AuthService
	timeout time.Duration
	log     *zap.Logger
}

func NewAuthHandler(a AuthService, timeout time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    a,
		timeout: timeout,
		log:     log,
	}
}

type RegisterRequestDTO struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=80"`
}

type LoginRequestDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.auth.Register(ctx, auth.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			respondError(w, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		default:
			respondInternal(w, r, h.log, "failed to register user", err)
		}
		return
	}

	respondJSON(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, u, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		respondInternal(w, r, h.log, "failed to log in", err)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: u})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := getClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	u, err := h.auth.Profile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		respondInternal(w, r, h.log, "failed to load profile", err)
		return
	}

	respondJSON(w, http.StatusOK, u)
}
