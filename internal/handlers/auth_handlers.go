package handlers

import (
	"context"
	"net/http"

	"lexchat-backend/internal/models"
	"lexchat-backend/pkg/httputil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (string, error)
	Login(ctx context.Context, req models.LoginRequest) (string, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.MeResponse, error)
}

type AuthHandler struct {
	authService AuthService
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewAuthHandler(authSvc AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authSvc,
		validate:    newValidator(),
		log:         log.With().Str("handler", "auth").Logger(),
	}
}

// HandleRegister handles the POST /v1/auth/register request.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	token, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.log, err, "Register")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.TokenResponse{AccessToken: token})
}

// HandleLogin handles the POST /v1/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.log, err, "Login")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token})
}

// HandleMe handles the GET /v1/auth/me request.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	me, err := h.authService.Me(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "Profile lookup")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, me)
}
