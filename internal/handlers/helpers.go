package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lexchat-backend/internal/auth"
	"lexchat-backend/internal/llm"
	"lexchat-backend/internal/services"
	"lexchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationMessage turns validator errors into a short client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

// userIDFromRequest reads the id injected by the JWT middleware and answers 401 when absent.
func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

// uuidParam parses a chi URL parameter and answers 400 when it is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// chatIDParam parses the {chatID} URL parameter. A value that is not a UUID is
// answered like a chat the user does not own, by mapping notFound.
func chatIDParam(w http.ResponseWriter, r *http.Request, log zerolog.Logger, notFound error, action string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		respondServiceError(w, log, notFound, action)
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps service errors to HTTP status codes.
// Unexpected errors are logged and answered with a generic 500.
func respondServiceError(w http.ResponseWriter, log zerolog.Logger, err error, action string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrChatNotFoundOrForbidden):
		httputil.RespondError(w, http.StatusForbidden, "Chat not found or access denied")
	case errors.Is(err, services.ErrChatNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, services.ErrQuotaExceeded):
		httputil.RespondError(w, http.StatusTooManyRequests, "Daily message limit reached")
	case errors.Is(err, services.ErrUserNotFound):
		httputil.RespondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrUserAlreadyExists):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, llm.ErrUpstream):
		log.Warn().Err(err).Msg(action + " failed upstream")
		httputil.RespondError(w, http.StatusBadGateway, "Completion service unavailable")
	default:
		log.Error().Err(err).Msg(action + " failed")
		httputil.RespondError(w, http.StatusInternalServerError, action+" failed due to an internal error")
	}
}
