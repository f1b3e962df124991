package handlers

import (
	"context"
	"errors"
	"net/http"

	"lexchat-backend/internal/models"
	"lexchat-backend/pkg/httputil"

	"github.com/rs/zerolog"
)

type GuestChatService interface {
	Reply(ctx context.Context, req models.GuestChatRequest) (*models.GuestChatResponse, error)
}

type GuestChatHandler struct {
	guestService GuestChatService
	log          zerolog.Logger
}

func NewGuestChatHandler(guestSvc GuestChatService, log zerolog.Logger) *GuestChatHandler {
	return &GuestChatHandler{
		guestService: guestSvc,
		log:          log.With().Str("handler", "guest_chat").Logger(),
	}
}

// HandleGuestChat handles POST /v1/guest-chat. An empty message is a 200 with ok=false.
func (h *GuestChatHandler) HandleGuestChat(w http.ResponseWriter, r *http.Request) {
	var req models.GuestChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.guestService.Reply(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.log, err, "Guest chat")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
