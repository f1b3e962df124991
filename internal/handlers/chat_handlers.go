package handlers

import (
	"context"
	"errors"
	"net/http"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/services"
	"lexchat-backend/pkg/httputil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChatService is the conversation API used by ChatHandlers.
type ChatService interface {
	SendMessage(ctx context.Context, userID uuid.UUID, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	CreateChat(ctx context.Context, userID uuid.UUID, req models.CreateChatRequest) (*models.ChatResponse, error)
	ListChats(ctx context.Context, userID uuid.UUID) ([]models.ChatResponse, error)
	ListMessages(ctx context.Context, userID, chatID uuid.UUID) ([]models.MessageResponse, error)
	RenameChat(ctx context.Context, userID, chatID uuid.UUID, title string) (*models.RenameChatResponse, error)
	DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error
}

// ChatHandlers handles HTTP requests related to chats.
type ChatHandlers struct {
	chatService ChatService
	validate    *validator.Validate
	log         zerolog.Logger
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService ChatService, log zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
		validate:    newValidator(),
		log:         log.With().Str("handler", "chat").Logger(),
	}
}

// HandleListChats handles GET /v1/chat.
func (h *ChatHandlers) HandleListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.log, err, "List chats")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, chats)
}

// HandleCreateChat handles POST /v1/chat. The body is optional.
func (h *ChatHandlers) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.CreateChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chat, err := h.chatService.CreateChat(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.log, err, "Create chat")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, chat)
}

// HandleSendMessage handles POST /v1/chat/send. A missing or empty chatId starts a new chat.
func (h *ChatHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.send(w, r, userID, req)
}

// HandleSendToChat handles POST /v1/chat/{chatID}/messages.
func (h *ChatHandlers) HandleSendToChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(w, r, h.log, services.ErrChatNotFoundOrForbidden, "Send message")
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ChatID = chatID.String()
	h.send(w, r, userID, req)
}

func (h *ChatHandlers) send(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req models.SendMessageRequest) {
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := h.chatService.SendMessage(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, h.log, err, "Send message")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleListMessages handles GET /v1/chat/{chatID}/messages.
func (h *ChatHandlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(w, r, h.log, services.ErrChatNotFoundOrForbidden, "List messages")
	if !ok {
		return
	}

	msgs, err := h.chatService.ListMessages(r.Context(), userID, chatID)
	if err != nil {
		respondServiceError(w, h.log, err, "List messages")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// HandleRenameChat handles PATCH /v1/chat/{chatID}.
func (h *ChatHandlers) HandleRenameChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(w, r, h.log, services.ErrChatNotFound, "Rename chat")
	if !ok {
		return
	}

	var req models.RenameChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.chatService.RenameChat(r.Context(), userID, chatID, req.Title)
	if err != nil {
		respondServiceError(w, h.log, err, "Rename chat")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleDeleteChat handles DELETE /v1/chat/{chatID}.
func (h *ChatHandlers) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(w, r, h.log, services.ErrChatNotFound, "Delete chat")
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), userID, chatID); err != nil {
		respondServiceError(w, h.log, err, "Delete chat")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.OKResponse{OK: true})
}
