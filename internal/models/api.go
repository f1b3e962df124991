package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// RegisterRequest defines the expected body for the register endpoint.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// --- Response Structs ---

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// MeResponse describes the authenticated user.
// Avoid returning sensitive info like the password hash.
type MeResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Plan      Tier      `json:"plan"`
	PlanLabel string    `json:"planLabel"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OKResponse is a bare success acknowledgement.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is returned by the liveness endpoints.
type HealthResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// --- Chat DTOs ---

// CreateChatRequest defines the payload for creating an empty chat.
type CreateChatRequest struct {
	Title *string `json:"title,omitempty"`
}

// SendMessageRequest defines the payload for sending a user message.
// A blank ChatID starts a new chat.
type SendMessageRequest struct {
	ChatID  string `json:"chatId,omitempty"`
	Content string `json:"content" validate:"required"`
}

// RenameChatRequest defines the payload for renaming a chat.
type RenameChatRequest struct {
	Title string `json:"title"`
}

// AssistantStatus tells the client whether the reply has been stored.
type AssistantStatus string

const (
	AssistantCompleted AssistantStatus = "completed"
	AssistantPending   AssistantStatus = "pending"
)

// MessageResponse is the API form of a Message.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatResponse is the API form of a Chat.
type ChatResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RenameChatResponse carries only the renamed fields.
type RenameChatResponse struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// SendMessageResponse is returned by the send endpoints.
// AssistantMessageID is null while the reply is pending.
type SendMessageResponse struct {
	ChatID             uuid.UUID         `json:"chatId"`
	Messages           []MessageResponse `json:"messages"`
	UserMessageID      uuid.UUID         `json:"userMessageId"`
	AssistantMessageID *uuid.UUID        `json:"assistantMessageId"`
	AssistantStatus    AssistantStatus   `json:"assistantStatus"`
}

// --- Guest Chat DTOs ---

// GuestChatRequest is an anonymous, unpersisted question.
type GuestChatRequest struct {
	Message string  `json:"message"`
	ChatID  *string `json:"chatId,omitempty"`
}

// GuestChatResponse mirrors the request chatId back to the caller.
type GuestChatResponse struct {
	OK     bool    `json:"ok"`
	Reply  string  `json:"reply,omitempty"`
	ChatID *string `json:"chatId"`
	Error  string  `json:"error,omitempty"`
}

// --- Admin DTOs ---

// AdminUserResponse is a user row in the admin listing.
type AdminUserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Plan      Tier      `json:"plan"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ListUsersResponse defines the response structure for the admin user listing.
type ListUsersResponse struct {
	Total int                 `json:"total"`
	Users []AdminUserResponse `json:"users"`
}

// UpdateUserPlanRequest sets a user's plan. Values are matched case-insensitively.
type UpdateUserPlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free pro vip FREE PRO VIP Free Pro Vip"`
}

// --- Mapping helpers ---

// NewMessageResponse converts a DB message to its API form.
func NewMessageResponse(m Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// NewMessageResponses converts a slice, never returning nil.
func NewMessageResponses(msgs []Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageResponse(m))
	}
	return out
}

// NewChatResponse converts a DB chat to its API form.
func NewChatResponse(c Chat) ChatResponse {
	return ChatResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
